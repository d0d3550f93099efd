// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package course

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// Course is a scheduled offering taught by one instructor.
type Course struct {
	ID           ulid.ULID
	Title        string
	Description  string
	StartDate    time.Time
	EndDate      time.Time
	InstructorID ulid.ULID
	CreatedAt    time.Time
}

// NewCourse validates the fields and returns a course with a fresh ID.
// Dates are truncated to the day.
func NewCourse(title, description string, start, end time.Time, instructorID ulid.ULID) (*Course, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, oops.Code("COURSE_INVALID").With("field", "title").Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, oops.Code("COURSE_INVALID").With("field", "title").
			Errorf("title must be at most %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, oops.Code("COURSE_INVALID").With("field", "description").
			Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	if start.IsZero() || end.IsZero() {
		return nil, oops.Code("COURSE_INVALID").With("field", "dates").Errorf("start and end dates are required")
	}
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil, oops.Code("COURSE_INVALID").With("field", "end_date").Errorf("end date must not precede start date")
	}
	if instructorID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("COURSE_INVALID").With("field", "instructor_id").Errorf("instructor is required")
	}

	return &Course{
		ID:           ulid.Make(),
		Title:        title,
		Description:  description,
		StartDate:    start,
		EndDate:      end,
		InstructorID: instructorID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Enrollment records that a user takes a course.
type Enrollment struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	CourseID   ulid.ULID
	EnrolledAt time.Time
}

// Progress is a user's reported completion of a course, 0 to 100.
type Progress struct {
	ID                   ulid.ULID
	UserID               ulid.ULID
	CourseID             ulid.ULID
	CompletionPercentage int
	UpdatedAt            time.Time
}

// CourseRepository persists courses.
type CourseRepository interface {
	// Create stores a course. An unknown instructor gives ErrUnknownReference.
	Create(ctx context.Context, c *Course) error

	// Get returns a course or ErrNotFound.
	Get(ctx context.Context, id ulid.ULID) (*Course, error)

	// List returns all courses ordered by start date.
	List(ctx context.Context) ([]*Course, error)

	// ListByInstructor returns an instructor's courses ordered by start date.
	ListByInstructor(ctx context.Context, instructorID ulid.ULID) ([]*Course, error)

	// Delete removes a course with its enrollments and progress.
	Delete(ctx context.Context, id ulid.ULID) error
}

// EnrollmentRepository persists enrollments.
type EnrollmentRepository interface {
	// Enroll stores an enrollment and its zero progress row together.
	// A repeated (user, course) pair gives ErrAlreadyEnrolled.
	Enroll(ctx context.Context, e *Enrollment) error

	// ListForUser returns a user's enrollments, newest first.
	ListForUser(ctx context.Context, userID ulid.ULID) ([]*Enrollment, error)

	// ListForCourse returns a course's enrollments, oldest first.
	ListForCourse(ctx context.Context, courseID ulid.ULID) ([]*Enrollment, error)

	// Unenroll removes the enrollment and progress for (user, course).
	Unenroll(ctx context.Context, userID, courseID ulid.ULID) error
}

// ProgressRepository persists progress records.
type ProgressRepository interface {
	// Get returns progress for (user, course) or ErrNotFound.
	Get(ctx context.Context, userID, courseID ulid.ULID) (*Progress, error)

	// SetCompletion updates the completion percentage or returns ErrNotFound.
	SetCompletion(ctx context.Context, userID, courseID ulid.ULID, percentage int) error
}
