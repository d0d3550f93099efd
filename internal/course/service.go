// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package course

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service validates course operations before handing them to the repositories.
type Service struct {
	courses     CourseRepository
	enrollments EnrollmentRepository
	progress    ProgressRepository
	logger      *slog.Logger
}

// NewService creates a course Service. A nil logger uses slog.Default().
func NewService(courses CourseRepository, enrollments EnrollmentRepository, progress ProgressRepository, logger *slog.Logger) (*Service, error) {
	if courses == nil || enrollments == nil || progress == nil {
		return nil, oops.Code("COURSE_INVALID_DEPENDENCY").Errorf("repositories are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{courses: courses, enrollments: enrollments, progress: progress, logger: logger}, nil
}

// CreateCourse validates and stores a new course.
func (s *Service) CreateCourse(ctx context.Context, title, description string, start, end time.Time, instructorID ulid.ULID) (*Course, error) {
	c, err := NewCourse(title, description, start, end, instructorID)
	if err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("course created", "course_id", c.ID.String(), "instructor_id", instructorID.String())
	return c, nil
}

// Courses lists all courses.
func (s *Service) Courses(ctx context.Context) ([]*Course, error) {
	return s.courses.List(ctx)
}

// Enroll enrolls a user in a course and starts their progress at zero.
func (s *Service) Enroll(ctx context.Context, userID, courseID ulid.ULID) (*Enrollment, error) {
	if _, err := s.courses.Get(ctx, courseID); err != nil {
		return nil, err
	}
	e := &Enrollment{
		ID:         ulid.Make(),
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	}
	if err := s.enrollments.Enroll(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Enrollments lists a user's enrollments.
func (s *Service) Enrollments(ctx context.Context, userID ulid.ULID) ([]*Enrollment, error) {
	return s.enrollments.ListForUser(ctx, userID)
}

// RecordProgress stores a reported completion percentage.
func (s *Service) RecordProgress(ctx context.Context, userID, courseID ulid.ULID, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return oops.Code("PROGRESS_INVALID").
			With("percentage", percentage).
			Errorf("completion percentage must be between 0 and 100")
	}
	return s.progress.SetCompletion(ctx, userID, courseID, percentage)
}

// Progress returns the user's progress in a course.
func (s *Service) Progress(ctx context.Context, userID, courseID ulid.ULID) (*Progress, error) {
	return s.progress.Get(ctx, userID, courseID)
}
