// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/course"
)

const courseColumns = `id, title, description, start_date, end_date, instructor_id, created_at`

// CourseRepository implements course.CourseRepository.
type CourseRepository struct {
	pool poolIface
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool poolIface) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// Create stores a course.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO courses (id, title, description, start_date, end_date, instructor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID.String(), c.Title, c.Description, c.StartDate, c.EndDate, c.InstructorID.String(), c.CreatedAt)
	if isForeignKeyViolation(err) {
		return oops.Code("COURSE_UNKNOWN_INSTRUCTOR").
			With("instructor_id", c.InstructorID.String()).
			Wrap(course.ErrUnknownReference)
	}
	if err != nil {
		return oops.Code("COURSE_CREATE_FAILED").
			With("operation", "insert course").
			With("title", c.Title).
			Wrap(err)
	}
	return nil
}

// Get retrieves a course by ID.
func (r *CourseRepository) Get(ctx context.Context, id ulid.ULID) (*course.Course, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id.String())
	c, err := scanCourse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("COURSE_NOT_FOUND").With("id", id.String()).Wrap(course.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("COURSE_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return c, nil
}

// List returns all courses ordered by start date.
func (r *CourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	return r.list(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY start_date, title`)
}

// ListByInstructor returns the instructor's courses ordered by start date.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorID ulid.ULID) ([]*course.Course, error) {
	return r.list(ctx, `SELECT `+courseColumns+` FROM courses WHERE instructor_id = $1 ORDER BY start_date, title`,
		instructorID.String())
}

func (r *CourseRepository) list(ctx context.Context, sql string, args ...any) ([]*course.Course, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").With("operation", "query courses").Wrap(err)
	}
	defer rows.Close()

	courses := make([]*course.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, oops.Code("COURSE_LIST_FAILED").With("operation", "scan course").Wrap(err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").With("operation", "iterate courses").Wrap(err)
	}
	return courses, nil
}

// Delete removes a course. Enrollments and progress cascade.
func (r *CourseRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("COURSE_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("COURSE_NOT_FOUND").With("id", id.String()).Wrap(course.ErrNotFound)
	}
	return nil
}

func scanCourse(row pgx.Row) (*course.Course, error) {
	var (
		c               course.Course
		idStr           string
		instructorIDStr string
	)
	if err := row.Scan(&idStr, &c.Title, &c.Description, &c.StartDate, &c.EndDate, &instructorIDStr, &c.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}

	var err error
	if c.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("COURSE_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if c.InstructorID, err = ulid.Parse(instructorIDStr); err != nil {
		return nil, oops.Code("COURSE_INVALID_ID").With("instructor_id", instructorIDStr).Wrap(err)
	}
	c.StartDate = c.StartDate.UTC()
	c.EndDate = c.EndDate.UTC()
	return &c, nil
}

// Compile-time interface check.
var _ course.CourseRepository = (*CourseRepository)(nil)
