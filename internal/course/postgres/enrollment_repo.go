// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgerrcode"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/course"
)

const enrollmentUserCourseConstraint = "enrollments_user_course_key"

// EnrollmentRepository implements course.EnrollmentRepository. Progress rows
// are created and removed together with their enrollment.
type EnrollmentRepository struct {
	pool poolIface
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool poolIface) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Enroll stores the enrollment and a zero progress row in one transaction.
func (r *EnrollmentRepository) Enroll(ctx context.Context, e *course.Enrollment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ENROLL_FAILED").With("operation", "begin transaction").Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // Rollback error after commit is meaningless
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO enrollments (id, user_id, course_id, enrolled_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID.String(), e.UserID.String(), e.CourseID.String(), e.EnrolledAt)
	if err != nil {
		switch code, constraint := pgCode(err); {
		case code == pgerrcode.UniqueViolation && constraint == enrollmentUserCourseConstraint:
			return oops.Code("ENROLL_DUPLICATE").
				With("user_id", e.UserID.String()).
				With("course_id", e.CourseID.String()).
				Wrap(course.ErrAlreadyEnrolled)
		case code == pgerrcode.ForeignKeyViolation:
			return oops.Code("ENROLL_UNKNOWN_REFERENCE").
				With("user_id", e.UserID.String()).
				With("course_id", e.CourseID.String()).
				Wrap(course.ErrUnknownReference)
		}
		return oops.Code("ENROLL_FAILED").With("operation", "insert enrollment").Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO progress_trackings (id, user_id, course_id, completion_percentage, updated_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (user_id, course_id) DO NOTHING
	`, ulid.Make().String(), e.UserID.String(), e.CourseID.String(), e.EnrolledAt)
	if err != nil {
		return oops.Code("ENROLL_FAILED").With("operation", "insert progress").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ENROLL_FAILED").With("operation", "commit transaction").Wrap(err)
	}
	return nil
}

// ListForUser returns a user's enrollments, newest first.
func (r *EnrollmentRepository) ListForUser(ctx context.Context, userID ulid.ULID) ([]*course.Enrollment, error) {
	return r.list(ctx, `
		SELECT id, user_id, course_id, enrolled_at FROM enrollments
		WHERE user_id = $1 ORDER BY enrolled_at DESC
	`, userID.String())
}

// ListForCourse returns a course's enrollments, oldest first.
func (r *EnrollmentRepository) ListForCourse(ctx context.Context, courseID ulid.ULID) ([]*course.Enrollment, error) {
	return r.list(ctx, `
		SELECT id, user_id, course_id, enrolled_at FROM enrollments
		WHERE course_id = $1 ORDER BY enrolled_at
	`, courseID.String())
}

func (r *EnrollmentRepository) list(ctx context.Context, sql string, arg string) ([]*course.Enrollment, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, oops.Code("ENROLLMENT_LIST_FAILED").With("operation", "query enrollments").Wrap(err)
	}
	defer rows.Close()

	enrollments := make([]*course.Enrollment, 0)
	for rows.Next() {
		var (
			e                        course.Enrollment
			idStr, userStr, courseID string
		)
		if err := rows.Scan(&idStr, &userStr, &courseID, &e.EnrolledAt); err != nil {
			return nil, oops.Code("ENROLLMENT_LIST_FAILED").With("operation", "scan enrollment").Wrap(err)
		}
		if e.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("ENROLLMENT_INVALID_ID").With("id", idStr).Wrap(err)
		}
		if e.UserID, err = ulid.Parse(userStr); err != nil {
			return nil, oops.Code("ENROLLMENT_INVALID_ID").With("user_id", userStr).Wrap(err)
		}
		if e.CourseID, err = ulid.Parse(courseID); err != nil {
			return nil, oops.Code("ENROLLMENT_INVALID_ID").With("course_id", courseID).Wrap(err)
		}
		enrollments = append(enrollments, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ENROLLMENT_LIST_FAILED").With("operation", "iterate enrollments").Wrap(err)
	}
	return enrollments, nil
}

// Unenroll removes the enrollment and its progress row.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, userID, courseID ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("UNENROLL_FAILED").With("operation", "begin transaction").Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // Rollback error after commit is meaningless
	}()

	result, err := tx.Exec(ctx, `
		DELETE FROM enrollments WHERE user_id = $1 AND course_id = $2
	`, userID.String(), courseID.String())
	if err != nil {
		return oops.Code("UNENROLL_FAILED").With("operation", "delete enrollment").Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ENROLLMENT_NOT_FOUND").
			With("user_id", userID.String()).
			With("course_id", courseID.String()).
			Wrap(course.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM progress_trackings WHERE user_id = $1 AND course_id = $2
	`, userID.String(), courseID.String()); err != nil {
		return oops.Code("UNENROLL_FAILED").With("operation", "delete progress").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("UNENROLL_FAILED").With("operation", "commit transaction").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ course.EnrollmentRepository = (*EnrollmentRepository)(nil)
