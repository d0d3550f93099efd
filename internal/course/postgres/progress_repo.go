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

// ProgressRepository implements course.ProgressRepository.
type ProgressRepository struct {
	pool poolIface
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool poolIface) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Get returns progress for (user, course).
func (r *ProgressRepository) Get(ctx context.Context, userID, courseID ulid.ULID) (*course.Progress, error) {
	var (
		p     course.Progress
		idStr string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, completion_percentage, updated_at FROM progress_trackings
		WHERE user_id = $1 AND course_id = $2
	`, userID.String(), courseID.String()).Scan(&idStr, &p.CompletionPercentage, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROGRESS_NOT_FOUND").
			With("user_id", userID.String()).
			With("course_id", courseID.String()).
			Wrap(course.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROGRESS_GET_FAILED").With("operation", "query progress").Wrap(err)
	}
	if p.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("PROGRESS_INVALID_ID").With("id", idStr).Wrap(err)
	}
	p.UserID = userID
	p.CourseID = courseID
	return &p, nil
}

// SetCompletion updates the completion percentage.
func (r *ProgressRepository) SetCompletion(ctx context.Context, userID, courseID ulid.ULID, percentage int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE progress_trackings SET completion_percentage = $3, updated_at = $4
		WHERE user_id = $1 AND course_id = $2
	`, userID.String(), courseID.String(), percentage, now())
	if err != nil {
		return oops.Code("PROGRESS_UPDATE_FAILED").
			With("operation", "update progress").
			With("percentage", percentage).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PROGRESS_NOT_FOUND").
			With("user_id", userID.String()).
			With("course_id", courseID.String()).
			Wrap(course.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ course.ProgressRepository = (*ProgressRepository)(nil)
