package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"vamo-backend/internal/model"
)

// ActivityRepository handles the chronological activity timeline.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository instance.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

const activityColumns = `id, project_id, user_id, activity_type, description, metadata, created_at`

// Insert records a timeline event.
func (r *ActivityRepository) Insert(ctx context.Context, projectID, userID uuid.UUID, activityType, description string, metadata map[string]any) (*model.Activity, error) {
	const query = `
		INSERT INTO activities (id, project_id, user_id, activity_type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + activityColumns

	if metadata == nil {
		metadata = map[string]any{}
	}

	var a model.Activity
	err := r.pool.QueryRow(ctx, query, uuid.New(), projectID, userID, activityType, description, metadata).Scan(
		&a.ID,
		&a.ProjectID,
		&a.UserID,
		&a.ActivityType,
		&a.Description,
		&a.Metadata,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	return &a, nil
}

// CountByType returns activity counts per activity_type for a project.
// The offer generator uses this as a cheap engagement aggregate.
func (r *ActivityRepository) CountByType(ctx context.Context, projectID uuid.UUID) (map[string]int64, error) {
	const query = `
		SELECT activity_type, COUNT(*)
		FROM activities
		WHERE project_id = $1
		GROUP BY activity_type
	`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var activityType string
		var count int64
		if err := rows.Scan(&activityType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan activity count: %w", err)
		}
		counts[activityType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity counts: %w", err)
	}

	return counts, nil
}

// GetByProject retrieves a project's timeline, newest first.
func (r *ActivityRepository) GetByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*model.Activity, error) {
	const query = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}
	defer rows.Close()

	var activities []*model.Activity
	for rows.Next() {
		var a model.Activity
		err := rows.Scan(
			&a.ID,
			&a.ProjectID,
			&a.UserID,
			&a.ActivityType,
			&a.Description,
			&a.Metadata,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}
