package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"vamo-backend/internal/model"
)

// TractionRepository handles traction signal persistence.
type TractionRepository struct {
	pool *pgxpool.Pool
}

// NewTractionRepository creates a new TractionRepository instance.
func NewTractionRepository(pool *pgxpool.Pool) *TractionRepository {
	return &TractionRepository{pool: pool}
}

const tractionColumns = `id, project_id, user_id, signal_type, description, source, message_id, metadata, created_at`

// Insert records a traction signal.
func (r *TractionRepository) Insert(ctx context.Context, projectID, userID uuid.UUID, signalType, description, source string, messageID *uuid.UUID, metadata map[string]any) (*model.TractionSignal, error) {
	const query = `
		INSERT INTO traction_signals (id, project_id, user_id, signal_type, description, source, message_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING ` + tractionColumns

	if metadata == nil {
		metadata = map[string]any{}
	}

	var s model.TractionSignal
	err := r.pool.QueryRow(ctx, query, uuid.New(), projectID, userID, signalType, description, source, messageID, metadata).Scan(
		&s.ID,
		&s.ProjectID,
		&s.UserID,
		&s.SignalType,
		&s.Description,
		&s.Source,
		&s.MessageID,
		&s.Metadata,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert traction signal: %w", err)
	}
	return &s, nil
}

// GetByProject retrieves a project's traction signals, newest first.
func (r *TractionRepository) GetByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*model.TractionSignal, error) {
	const query = `
		SELECT ` + tractionColumns + `
		FROM traction_signals
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get traction signals: %w", err)
	}
	defer rows.Close()

	var signals []*model.TractionSignal
	for rows.Next() {
		var s model.TractionSignal
		err := rows.Scan(
			&s.ID,
			&s.ProjectID,
			&s.UserID,
			&s.SignalType,
			&s.Description,
			&s.Source,
			&s.MessageID,
			&s.Metadata,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan traction signal: %w", err)
		}
		signals = append(signals, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating traction signals: %w", err)
	}

	return signals, nil
}
