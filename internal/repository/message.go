package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vamo-backend/internal/model"
)

// MessageRepository handles chat message persistence. Messages are immutable
// once written; project ordering is by created_at.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository instance.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `id, project_id, user_id, role, content, tag, extracted_intent, pineapples_earned, created_at`

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.UserID,
		&m.Role,
		&m.Content,
		&m.Tag,
		&m.ExtractedIntent,
		&m.PineapplesEarned,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertUser inserts a user-authored message.
func (r *MessageRepository) InsertUser(ctx context.Context, projectID, userID uuid.UUID, content string, tag *string) (*model.Message, error) {
	const query = `
		INSERT INTO messages (id, project_id, user_id, role, content, tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + messageColumns

	m, err := scanMessage(r.pool.QueryRow(ctx, query, uuid.New(), projectID, userID, model.RoleUser, content, tag))
	if err != nil {
		return nil, fmt.Errorf("failed to insert user message: %w", err)
	}
	return m, nil
}

// InsertAssistant inserts an assistant reply carrying the turn's extracted
// intent and total pineapples earned.
func (r *MessageRepository) InsertAssistant(ctx context.Context, projectID, userID uuid.UUID, content, extractedIntent string, pineapplesEarned int64) (*model.Message, error) {
	const query = `
		INSERT INTO messages (id, project_id, user_id, role, content, extracted_intent, pineapples_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + messageColumns

	m, err := scanMessage(r.pool.QueryRow(ctx, query, uuid.New(), projectID, userID, model.RoleAssistant, content, extractedIntent, pineapplesEarned))
	if err != nil {
		return nil, fmt.Errorf("failed to insert assistant message: %w", err)
	}
	return m, nil
}

// GetAfter retrieves all project messages created strictly after the given
// time, oldest first. A zero time returns the full history.
func (r *MessageRepository) GetAfter(ctx context.Context, projectID uuid.UUID, after time.Time) ([]*model.Message, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE project_id = $1 AND created_at > $2
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, projectID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CountByProject counts all messages in a project.
func (r *MessageRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE project_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
