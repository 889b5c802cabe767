package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vamo-backend/internal/model"
)

// ErrSummaryNotFound is returned when a project has no chat summary yet.
var ErrSummaryNotFound = errors.New("chat summary not found")

// SummaryRepository handles chat summary persistence. Summaries are
// append-only; the latest messages_up_to wins.
type SummaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository creates a new SummaryRepository instance.
func NewSummaryRepository(pool *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{pool: pool}
}

const summaryColumns = `id, project_id, summary, messages_up_to, created_at`

func scanSummary(row pgx.Row) (*model.ChatSummary, error) {
	var s model.ChatSummary
	err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.Summary,
		&s.MessagesUpTo,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Insert appends a new summary with its messages_up_to watermark.
func (r *SummaryRepository) Insert(ctx context.Context, projectID uuid.UUID, summary string, messagesUpTo time.Time) (*model.ChatSummary, error) {
	const query = `
		INSERT INTO chat_summaries (id, project_id, summary, messages_up_to, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + summaryColumns

	s, err := scanSummary(r.pool.QueryRow(ctx, query, uuid.New(), projectID, summary, messagesUpTo))
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat summary: %w", err)
	}
	return s, nil
}

// GetLatest retrieves the active summary for a project - the one with the
// greatest messages_up_to. Returns ErrSummaryNotFound if none exists.
func (r *SummaryRepository) GetLatest(ctx context.Context, projectID uuid.UUID) (*model.ChatSummary, error) {
	const query = `
		SELECT ` + summaryColumns + `
		FROM chat_summaries
		WHERE project_id = $1
		ORDER BY messages_up_to DESC
		LIMIT 1
	`

	s, err := scanSummary(r.pool.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to get latest summary: %w", err)
	}
	return s, nil
}

// CountByProject counts summaries for a project.
func (r *SummaryRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	const query = `SELECT COUNT(*) FROM chat_summaries WHERE project_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	return count, nil
}
