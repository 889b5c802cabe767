package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vamo-backend/internal/model"
)

// Ledger errors.
var (
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrDuplicateKey indicates the idempotency key already exists. The unique
	// constraint at the storage layer is the final arbiter for award races.
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// LedgerRepository handles the append-only reward ledger.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const ledgerColumns = `id, user_id, project_id, event_type, amount, balance_after, idempotency_key, created_at`

func scanEntry(row pgx.Row) (*model.RewardEntry, error) {
	var e model.RewardEntry
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.ProjectID,
		&e.EventType,
		&e.Amount,
		&e.BalanceAfter,
		&e.IdempotencyKey,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert appends a new ledger entry. Returns ErrDuplicateKey if the
// idempotency key already exists, which callers treat as "another call with
// the same logical event already won".
func (r *LedgerRepository) Insert(ctx context.Context, userID, projectID uuid.UUID, eventType string, amount, balanceAfter int64, idempotencyKey string) (*model.RewardEntry, error) {
	const query = `
		INSERT INTO reward_ledger (id, user_id, project_id, event_type, amount, balance_after, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + ledgerColumns

	e, err := scanEntry(r.pool.QueryRow(ctx, query, uuid.New(), userID, projectID, eventType, amount, balanceAfter, idempotencyKey))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return e, nil
}

// GetByIdempotencyKey retrieves the entry recorded for a key.
// Returns ErrEntryNotFound if no such entry exists.
func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.RewardEntry, error) {
	const query = `SELECT ` + ledgerColumns + ` FROM reward_ledger WHERE idempotency_key = $1`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

// CountEventsSince counts entries for a (user, project) whose event type is in
// the given set and which were created at or after the cutoff. Used for the
// trailing-window prompt rate limit.
func (r *LedgerRepository) CountEventsSince(ctx context.Context, userID, projectID uuid.UUID, eventTypes []string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM reward_ledger
		WHERE user_id = $1
		  AND project_id = $2
		  AND event_type = ANY($3)
		  AND created_at >= $4
	`

	var count int
	err := r.pool.QueryRow(ctx, query, userID, projectID, eventTypes, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger events: %w", err)
	}
	return count, nil
}

// GetLatestByUser retrieves the user's most recent ledger entry. The entry's
// balance_after is the authoritative balance; the cached profile balance is
// rebuilt from it during reconciliation.
func (r *LedgerRepository) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*model.RewardEntry, error) {
	const query = `
		SELECT ` + ledgerColumns + `
		FROM reward_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get latest ledger entry: %w", err)
	}
	return e, nil
}

// GetByUserID retrieves a user's ledger entries, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*model.RewardEntry, error) {
	const query = `
		SELECT ` + ledgerColumns + `
		FROM reward_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.RewardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}
