package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vamo-backend/internal/model"
)

// ErrOfferNotFound is returned when no active offer exists.
var ErrOfferNotFound = errors.New("offer not found")

// OfferRepository handles valuation offer persistence. Offers transition
// active -> expired; they are never deleted.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository creates a new OfferRepository instance.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

const offerColumns = `id, project_id, user_id, offer_low, offer_high, reasoning, signals, status, created_at`

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	err := row.Scan(
		&o.ID,
		&o.ProjectID,
		&o.UserID,
		&o.OfferLow,
		&o.OfferHigh,
		&o.Reasoning,
		&o.Signals,
		&o.Status,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ExpireActive marks any active offer for the (project, user) pair as expired.
// Returns the number of offers expired.
func (r *OfferRepository) ExpireActive(ctx context.Context, projectID, userID uuid.UUID) (int64, error) {
	const query = `
		UPDATE offers
		SET status = $3
		WHERE project_id = $1 AND user_id = $2 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, projectID, userID, model.OfferStatusExpired, model.OfferStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to expire offers: %w", err)
	}
	return result.RowsAffected(), nil
}

// Insert records a new active offer.
func (r *OfferRepository) Insert(ctx context.Context, projectID, userID uuid.UUID, offerLow, offerHigh int64, reasoning string, signals []string) (*model.Offer, error) {
	const query = `
		INSERT INTO offers (id, project_id, user_id, offer_low, offer_high, reasoning, signals, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING ` + offerColumns

	if signals == nil {
		signals = []string{}
	}

	o, err := scanOffer(r.pool.QueryRow(ctx, query, uuid.New(), projectID, userID, offerLow, offerHigh, reasoning, signals, model.OfferStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to insert offer: %w", err)
	}
	return o, nil
}

// GetActive retrieves the active offer for a (project, user) pair.
// Returns ErrOfferNotFound if none exists.
func (r *OfferRepository) GetActive(ctx context.Context, projectID, userID uuid.UUID) (*model.Offer, error) {
	const query = `
		SELECT ` + offerColumns + `
		FROM offers
		WHERE project_id = $1 AND user_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	o, err := scanOffer(r.pool.QueryRow(ctx, query, projectID, userID, model.OfferStatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get active offer: %w", err)
	}
	return o, nil
}
