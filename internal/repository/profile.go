// Package repository provides data access layer implementations.
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

// Common errors for repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository handles founder profile persistence.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `id, email, display_name, balance, linkedin_url, github_url, website_url, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.Balance,
		&p.LinkedInURL,
		&p.GitHubURL,
		&p.WebsiteURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new profile with a zero pineapple balance.
func (r *ProfileRepository) Create(ctx context.Context, email, displayName string) (*model.Profile, error) {
	const query = `
		INSERT INTO profiles (id, email, display_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, uuid.New(), email, displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by id.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// SetBalance sets the cached balance to an exact value. The value always comes
// from a ledger entry's balance_after; the cache can be rebuilt from the
// ledger at any time.
func (r *ProfileRepository) SetBalance(ctx context.Context, id uuid.UUID, balance int64) (*model.Profile, error) {
	const query = `
		UPDATE profiles
		SET balance = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id, balance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return p, nil
}

// Exists checks if a profile with the given id exists.
func (r *ProfileRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}
	return exists, nil
}
