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

// ErrProjectNotFound is returned when a project does not exist or is not
// visible to the caller. Ownership mismatches deliberately map to this error
// so the API never confirms the existence of someone else's project.
var ErrProjectNotFound = errors.New("project not found")

// ProjectRepository handles project persistence.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new ProjectRepository instance.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

const projectColumns = `id, owner_id, name, description, motivation, progress_score, valuation_low, valuation_high, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.Motivation,
		&p.ProgressScore,
		&p.ValuationLow,
		&p.ValuationHigh,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new project for the given owner.
func (r *ProjectRepository) Create(ctx context.Context, ownerID uuid.UUID, name, description, motivation string) (*model.Project, error) {
	const query = `
		INSERT INTO projects (id, owner_id, name, description, motivation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + projectColumns

	p, err := scanProject(r.pool.QueryRow(ctx, query, uuid.New(), ownerID, name, description, motivation))
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// GetByID retrieves a project by id.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// GetOwned retrieves a project only if the given user owns it.
// Returns ErrProjectNotFound otherwise.
func (r *ProjectRepository) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*model.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND owner_id = $2`

	p, err := scanProject(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// SetProgressScore sets the project's progress score. Callers clamp to
// [0, 100] before writing; the CHECK constraint backstops it.
func (r *ProjectRepository) SetProgressScore(ctx context.Context, id uuid.UUID, score int) error {
	const query = `
		UPDATE projects
		SET progress_score = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, score)
	if err != nil {
		return fmt.Errorf("failed to set progress score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// SetValuation sets the project's valuation band.
func (r *ProjectRepository) SetValuation(ctx context.Context, id uuid.UUID, low, high int64) error {
	const query = `
		UPDATE projects
		SET valuation_low = $2, valuation_high = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, low, high)
	if err != nil {
		return fmt.Errorf("failed to set valuation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
