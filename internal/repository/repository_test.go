// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"vamo-backend/internal/model"
	"vamo-backend/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Same migrations the server runs at startup.
	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// createTestProfile creates a profile with a unique email.
func createTestProfile(t *testing.T, pool *pgxpool.Pool) *model.Profile {
	t.Helper()
	repo := NewProfileRepository(pool)
	p, err := repo.Create(context.Background(), fmt.Sprintf("%s@test.dev", uuid.New()), "Test Founder")
	require.NoError(t, err)
	return p
}

// createTestProject creates a project owned by the given profile.
func createTestProject(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID) *model.Project {
	t.Helper()
	repo := NewProjectRepository(pool)
	p, err := repo.Create(context.Background(), ownerID, "Acme", "AI for accountants", "Quit my job to build this")
	require.NoError(t, err)
	return p
}

// ============================================================================
// ProfileRepository Tests
// ============================================================================

func TestProfileRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProfileRepository(pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, "founder@test.dev", "Founder")
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.Balance) // New profiles start with zero pineapples
	assert.Nil(t, created.LinkedInURL)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "founder@test.dev", got.Email)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileRepository_SetBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProfileRepository(pool)
	ctx := context.Background()
	profile := createTestProfile(t, pool)

	updated, err := repo.SetBalance(ctx, profile.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), updated.Balance)

	// Exact-set semantics: a second write replaces, never accumulates.
	updated, err = repo.SetBalance(ctx, profile.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.Balance)

	_, err = repo.SetBalance(ctx, uuid.New(), 100)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

// ============================================================================
// ProjectRepository Tests
// ============================================================================

func TestProjectRepository_GetOwned(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProjectRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	other := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	got, err := repo.GetOwned(ctx, project.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)

	// Someone else's project looks like a missing project.
	_, err = repo.GetOwned(ctx, project.ID, other.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectRepository_SetProgressScore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProjectRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)
	assert.Equal(t, 0, project.ProgressScore)

	require.NoError(t, repo.SetProgressScore(ctx, project.ID, 37))

	got, err := repo.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 37, got.ProgressScore)

	err = repo.SetProgressScore(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectRepository_SetValuation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProjectRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)
	assert.Nil(t, project.ValuationLow)

	require.NoError(t, repo.SetValuation(ctx, project.ID, 500, 5000))

	got, err := repo.GetByID(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ValuationLow)
	require.NotNil(t, got.ValuationHigh)
	assert.Equal(t, int64(500), *got.ValuationLow)
	assert.Equal(t, int64(5000), *got.ValuationHigh)
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_InsertDuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	entry, err := repo.Insert(ctx, owner.ID, project.ID, model.EventPrompt, 1, 1, "msg1-prompt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Amount)
	assert.Equal(t, int64(1), entry.BalanceAfter)

	// Same key again: the unique constraint wins, regardless of the payload.
	_, err = repo.Insert(ctx, owner.ID, project.ID, model.EventPrompt, 5, 6, "msg1-prompt")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	got, err := repo.GetByIdempotencyKey(ctx, "msg1-prompt")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, int64(1), got.Amount)
}

func TestLedgerRepository_CountEventsSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	before := time.Now().Add(-time.Minute)

	_, err := repo.Insert(ctx, owner.ID, project.ID, model.EventPrompt, 1, 1, "k1")
	require.NoError(t, err)
	_, err = repo.Insert(ctx, owner.ID, project.ID, model.EventTagPrompt, 1, 2, "k2")
	require.NoError(t, err)
	// Not a prompt-class event, must not count toward the window.
	_, err = repo.Insert(ctx, owner.ID, project.ID, model.EventRevenueLogged, 10, 12, "k3")
	require.NoError(t, err)

	count, err := repo.CountEventsSince(ctx, owner.ID, project.ID, model.PromptEventTypes(), before)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A cutoff in the future excludes everything.
	count, err = repo.CountEventsSince(ctx, owner.ID, project.ID, model.PromptEventTypes(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLedgerRepository_GetLatestByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	_, err := repo.GetLatestByUser(ctx, owner.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = repo.Insert(ctx, owner.ID, project.ID, model.EventPrompt, 1, 1, "k1")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = repo.Insert(ctx, owner.ID, project.ID, model.EventLinkGitHub, 5, 6, "k2")
	require.NoError(t, err)

	latest, err := repo.GetLatestByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "k2", latest.IdempotencyKey)
	assert.Equal(t, int64(6), latest.BalanceAfter)
}

// ============================================================================
// MessageRepository Tests
// ============================================================================

func TestMessageRepository_GetAfterOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMessageRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	tag := model.IntentFeature
	first, err := repo.InsertUser(ctx, project.ID, owner.ID, "shipped the dashboard", &tag)
	require.NoError(t, err)
	require.NotNil(t, first.Tag)
	assert.Equal(t, model.IntentFeature, *first.Tag)

	time.Sleep(10 * time.Millisecond)
	second, err := repo.InsertAssistant(ctx, project.ID, owner.ID, "Nice work!", model.IntentFeature, 2)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, second.Role)
	assert.Equal(t, int64(2), second.PineapplesEarned)

	// Zero time returns the full history, oldest first.
	msgs, err := repo.GetAfter(ctx, project.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)

	// Strictly-after semantics: the watermark message itself is excluded.
	msgs, err = repo.GetAfter(ctx, project.ID, first.CreatedAt)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, second.ID, msgs[0].ID)

	count, err := repo.CountByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// ============================================================================
// SummaryRepository Tests
// ============================================================================

func TestSummaryRepository_GetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSummaryRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	_, err := repo.GetLatest(ctx, project.ID)
	assert.ErrorIs(t, err, ErrSummaryNotFound)

	old := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-time.Hour)

	_, err = repo.Insert(ctx, project.ID, "early days", old)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, project.ID, "shipped v1, first customer", newer)
	require.NoError(t, err)

	latest, err := repo.GetLatest(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "shipped v1, first customer", latest.Summary)
	assert.WithinDuration(t, newer, latest.MessagesUpTo, time.Second)

	count, err := repo.CountByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// ============================================================================
// TractionRepository Tests
// ============================================================================

func TestTractionRepository_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTractionRepository(pool)
	msgRepo := NewMessageRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	msg, err := msgRepo.InsertUser(ctx, project.ID, owner.ID, "first paying customer!", nil)
	require.NoError(t, err)

	signal, err := repo.Insert(ctx, project.ID, owner.ID, model.SignalCustomerAdded,
		"First paying customer", "prompt", &msg.ID, map[string]any{"intent": "customer"})
	require.NoError(t, err)
	assert.Equal(t, model.SignalCustomerAdded, signal.SignalType)
	require.NotNil(t, signal.MessageID)
	assert.Equal(t, msg.ID, *signal.MessageID)
	assert.Equal(t, "customer", signal.Metadata["intent"])

	signals, err := repo.GetByProject(ctx, project.ID, 10)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, signal.ID, signals[0].ID)
}

// ============================================================================
// ActivityRepository Tests
// ============================================================================

func TestActivityRepository_CountByType(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewActivityRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	_, err := repo.Insert(ctx, project.ID, owner.ID, model.ActivityPrompt, "asked a question", nil)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, project.ID, owner.ID, model.ActivityPrompt, "logged progress", nil)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, project.ID, owner.ID, model.ActivityReward, "earned 1 pineapple", map[string]any{"amount": 1})
	require.NoError(t, err)

	counts, err := repo.CountByType(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.ActivityPrompt])
	assert.Equal(t, int64(1), counts[model.ActivityReward])

	activities, err := repo.GetByProject(ctx, project.ID, 10)
	require.NoError(t, err)
	assert.Len(t, activities, 3)
}

// ============================================================================
// OfferRepository Tests
// ============================================================================

func TestOfferRepository_ExpireActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOfferRepository(pool)
	ctx := context.Background()

	owner := createTestProfile(t, pool)
	project := createTestProject(t, pool, owner.ID)

	_, err := repo.GetActive(ctx, project.ID, owner.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)

	first, err := repo.Insert(ctx, project.ID, owner.ID, 100, 500, "idea stage", nil)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusActive, first.Status)
	assert.Empty(t, first.Signals)

	expired, err := repo.ExpireActive(ctx, project.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	second, err := repo.Insert(ctx, project.ID, owner.ID, 500, 5000, "early traction",
		[]string{"first paying customer"})
	require.NoError(t, err)

	active, err := repo.GetActive(ctx, project.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, []string{"first paying customer"}, active.Signals)
}
