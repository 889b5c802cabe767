// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vamo-backend/internal/metrics"
	"vamo-backend/internal/model"
	"vamo-backend/internal/repository"
)

// Reward engine errors.
var (
	ErrInvalidEventType = errors.New("invalid reward event type")
	ErrProfileNotFound  = errors.New("profile not found")
)

// AwardResult describes the outcome of one award call.
type AwardResult struct {
	Rewarded      bool
	Duplicate     bool
	Amount        int64
	NewBalance    int64
	LedgerEntryID uuid.UUID
}

// RewardService implements the idempotent reward award algorithm on the
// append-only ledger. The profile balance is a cached projection; the unique
// idempotency key constraint at the storage layer resolves concurrent races.
type RewardService struct {
	ledgerRepo   *repository.LedgerRepository
	profileRepo  *repository.ProfileRepository
	activityRepo *repository.ActivityRepository
	metrics      *metrics.Metrics
	hourlyLimit  int
	rateWindow   time.Duration
	logger       zerolog.Logger
}

// NewRewardService creates a new RewardService instance.
func NewRewardService(
	ledgerRepo *repository.LedgerRepository,
	profileRepo *repository.ProfileRepository,
	activityRepo *repository.ActivityRepository,
	m *metrics.Metrics,
	hourlyLimit int,
	rateWindow time.Duration,
	logger zerolog.Logger,
) *RewardService {
	if hourlyLimit <= 0 {
		hourlyLimit = 60
	}
	if rateWindow <= 0 {
		rateWindow = time.Hour
	}
	return &RewardService{
		ledgerRepo:   ledgerRepo,
		profileRepo:  profileRepo,
		activityRepo: activityRepo,
		metrics:      m,
		hourlyLimit:  hourlyLimit,
		rateWindow:   rateWindow,
		logger:       logger.With().Str("component", "reward_service").Logger(),
	}
}

func duplicateResult(e *model.RewardEntry) *AwardResult {
	return &AwardResult{
		Rewarded:      false,
		Duplicate:     true,
		Amount:        e.Amount,
		NewBalance:    e.BalanceAfter,
		LedgerEntryID: e.ID,
	}
}

// Award grants a reward for one logical event, identified by its idempotency
// key. Calling it again with the same key - whether a retry, a double submit
// or a concurrent duplicate - returns the original result and changes nothing.
func (s *RewardService) Award(ctx context.Context, userID, projectID uuid.UUID, eventType, idempotencyKey string) (*AwardResult, error) {
	amount, ok := model.RewardAmount(eventType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}

	// Fast path: the key was already consumed.
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err == nil {
		s.metrics.RewardsTotal.WithLabelValues(eventType, "duplicate").Inc()
		return duplicateResult(existing), nil
	}
	if !errors.Is(err, repository.ErrEntryNotFound) {
		return nil, fmt.Errorf("failed idempotency check: %w", err)
	}

	// Prompt-class events are capped per trailing window. The event is still
	// recorded at zero value so the key stays consumed and the audit trail
	// stays complete.
	rateLimited := false
	if eventType == model.EventPrompt || eventType == model.EventTagPrompt {
		count, err := s.ledgerRepo.CountEventsSince(ctx, userID, projectID, model.PromptEventTypes(), time.Now().Add(-s.rateWindow))
		if err != nil {
			return nil, fmt.Errorf("failed rate limit check: %w", err)
		}
		if count >= s.hourlyLimit {
			amount = 0
			rateLimited = true
		}
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	entry, err := s.ledgerRepo.Insert(ctx, userID, projectID, eventType, amount, profile.Balance+amount, idempotencyKey)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost the race to a concurrent identical call: the winner's row
			// is the result.
			winner, err := s.ledgerRepo.GetByIdempotencyKey(ctx, idempotencyKey)
			if err != nil {
				return nil, fmt.Errorf("failed to read winning ledger entry: %w", err)
			}
			s.metrics.RewardsTotal.WithLabelValues(eventType, "duplicate").Inc()
			return duplicateResult(winner), nil
		}
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	// The ledger is the source of truth; a failed cache write is logged and
	// reconciled later, never rolled back.
	if amount > 0 {
		if _, err := s.profileRepo.SetBalance(ctx, userID, entry.BalanceAfter); err != nil {
			s.logger.Error().Err(err).
				Str("user_id", userID.String()).
				Int64("balance_after", entry.BalanceAfter).
				Msg("failed to update cached balance")
		}
	}

	// Best-effort side effects; failures never surface to the caller.
	if _, err := s.activityRepo.Insert(ctx, projectID, userID, model.ActivityReward,
		fmt.Sprintf("Earned %d pineapples for %s", amount, eventType),
		map[string]any{"event_type": eventType, "amount": amount, "rate_limited": rateLimited},
	); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record reward activity")
	}

	result := "granted"
	if rateLimited {
		result = "rate_limited"
	}
	s.metrics.RewardsTotal.WithLabelValues(eventType, result).Inc()
	if amount > 0 {
		s.metrics.PineapplesGranted.Add(float64(amount))
	}

	return &AwardResult{
		Rewarded:      amount > 0,
		Duplicate:     false,
		Amount:        amount,
		NewBalance:    entry.BalanceAfter,
		LedgerEntryID: entry.ID,
	}, nil
}

// assetLinkEvents maps asset-link event types to the profile field they attest.
var assetLinkEvents = map[string]string{
	model.EventLinkLinkedIn: "linkedin",
	model.EventLinkGitHub:   "github",
	model.EventLinkWebsite:  "website",
}

// AwardAssetLink grants the one-time bonus for linking an external asset. The
// key is derived from the user and event type, so re-linking the same asset is
// a duplicate forever.
func (s *RewardService) AwardAssetLink(ctx context.Context, userID, projectID uuid.UUID, eventType string) (*AwardResult, error) {
	asset, ok := assetLinkEvents[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an asset link event", ErrInvalidEventType, eventType)
	}

	res, err := s.Award(ctx, userID, projectID, eventType, fmt.Sprintf("%s-%s", userID, eventType))
	if err != nil {
		return nil, err
	}

	if !res.Duplicate {
		if _, err := s.activityRepo.Insert(ctx, projectID, userID, model.ActivityAssetLinked,
			fmt.Sprintf("Linked %s profile", asset),
			map[string]any{"asset": asset, "event_type": eventType},
		); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record asset link activity")
		}
	}
	return res, nil
}

// ReconcileBalance rebuilds the cached profile balance from the latest ledger
// entry. Used when the best-effort balance write in Award was lost.
func (s *RewardService) ReconcileBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	latest, err := s.ledgerRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			// No ledger history: the balance is zero by definition.
			if _, err := s.profileRepo.SetBalance(ctx, userID, 0); err != nil {
				return 0, fmt.Errorf("failed to reset balance: %w", err)
			}
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read latest ledger entry: %w", err)
	}

	if _, err := s.profileRepo.SetBalance(ctx, userID, latest.BalanceAfter); err != nil {
		return 0, fmt.Errorf("failed to write reconciled balance: %w", err)
	}
	return latest.BalanceAfter, nil
}
