package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vamo-backend/internal/model"
	"vamo-backend/internal/repository"
)

// maxSignalDescription bounds the stored milestone description.
const maxSignalDescription = 500

// TractionService records concrete business milestones derived from
// AI-classified chat turns. It writes the structured traction row and a
// denormalized timeline event; the two serve different read paths.
type TractionService struct {
	tractionRepo *repository.TractionRepository
	activityRepo *repository.ActivityRepository
	logger       zerolog.Logger
}

// NewTractionService creates a new TractionService instance.
func NewTractionService(
	tractionRepo *repository.TractionRepository,
	activityRepo *repository.ActivityRepository,
	logger zerolog.Logger,
) *TractionService {
	return &TractionService{
		tractionRepo: tractionRepo,
		activityRepo: activityRepo,
		logger:       logger.With().Str("component", "traction_service").Logger(),
	}
}

// Record writes one traction signal for a milestone the AI extracted from a
// chat turn. Insert failures are logged, never returned: a lost signal must
// not abort the turn that produced it. Returns the signal, or nil on failure.
func (s *TractionService) Record(ctx context.Context, projectID, userID uuid.UUID, intent, description string, sourceMessageID *uuid.UUID) *model.TractionSignal {
	if len(description) > maxSignalDescription {
		description = description[:maxSignalDescription]
	}

	signalType := model.SignalTypeForIntent(intent)

	signal, err := s.tractionRepo.Insert(ctx, projectID, userID, signalType, description, "prompt", sourceMessageID,
		map[string]any{"intent": intent})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("project_id", projectID.String()).
			Str("signal_type", signalType).
			Msg("failed to record traction signal")
		return nil
	}

	// Denormalized timeline copy; same description, different read path.
	if _, err := s.activityRepo.Insert(ctx, projectID, userID, model.ActivityTraction, description,
		map[string]any{"signal_type": signalType, "signal_id": signal.ID.String()},
	); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record traction activity")
	}

	return signal
}
