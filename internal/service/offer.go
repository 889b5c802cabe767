package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vamo-backend/internal/ai"
	"vamo-backend/internal/metrics"
	"vamo-backend/internal/model"
	"vamo-backend/internal/repository"
)

// ErrOfferGeneration is returned when the model fails to produce a usable
// offer. Unlike the chat path there is no canned fallback.
var ErrOfferGeneration = errors.New("offer generation failed")

// offerSignalLimit caps how many traction signals feed the offer prompt.
const offerSignalLimit = 50

// OfferService generates playful non-binding acquisition offers from the
// project's accumulated traction. Generating a new offer expires the previous
// one and refreshes the project's valuation band.
type OfferService struct {
	projectRepo  *repository.ProjectRepository
	profileRepo  *repository.ProfileRepository
	offerRepo    *repository.OfferRepository
	tractionRepo *repository.TractionRepository
	activityRepo *repository.ActivityRepository
	messageRepo  *repository.MessageRepository
	aiClient     ai.Client
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewOfferService creates a new OfferService instance.
func NewOfferService(
	projectRepo *repository.ProjectRepository,
	profileRepo *repository.ProfileRepository,
	offerRepo *repository.OfferRepository,
	tractionRepo *repository.TractionRepository,
	activityRepo *repository.ActivityRepository,
	messageRepo *repository.MessageRepository,
	aiClient ai.Client,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *OfferService {
	return &OfferService{
		projectRepo:  projectRepo,
		profileRepo:  profileRepo,
		offerRepo:    offerRepo,
		tractionRepo: tractionRepo,
		activityRepo: activityRepo,
		messageRepo:  messageRepo,
		aiClient:     aiClient,
		metrics:      m,
		logger:       logger.With().Str("component", "offer_service").Logger(),
	}
}

// offerEvidence is everything the valuation prompt gets to see.
type offerEvidence struct {
	project       *model.Project
	signals       []*model.TractionSignal
	activityCount map[string]int64
	messageCount  int64
	linkedAssets  []string
}

// Generate produces a new acquisition offer for the project. Any model or
// parse failure fails the whole request; a stale offer band is worse than no
// offer at all.
func (s *OfferService) Generate(ctx context.Context, userID, projectID uuid.UUID) (*model.Offer, error) {
	project, err := s.projectRepo.GetOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	ev, err := s.gatherEvidence(ctx, project, userID)
	if err != nil {
		return nil, err
	}

	raw, err := s.aiClient.Complete(ctx, offerSystemPrompt, []ai.ChatMessage{
		{Role: "user", Content: buildOfferPrompt(ev)},
	})
	if err != nil {
		s.metrics.AIFailuresTotal.WithLabelValues("offer").Inc()
		s.metrics.OffersTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrOfferGeneration, err)
	}

	parsed, err := ParseOfferReply(raw)
	if err != nil {
		s.metrics.AIFailuresTotal.WithLabelValues("offer").Inc()
		s.metrics.OffersTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrOfferGeneration, err)
	}
	if parsed.OfferHigh < parsed.OfferLow {
		parsed.OfferLow, parsed.OfferHigh = parsed.OfferHigh, parsed.OfferLow
	}

	if expired, err := s.offerRepo.ExpireActive(ctx, projectID, userID); err != nil {
		return nil, fmt.Errorf("failed to expire previous offer: %w", err)
	} else if expired > 0 {
		s.logger.Info().Int64("expired", expired).
			Str("project_id", projectID.String()).
			Msg("expired previous offers")
	}

	offer, err := s.offerRepo.Insert(ctx, projectID, userID, parsed.OfferLow, parsed.OfferHigh, parsed.Reasoning, parsed.SignalsUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to persist offer: %w", err)
	}

	// The offer band doubles as the project's current valuation.
	if err := s.projectRepo.SetValuation(ctx, projectID, offer.OfferLow, offer.OfferHigh); err != nil {
		s.logger.Warn().Err(err).
			Str("project_id", projectID.String()).
			Msg("failed to update project valuation")
	}

	if _, err := s.activityRepo.Insert(ctx, projectID, userID, model.ActivityOfferReceived,
		fmt.Sprintf("Received an acquisition offer of $%d-$%d", offer.OfferLow, offer.OfferHigh),
		map[string]any{"offer_id": offer.ID.String(), "offer_low": offer.OfferLow, "offer_high": offer.OfferHigh},
	); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record offer activity")
	}

	s.metrics.OffersTotal.WithLabelValues("generated").Inc()
	return offer, nil
}

// GetActive returns the project's current active offer.
func (s *OfferService) GetActive(ctx context.Context, userID, projectID uuid.UUID) (*model.Offer, error) {
	if _, err := s.projectRepo.GetOwned(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.offerRepo.GetActive(ctx, projectID, userID)
}

func (s *OfferService) gatherEvidence(ctx context.Context, project *model.Project, userID uuid.UUID) (*offerEvidence, error) {
	signals, err := s.tractionRepo.GetByProject(ctx, project.ID, offerSignalLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load traction signals: %w", err)
	}

	counts, err := s.activityRepo.CountByType(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity counts: %w", err)
	}

	msgCount, err := s.messageRepo.CountByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var assets []string
	if profile.LinkedInURL != nil {
		assets = append(assets, "linkedin")
	}
	if profile.GitHubURL != nil {
		assets = append(assets, "github")
	}
	if profile.WebsiteURL != nil {
		assets = append(assets, "website")
	}

	return &offerEvidence{
		project:       project,
		signals:       signals,
		activityCount: counts,
		messageCount:  msgCount,
		linkedAssets:  assets,
	}, nil
}

const offerSystemPrompt = `You are a playful acquisition-offer generator for an early-stage founder game. You produce small, non-binding offers grounded strictly in the evidence given. You never inflate: no evidence means the bottom tier.

Tiers:
- Idea stage (no traction signals, little activity): $50 - $500
- Early traction (a few shipped features or first customers): $500 - $5,000
- Real momentum (paying customers, logged revenue, consistent activity): $5,000 - $50,000

Respond with strict JSON only, no code fences:
{"offer_low": number, "offer_high": number, "reasoning": string, "signals_used": [string]}
offer_low and offer_high are whole US dollars with offer_low <= offer_high. reasoning is 1-3 playful sentences addressed to the founder. signals_used lists the evidence lines the offer rests on, empty if none.`

func buildOfferPrompt(ev *offerEvidence) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", ev.project.Name)
	if ev.project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ev.project.Description)
	}
	fmt.Fprintf(&b, "Progress score: %d/100\n", ev.project.ProgressScore)
	fmt.Fprintf(&b, "Total chat messages: %d\n", ev.messageCount)

	if len(ev.activityCount) > 0 {
		b.WriteString("Activity counts:\n")
		for _, t := range []string{model.ActivityPrompt, model.ActivityReward, model.ActivityTraction, model.ActivityOfferReceived, model.ActivityAssetLinked} {
			if c, ok := ev.activityCount[t]; ok {
				fmt.Fprintf(&b, "- %s: %d\n", t, c)
			}
		}
	}

	if len(ev.linkedAssets) > 0 {
		fmt.Fprintf(&b, "Linked assets: %s\n", strings.Join(ev.linkedAssets, ", "))
	}

	if len(ev.signals) == 0 {
		b.WriteString("Traction signals: none\n")
	} else {
		b.WriteString("Traction signals (newest first):\n")
		for _, sig := range ev.signals {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", sig.SignalType, sig.Description, sig.CreatedAt.Format("2006-01-02"))
		}
	}

	b.WriteString("\nMake your offer.")
	return b.String()
}
