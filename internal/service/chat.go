package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vamo-backend/internal/ai"
	"vamo-backend/internal/metrics"
	"vamo-backend/internal/model"
	"vamo-backend/internal/repository"
)

// Chat validation errors.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrInvalidTag     = errors.New("invalid tag")
)

// maxActivityExcerpt bounds the message excerpt stored on the timeline.
const maxActivityExcerpt = 200

// TurnRequest is one founder chat turn.
type TurnRequest struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Message   string
	Tag       *string
}

// TurnResult is the completed turn: the assistant reply plus everything the
// turn changed.
type TurnResult struct {
	UserMessage      *model.Message
	AssistantMessage *model.Message
	Intent           string
	Fallback         bool
	BusinessUpdate   BusinessUpdate
	PineapplesEarned int64
	NewBalance       int64
	ProgressScore    int
	TractionSignal   *model.TractionSignal
}

// ChatService orchestrates one chat turn: persist the user message, build the
// bounded context, call the model, parse or fall back, then fan out rewards,
// traction and progress. Once the user message is stored the turn always
// produces a reply; downstream failures degrade instead of erroring.
type ChatService struct {
	projectRepo  *repository.ProjectRepository
	messageRepo  *repository.MessageRepository
	activityRepo *repository.ActivityRepository
	rewards      *RewardService
	traction     *TractionService
	contextSvc   *ContextService
	aiClient     ai.Client
	metrics      *metrics.Metrics
	maxLength    int
	logger       zerolog.Logger
}

// NewChatService creates a new ChatService instance.
func NewChatService(
	projectRepo *repository.ProjectRepository,
	messageRepo *repository.MessageRepository,
	activityRepo *repository.ActivityRepository,
	rewards *RewardService,
	traction *TractionService,
	contextSvc *ContextService,
	aiClient ai.Client,
	m *metrics.Metrics,
	maxLength int,
	logger zerolog.Logger,
) *ChatService {
	if maxLength <= 0 {
		maxLength = 10000
	}
	return &ChatService{
		projectRepo:  projectRepo,
		messageRepo:  messageRepo,
		activityRepo: activityRepo,
		rewards:      rewards,
		traction:     traction,
		contextSvc:   contextSvc,
		aiClient:     aiClient,
		metrics:      m,
		maxLength:    maxLength,
		logger:       logger.With().Str("component", "chat_service").Logger(),
	}
}

func (s *ChatService) validate(req *TurnRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	if len(req.Message) > s.maxLength {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(req.Message))
	}
	if req.Tag != nil && !model.ValidIntent(*req.Tag) {
		return fmt.Errorf("%w: %q", ErrInvalidTag, *req.Tag)
	}
	return nil
}

// Turn runs one full chat turn. It fails only on invalid input, an unknown or
// unowned project, or failure to persist the user's message; everything after
// that point degrades to the fallback reply.
func (s *ChatService) Turn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetOwned(ctx, req.ProjectID, req.UserID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.messageRepo.InsertUser(ctx, req.ProjectID, req.UserID, req.Message, req.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	reply, fallback := s.complete(ctx, project, userMsg)

	earned := s.awardTurn(ctx, req, userMsg, reply, fallback)

	assistantMsg, err := s.messageRepo.InsertAssistant(ctx, req.ProjectID, req.UserID, reply.Reply, reply.Intent, earned)
	if err != nil {
		// The reply was already generated and the rewards granted; synthesize
		// an unpersisted message so the response stays complete.
		s.logger.Error().Err(err).
			Str("project_id", req.ProjectID.String()).
			Msg("failed to persist assistant message")
		intent := reply.Intent
		assistantMsg = &model.Message{
			ID:               uuid.New(),
			ProjectID:        req.ProjectID,
			UserID:           req.UserID,
			Role:             model.RoleAssistant,
			Content:          reply.Reply,
			ExtractedIntent:  &intent,
			PineapplesEarned: earned,
			CreatedAt:        time.Now(),
		}
	}

	s.recordPromptActivity(ctx, req, userMsg, reply)

	var signal *model.TractionSignal
	progressScore := project.ProgressScore
	if !fallback {
		if sig := reply.BusinessUpdate.TractionSignal; sig != nil {
			signal = s.traction.Record(ctx, req.ProjectID, req.UserID, reply.Intent, *sig, &userMsg.ID)
		}
		progressScore = s.applyProgress(ctx, project, reply.BusinessUpdate.ProgressDelta)
	}

	outcome := "parsed"
	if fallback {
		outcome = "fallback"
	}
	s.metrics.ChatTurnsTotal.WithLabelValues(reply.Intent, outcome).Inc()

	var balance int64
	if reconciled, err := s.rewards.ReconcileBalance(ctx, req.UserID); err == nil {
		balance = reconciled
	} else {
		s.logger.Warn().Err(err).Msg("failed to reconcile balance after turn")
	}

	return &TurnResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Intent:           reply.Intent,
		Fallback:         fallback,
		BusinessUpdate:   reply.BusinessUpdate,
		PineapplesEarned: earned,
		NewBalance:       balance,
		ProgressScore:    progressScore,
		TractionSignal:   signal,
	}, nil
}

// complete builds the context, calls the model and parses the reply, falling
// back to the canned reply on any failure along the way.
func (s *ChatService) complete(ctx context.Context, project *model.Project, userMsg *model.Message) (*AssistantReply, bool) {
	chatCtx, err := s.contextSvc.Build(ctx, project)
	if err != nil {
		s.logger.Error().Err(err).
			Str("project_id", project.ID.String()).
			Msg("failed to build chat context")
		s.metrics.AIFailuresTotal.WithLabelValues("chat").Inc()
		return FallbackReply(userMsg.Tag), true
	}

	history := make([]ai.ChatMessage, 0, len(chatCtx.Messages))
	for _, m := range chatCtx.Messages {
		content := m.Content
		if m.Role == model.RoleUser && m.Tag != nil {
			content = fmt.Sprintf("[%s] %s", *m.Tag, content)
		}
		history = append(history, ai.ChatMessage{Role: m.Role, Content: content})
	}

	raw, err := s.aiClient.Complete(ctx, chatCtx.SystemPrompt, history)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("project_id", project.ID.String()).
			Msg("chat completion failed")
		s.metrics.AIFailuresTotal.WithLabelValues("chat").Inc()
		return FallbackReply(userMsg.Tag), true
	}

	reply, err := ParseAssistantReply(raw)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("project_id", project.ID.String()).
			Msg("failed to parse chat completion")
		s.metrics.AIFailuresTotal.WithLabelValues("chat").Inc()
		return FallbackReply(userMsg.Tag), true
	}
	return reply, false
}

// awardTurn grants all rewards for one turn, keyed off the stored user message
// id so retried turns never double-pay. Award failures are logged; the turn
// still completes.
func (s *ChatService) awardTurn(ctx context.Context, req *TurnRequest, userMsg *model.Message, reply *AssistantReply, fallback bool) int64 {
	var earned int64

	award := func(eventType, key string) {
		res, err := s.rewards.Award(ctx, req.UserID, req.ProjectID, eventType, key)
		if err != nil {
			s.logger.Error().Err(err).
				Str("event_type", eventType).
				Str("idempotency_key", key).
				Msg("failed to award reward")
			return
		}
		if res.Rewarded {
			earned += res.Amount
		}
	}

	award(model.EventPrompt, fmt.Sprintf("%s-%s", userMsg.ID, model.EventPrompt))

	if req.Tag != nil && model.RewardableTag(*req.Tag) {
		award(model.EventTagPrompt, fmt.Sprintf("%s-%s", userMsg.ID, model.EventTagPrompt))
	}

	// Milestone bonus only when the model extracted a concrete signal; the
	// fallback reply never carries one.
	if !fallback && reply.BusinessUpdate.TractionSignal != nil {
		signalType := model.SignalTypeForIntent(reply.Intent)
		award(signalType, fmt.Sprintf("%s-%s", userMsg.ID, signalType))
	}

	return earned
}

// recordPromptActivity writes the turn's timeline row, best effort.
func (s *ChatService) recordPromptActivity(ctx context.Context, req *TurnRequest, userMsg *model.Message, reply *AssistantReply) {
	excerpt := req.Message
	if len(excerpt) > maxActivityExcerpt {
		excerpt = excerpt[:maxActivityExcerpt]
	}

	meta := map[string]any{"intent": reply.Intent, "message_id": userMsg.ID.String()}
	if req.Tag != nil {
		meta["tag"] = *req.Tag
	}
	if reply.BusinessUpdate.TractionSignal != nil {
		meta["traction_signal"] = *reply.BusinessUpdate.TractionSignal
	}

	if _, err := s.activityRepo.Insert(ctx, req.ProjectID, req.UserID, model.ActivityPrompt, excerpt, meta); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record prompt activity")
	}
}

// applyProgress raises the project's progress score by the clamped delta,
// capped at 100. Returns the effective score after the write attempt.
func (s *ChatService) applyProgress(ctx context.Context, project *model.Project, delta int) int {
	if delta <= 0 {
		return project.ProgressScore
	}

	score := project.ProgressScore + delta
	if score > 100 {
		score = 100
	}
	if score == project.ProgressScore {
		return project.ProgressScore
	}

	if err := s.projectRepo.SetProgressScore(ctx, project.ID, score); err != nil {
		s.logger.Warn().Err(err).
			Str("project_id", project.ID.String()).
			Int("score", score).
			Msg("failed to update progress score")
		return project.ProgressScore
	}
	s.metrics.ProgressDeltaTotal.Add(float64(score - project.ProgressScore))
	return score
}
