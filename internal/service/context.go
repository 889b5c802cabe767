package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vamo-backend/internal/ai"
	"vamo-backend/internal/metrics"
	"vamo-backend/internal/model"
	"vamo-backend/internal/repository"
)

// ChatContext is the bounded model input for one turn: a system prompt, the
// live message window and the rolling summary folded into the prompt.
type ChatContext struct {
	SystemPrompt string
	Messages     []*model.Message
	SummaryText  string
}

// ContextService maintains the bounded conversation context. Once more than
// summarizeThreshold unsummarized messages accumulate it folds the oldest
// into a rolling summary, keeping contextLimit messages live. Summarization
// is an optimization: if the model call fails the turn proceeds with the full
// unsummarized set.
type ContextService struct {
	messageRepo        *repository.MessageRepository
	summaryRepo        *repository.SummaryRepository
	aiClient           ai.Client
	metrics            *metrics.Metrics
	summarizeThreshold int
	contextLimit       int
	logger             zerolog.Logger
}

// NewContextService creates a new ContextService instance.
func NewContextService(
	messageRepo *repository.MessageRepository,
	summaryRepo *repository.SummaryRepository,
	aiClient ai.Client,
	m *metrics.Metrics,
	summarizeThreshold, contextLimit int,
	logger zerolog.Logger,
) *ContextService {
	if summarizeThreshold <= 0 {
		summarizeThreshold = 20
	}
	if contextLimit <= 0 {
		contextLimit = 11
	}
	return &ContextService{
		messageRepo:        messageRepo,
		summaryRepo:        summaryRepo,
		aiClient:           aiClient,
		metrics:            m,
		summarizeThreshold: summarizeThreshold,
		contextLimit:       contextLimit,
		logger:             logger.With().Str("component", "context_service").Logger(),
	}
}

// SplitForCompaction splits unsummarized messages into a to-summarize prefix
// and a to-keep suffix of size keep. Returns a nil prefix when the set is
// within the threshold.
func SplitForCompaction(msgs []*model.Message, threshold, keep int) (toSummarize, toKeep []*model.Message) {
	if len(msgs) <= threshold {
		return nil, msgs
	}
	cut := len(msgs) - keep
	return msgs[:cut], msgs[cut:]
}

// BuildSystemPrompt assembles the co-pilot system prompt. Authoritative
// current state comes first, then the condensed long-term memory.
func BuildSystemPrompt(project *model.Project, summaryText string) string {
	var b strings.Builder
	b.WriteString("You are Vamo, an AI co-pilot for startup founders. ")
	b.WriteString("You help the founder log progress, celebrate milestones and decide what to do next. ")
	b.WriteString("Be concise, concrete and encouraging.\n\n")

	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}
	if project.Motivation != "" {
		fmt.Fprintf(&b, "Founder motivation: %s\n", project.Motivation)
	}
	fmt.Fprintf(&b, "Current progress score: %d/100\n", project.ProgressScore)

	if summaryText != "" {
		b.WriteString("\nLong-term memory (summary of earlier conversation):\n")
		b.WriteString(summaryText)
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with strict JSON only, no code fences, in this shape:
{"reply": string, "intent": "feature"|"customer"|"revenue"|"ask"|"general", "business_update": {"progress_delta": int, "traction_signal": string|null, "valuation_adjustment": "up"|"down"|"none"}}
Classify intent from the actual content; never default to "general" when a more specific label fits.
progress_delta: 0 for no progress, 1 for minor updates, 2-3 for solid progress, 4-5 only for major milestones such as a first paying customer or significant revenue.
traction_signal: a short description of the concrete milestone, or null if none.`)

	return b.String()
}

// Build assembles the model context for a project's next turn, compacting
// older messages into a new summary when the unsummarized set exceeds the
// threshold.
func (s *ContextService) Build(ctx context.Context, project *model.Project) (*ChatContext, error) {
	var summaryText string
	var watermark time.Time

	latest, err := s.summaryRepo.GetLatest(ctx, project.ID)
	if err == nil {
		summaryText = latest.Summary
		watermark = latest.MessagesUpTo
	} else if !errors.Is(err, repository.ErrSummaryNotFound) {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}

	msgs, err := s.messageRepo.GetAfter(ctx, project.ID, watermark)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	toSummarize, toKeep := SplitForCompaction(msgs, s.summarizeThreshold, s.contextLimit)
	if len(toSummarize) > 0 {
		newSummary, err := s.summarize(ctx, summaryText, toSummarize)
		if err != nil {
			// Degrade gracefully: use the full unsummarized set this turn.
			s.logger.Warn().Err(err).
				Str("project_id", project.ID.String()).
				Int("pending", len(msgs)).
				Msg("summarization failed, proceeding unsummarized")
			s.metrics.AIFailuresTotal.WithLabelValues("summary").Inc()
			toKeep = msgs
		} else {
			upTo := toSummarize[len(toSummarize)-1].CreatedAt
			if _, err := s.summaryRepo.Insert(ctx, project.ID, newSummary, upTo); err != nil {
				s.logger.Warn().Err(err).Msg("failed to persist summary, proceeding unsummarized")
				s.metrics.AIFailuresTotal.WithLabelValues("summary").Inc()
				toKeep = msgs
			} else {
				summaryText = newSummary
				s.metrics.SummariesTotal.Inc()
			}
		}
	}

	return &ChatContext{
		SystemPrompt: BuildSystemPrompt(project, summaryText),
		Messages:     toKeep,
		SummaryText:  summaryText,
	}, nil
}

// summarize folds older messages into the existing summary text.
func (s *ContextService) summarize(ctx context.Context, existing string, msgs []*model.Message) (string, error) {
	var b strings.Builder
	if existing != "" {
		b.WriteString("Existing summary of the conversation so far:\n")
		b.WriteString(existing)
		b.WriteString("\n\n")
	}
	b.WriteString("Fold the following messages into a single updated summary. ")
	b.WriteString("Preserve concrete facts: milestones, customers, revenue, decisions and open questions. ")
	b.WriteString("Reply with the summary text only.\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}

	out, err := s.aiClient.Complete(ctx, "You compress startup founder conversations into dense running summaries.", []ai.ChatMessage{
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ai.ErrEmptyCompletion
	}
	return out, nil
}
