package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"vamo-backend/internal/model"
)

// Parse errors.
var (
	ErrMalformedReply = errors.New("malformed model reply")
)

// BusinessUpdate is the validated, clamped business assessment of a chat turn.
type BusinessUpdate struct {
	ProgressDelta       int     `json:"progress_delta"`
	TractionSignal      *string `json:"traction_signal"`
	ValuationAdjustment string  `json:"valuation_adjustment"`
}

// AssistantReply is the validated result of parsing the model's chat output.
type AssistantReply struct {
	Reply          string
	Intent         string
	BusinessUpdate BusinessUpdate
}

// OfferReply is the validated result of parsing the model's offer output.
type OfferReply struct {
	OfferLow    int64
	OfferHigh   int64
	Reasoning   string
	SignalsUsed []string
}

// stripCodeFence removes a markdown code fence wrapping, if present. Models
// often wrap JSON in ```json ... ``` despite instructions not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language hint on the opening fence line.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// clampProgressDelta coerces the model's progress delta to an int in [0, 5].
// Non-numeric values become 0.
func clampProgressDelta(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	d := int(math.Round(f))
	if d < 0 {
		return 0
	}
	if d > 5 {
		return 5
	}
	return d
}

// normalizeValuationAdjustment maps anything outside {up, down, none} to none.
func normalizeValuationAdjustment(s string) string {
	switch s {
	case model.ValuationUp, model.ValuationDown, model.ValuationNone:
		return s
	}
	return model.ValuationNone
}

type rawBusinessUpdate struct {
	ProgressDelta       json.RawMessage `json:"progress_delta"`
	TractionSignal      *string         `json:"traction_signal"`
	ValuationAdjustment string          `json:"valuation_adjustment"`
}

type rawAssistantReply struct {
	Reply          any                `json:"reply"`
	Intent         any                `json:"intent"`
	BusinessUpdate *rawBusinessUpdate `json:"business_update"`
}

// ParseAssistantReply parses and validates the model's raw chat output.
// Reply must be a string and intent one of the five valid values; everything
// in the business update is clamped or defaulted rather than trusted.
func ParseAssistantReply(raw string) (*AssistantReply, error) {
	var parsed rawAssistantReply
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	reply, ok := parsed.Reply.(string)
	if !ok || reply == "" {
		return nil, fmt.Errorf("%w: reply is not a string", ErrMalformedReply)
	}

	intent, ok := parsed.Intent.(string)
	if !ok || !model.ValidIntent(intent) {
		return nil, fmt.Errorf("%w: invalid intent %q", ErrMalformedReply, parsed.Intent)
	}

	update := BusinessUpdate{ValuationAdjustment: model.ValuationNone}
	if parsed.BusinessUpdate != nil {
		update.ProgressDelta = clampProgressDelta(parsed.BusinessUpdate.ProgressDelta)
		update.ValuationAdjustment = normalizeValuationAdjustment(parsed.BusinessUpdate.ValuationAdjustment)
		if sig := parsed.BusinessUpdate.TractionSignal; sig != nil && strings.TrimSpace(*sig) != "" {
			trimmed := strings.TrimSpace(*sig)
			update.TractionSignal = &trimmed
		}
	}

	return &AssistantReply{
		Reply:          reply,
		Intent:         intent,
		BusinessUpdate: update,
	}, nil
}

// fallbackMessage is returned when the model call or parse fails. The user's
// message has already been persisted at this point, so the turn degrades
// instead of failing.
const fallbackMessage = "I couldn't process that right now, but your update was saved. Keep going!"

// FallbackReply builds the safe canned reply for a failed model call. The
// intent falls back to the caller-supplied tag, or "general".
func FallbackReply(tag *string) *AssistantReply {
	intent := model.IntentGeneral
	if tag != nil && model.ValidIntent(*tag) {
		intent = *tag
	}
	return &AssistantReply{
		Reply:  fallbackMessage,
		Intent: intent,
		BusinessUpdate: BusinessUpdate{
			ProgressDelta:       0,
			TractionSignal:      nil,
			ValuationAdjustment: model.ValuationNone,
		},
	}
}

type rawOfferReply struct {
	OfferLow    json.RawMessage `json:"offer_low"`
	OfferHigh   json.RawMessage `json:"offer_high"`
	Reasoning   any             `json:"reasoning"`
	SignalsUsed []any           `json:"signals_used"`
}

// parseOfferAmount requires a JSON number and clamps it to a non-negative
// integer dollar amount via rounding.
func parseOfferAmount(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing offer amount", ErrMalformedReply)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: offer amount is not a number", ErrMalformedReply)
	}
	n := int64(math.Round(f))
	if n < 0 {
		n = 0
	}
	return n, nil
}

// ParseOfferReply parses and validates the model's raw offer output. Unlike
// the chat path there is no fallback: any violation fails the parse, and the
// caller fails the whole request.
func ParseOfferReply(raw string) (*OfferReply, error) {
	var parsed rawOfferReply
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	low, err := parseOfferAmount(parsed.OfferLow)
	if err != nil {
		return nil, err
	}
	high, err := parseOfferAmount(parsed.OfferHigh)
	if err != nil {
		return nil, err
	}

	reasoning, ok := parsed.Reasoning.(string)
	if !ok {
		return nil, fmt.Errorf("%w: reasoning is not a string", ErrMalformedReply)
	}
	if parsed.SignalsUsed == nil {
		return nil, fmt.Errorf("%w: signals_used is not an array", ErrMalformedReply)
	}

	signals := make([]string, 0, len(parsed.SignalsUsed))
	for _, s := range parsed.SignalsUsed {
		if str, ok := s.(string); ok {
			signals = append(signals, str)
		}
	}

	return &OfferReply{
		OfferLow:    low,
		OfferHigh:   high,
		Reasoning:   reasoning,
		SignalsUsed: signals,
	}, nil
}
