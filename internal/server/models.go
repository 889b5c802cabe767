package server

import (
	"time"

	"vamo-backend/internal/model"
	"vamo-backend/internal/service"
)

// ProblemDetail is the JSON error body for all non-2xx responses.
type ProblemDetail struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	ProjectID string  `json:"projectId"`
	Message   string  `json:"message"`
	Tag       *string `json:"tag,omitempty"`
}

// MessageDTO is the wire shape of a chat message.
type MessageDTO struct {
	ID               string    `json:"id"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	Tag              *string   `json:"tag,omitempty"`
	ExtractedIntent  *string   `json:"extractedIntent,omitempty"`
	PineapplesEarned int64     `json:"pineapplesEarned"`
	CreatedAt        time.Time `json:"createdAt"`
}

func messageDTO(m *model.Message) *MessageDTO {
	return &MessageDTO{
		ID:               m.ID.String(),
		Role:             m.Role,
		Content:          m.Content,
		Tag:              m.Tag,
		ExtractedIntent:  m.ExtractedIntent,
		PineapplesEarned: m.PineapplesEarned,
		CreatedAt:        m.CreatedAt,
	}
}

// TractionSignalDTO is the wire shape of a recorded traction signal.
type TractionSignalDTO struct {
	ID          string    `json:"id"`
	SignalType  string    `json:"signalType"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatResponse is the body of a successful chat turn.
type ChatResponse struct {
	UserMessage      *MessageDTO            `json:"userMessage"`
	AssistantMessage *MessageDTO            `json:"assistantMessage"`
	Intent           string                 `json:"intent"`
	Fallback         bool                   `json:"fallback"`
	BusinessUpdate   service.BusinessUpdate `json:"businessUpdate"`
	PineapplesEarned int64                  `json:"pineapplesEarned"`
	NewBalance       int64                  `json:"newBalance"`
	ProgressScore    int                    `json:"progressScore"`
	TractionSignal   *TractionSignalDTO     `json:"tractionSignal,omitempty"`
}

// RewardRequest is the body of POST /api/v1/rewards. Asset-link event types
// derive their idempotency key server-side; all others must supply one.
type RewardRequest struct {
	UserID         string `json:"userId"`
	ProjectID      string `json:"projectId"`
	EventType      string `json:"eventType"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// RewardResponse is the body of a successful reward call.
type RewardResponse struct {
	Rewarded      bool   `json:"rewarded"`
	Duplicate     bool   `json:"duplicate"`
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"newBalance"`
	LedgerEntryID string `json:"ledgerEntryId"`
}

// OfferRequest is the body of POST /api/v1/offer.
type OfferRequest struct {
	ProjectID string `json:"projectId"`
}

// OfferResponse is the wire shape of an offer.
type OfferResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	OfferLow  int64     `json:"offerLow"`
	OfferHigh int64     `json:"offerHigh"`
	Reasoning string    `json:"reasoning"`
	Signals   []string  `json:"signals"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func offerResponse(o *model.Offer) *OfferResponse {
	return &OfferResponse{
		ID:        o.ID.String(),
		ProjectID: o.ProjectID.String(),
		OfferLow:  o.OfferLow,
		OfferHigh: o.OfferHigh,
		Reasoning: o.Reasoning,
		Signals:   o.Signals,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}
