// Package model defines the data models for the Vamo backend.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents a founder account. Balance is a cached projection of the
// latest reward ledger entry's balance_after; the ledger is the source of truth.
type Profile struct {
	ID          uuid.UUID `db:"id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	Balance     int64     `db:"balance"`
	LinkedInURL *string   `db:"linkedin_url"`
	GitHubURL   *string   `db:"github_url"`
	WebsiteURL  *string   `db:"website_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Project represents a founder's venture being tracked by the co-pilot.
type Project struct {
	ID            uuid.UUID `db:"id"`
	OwnerID       uuid.UUID `db:"owner_id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	Motivation    string    `db:"motivation"`
	ProgressScore int       `db:"progress_score"`
	ValuationLow  *int64    `db:"valuation_low"`
	ValuationHigh *int64    `db:"valuation_high"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// RewardEntry is one row of the append-only reward ledger. Entries are never
// updated or deleted; the idempotency key is unique at the storage layer.
type RewardEntry struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	ProjectID      uuid.UUID `db:"project_id"`
	EventType      string    `db:"event_type"`
	Amount         int64     `db:"amount"`
	BalanceAfter   int64     `db:"balance_after"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

// Message is one chat turn. User-authored messages carry an optional tag;
// assistant messages carry the extracted intent and the pineapples earned
// for the turn. Ordering within a project is by created_at.
type Message struct {
	ID               uuid.UUID `db:"id"`
	ProjectID        uuid.UUID `db:"project_id"`
	UserID           uuid.UUID `db:"user_id"`
	Role             string    `db:"role"`
	Content          string    `db:"content"`
	Tag              *string   `db:"tag"`
	ExtractedIntent  *string   `db:"extracted_intent"`
	PineapplesEarned int64     `db:"pineapples_earned"`
	CreatedAt        time.Time `db:"created_at"`
}

// ChatSummary is one compaction of older chat turns. Summaries are
// append-only; the one with the greatest messages_up_to is the active one.
type ChatSummary struct {
	ID           uuid.UUID `db:"id"`
	ProjectID    uuid.UUID `db:"project_id"`
	Summary      string    `db:"summary"`
	MessagesUpTo time.Time `db:"messages_up_to"`
	CreatedAt    time.Time `db:"created_at"`
}

// TractionSignal is a structured record of a concrete business milestone,
// distinct from the chronological activity timeline.
type TractionSignal struct {
	ID          uuid.UUID      `db:"id"`
	ProjectID   uuid.UUID      `db:"project_id"`
	UserID      uuid.UUID      `db:"user_id"`
	SignalType  string         `db:"signal_type"`
	Description string         `db:"description"`
	Source      string         `db:"source"`
	MessageID   *uuid.UUID     `db:"message_id"`
	Metadata    map[string]any `db:"metadata"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Activity is one row of the generic chronological timeline.
type Activity struct {
	ID           uuid.UUID      `db:"id"`
	ProjectID    uuid.UUID      `db:"project_id"`
	UserID       uuid.UUID      `db:"user_id"`
	ActivityType string         `db:"activity_type"`
	Description  string         `db:"description"`
	Metadata     map[string]any `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
}

// Offer is one non-binding acquisition offer. At most one active offer exists
// per (project, user); a new offer expires the prior one.
type Offer struct {
	ID        uuid.UUID `db:"id"`
	ProjectID uuid.UUID `db:"project_id"`
	UserID    uuid.UUID `db:"user_id"`
	OfferLow  int64     `db:"offer_low"`
	OfferHigh int64     `db:"offer_high"`
	Reasoning string    `db:"reasoning"`
	Signals   []string  `db:"signals"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Offer statuses.
const (
	OfferStatusActive  = "active"
	OfferStatusExpired = "expired"
)

// Reward event types. The schedule below is the single authoritative mapping;
// anything outside it is rejected at the boundary.
const (
	EventPrompt         = "prompt"          // Base reward for any chat turn
	EventTagPrompt      = "tag_prompt"      // Bonus for tagging the turn
	EventLinkLinkedIn   = "link_linkedin"   // Linked a LinkedIn profile
	EventLinkGitHub     = "link_github"     // Linked a GitHub profile
	EventLinkWebsite    = "link_website"    // Linked a website
	EventFeatureShipped = "feature_shipped" // Milestone: shipped a feature
	EventCustomerAdded  = "customer_added"  // Milestone: gained a customer
	EventRevenueLogged  = "revenue_logged"  // Milestone: logged revenue
)

var rewardSchedule = map[string]int64{
	EventPrompt:         1,
	EventTagPrompt:      1,
	EventLinkLinkedIn:   5,
	EventLinkGitHub:     5,
	EventLinkWebsite:    3,
	EventFeatureShipped: 3,
	EventCustomerAdded:  5,
	EventRevenueLogged:  10,
}

// RewardAmount returns the fixed pineapple amount for an event type and
// whether the event type is known.
func RewardAmount(eventType string) (int64, bool) {
	amount, ok := rewardSchedule[eventType]
	return amount, ok
}

// PromptEventTypes returns the event types that count against the hourly
// prompt rate-limit window.
func PromptEventTypes() []string {
	return []string{EventPrompt, EventTagPrompt}
}

// Chat intents the AI may classify a turn as.
const (
	IntentFeature  = "feature"
	IntentCustomer = "customer"
	IntentRevenue  = "revenue"
	IntentAsk      = "ask"
	IntentGeneral  = "general"
)

// ValidIntent reports whether s is one of the five chat intents.
func ValidIntent(s string) bool {
	switch s {
	case IntentFeature, IntentCustomer, IntentRevenue, IntentAsk, IntentGeneral:
		return true
	}
	return false
}

// RewardableTag reports whether a user-supplied tag earns the tag_prompt
// bonus. "general" is a valid tag but earns no bonus.
func RewardableTag(tag string) bool {
	switch tag {
	case IntentFeature, IntentCustomer, IntentRevenue, IntentAsk:
		return true
	}
	return false
}

// Traction signal types. They double as reward event types.
const (
	SignalFeatureShipped = "feature_shipped"
	SignalCustomerAdded  = "customer_added"
	SignalRevenueLogged  = "revenue_logged"
)

// SignalTypeForIntent maps a classified intent to a traction signal type.
// Intents outside the milestone set fall back to feature_shipped; callers
// only record a signal when a milestone description is present.
func SignalTypeForIntent(intent string) string {
	switch intent {
	case IntentCustomer:
		return SignalCustomerAdded
	case IntentRevenue:
		return SignalRevenueLogged
	default:
		return SignalFeatureShipped
	}
}

// Activity types for the timeline feed.
const (
	ActivityPrompt        = "prompt"
	ActivityReward        = "reward_granted"
	ActivityTraction      = "traction_signal"
	ActivityOfferReceived = "offer_received"
	ActivityAssetLinked   = "asset_linked"
)

// Valuation adjustment directions in the AI's business update.
const (
	ValuationUp   = "up"
	ValuationDown = "down"
	ValuationNone = "none"
)
