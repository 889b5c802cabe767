package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vamo-backend/internal/model"
)

func TestParseAssistantReply_Valid(t *testing.T) {
	raw := `{"reply": "Great milestone!", "intent": "customer", "business_update": {"progress_delta": 3, "traction_signal": "First paying customer", "valuation_adjustment": "up"}}`

	reply, err := ParseAssistantReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "Great milestone!", reply.Reply)
	assert.Equal(t, model.IntentCustomer, reply.Intent)
	assert.Equal(t, 3, reply.BusinessUpdate.ProgressDelta)
	require.NotNil(t, reply.BusinessUpdate.TractionSignal)
	assert.Equal(t, "First paying customer", *reply.BusinessUpdate.TractionSignal)
	assert.Equal(t, model.ValuationUp, reply.BusinessUpdate.ValuationAdjustment)
}

func TestParseAssistantReply_CodeFence(t *testing.T) {
	raw := "```json\n{\"reply\": \"ok\", \"intent\": \"general\"}\n```"

	reply, err := ParseAssistantReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Reply)
	assert.Equal(t, model.IntentGeneral, reply.Intent)
	// Missing business_update defaults to a neutral one.
	assert.Equal(t, 0, reply.BusinessUpdate.ProgressDelta)
	assert.Nil(t, reply.BusinessUpdate.TractionSignal)
	assert.Equal(t, model.ValuationNone, reply.BusinessUpdate.ValuationAdjustment)
}

func TestParseAssistantReply_ClampsDelta(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"above max", `{"reply": "r", "intent": "feature", "business_update": {"progress_delta": 50}}`, 5},
		{"negative", `{"reply": "r", "intent": "feature", "business_update": {"progress_delta": -3}}`, 0},
		{"fractional", `{"reply": "r", "intent": "feature", "business_update": {"progress_delta": 2.6}}`, 3},
		{"non-numeric", `{"reply": "r", "intent": "feature", "business_update": {"progress_delta": "lots"}}`, 0},
		{"missing", `{"reply": "r", "intent": "feature", "business_update": {}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := ParseAssistantReply(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.BusinessUpdate.ProgressDelta)
		})
	}
}

func TestParseAssistantReply_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "sure, here's your update"},
		{"reply not a string", `{"reply": 42, "intent": "general"}`},
		{"empty reply", `{"reply": "", "intent": "general"}`},
		{"invalid intent", `{"reply": "r", "intent": "pivot"}`},
		{"missing intent", `{"reply": "r"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAssistantReply(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedReply)
		})
	}
}

func TestParseAssistantReply_NormalizesValuation(t *testing.T) {
	raw := `{"reply": "r", "intent": "general", "business_update": {"valuation_adjustment": "to the moon"}}`

	reply, err := ParseAssistantReply(raw)
	require.NoError(t, err)
	assert.Equal(t, model.ValuationNone, reply.BusinessUpdate.ValuationAdjustment)
}

func TestParseAssistantReply_BlankSignalDropped(t *testing.T) {
	raw := `{"reply": "r", "intent": "feature", "business_update": {"traction_signal": "   "}}`

	reply, err := ParseAssistantReply(raw)
	require.NoError(t, err)
	assert.Nil(t, reply.BusinessUpdate.TractionSignal)
}

func TestFallbackReply(t *testing.T) {
	// No tag falls back to general.
	reply := FallbackReply(nil)
	assert.Equal(t, model.IntentGeneral, reply.Intent)
	assert.NotEmpty(t, reply.Reply)
	assert.Equal(t, 0, reply.BusinessUpdate.ProgressDelta)
	assert.Nil(t, reply.BusinessUpdate.TractionSignal)

	// A valid tag is reused as the intent.
	tag := model.IntentRevenue
	reply = FallbackReply(&tag)
	assert.Equal(t, model.IntentRevenue, reply.Intent)

	// An invalid tag still degrades to general.
	bad := "pivot"
	reply = FallbackReply(&bad)
	assert.Equal(t, model.IntentGeneral, reply.Intent)
}

func TestParseOfferReply_Valid(t *testing.T) {
	raw := "```\n{\"offer_low\": 500.4, \"offer_high\": 4999.6, \"reasoning\": \"Early traction!\", \"signals_used\": [\"first customer\", 7, \"shipped v1\"]}\n```"

	offer, err := ParseOfferReply(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(500), offer.OfferLow)
	assert.Equal(t, int64(5000), offer.OfferHigh)
	assert.Equal(t, "Early traction!", offer.Reasoning)
	// Non-string elements are skipped, not fatal.
	assert.Equal(t, []string{"first customer", "shipped v1"}, offer.SignalsUsed)
}

func TestParseOfferReply_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I'd offer about $500"},
		{"missing low", `{"offer_high": 500, "reasoning": "r", "signals_used": []}`},
		{"string amount", `{"offer_low": "500", "offer_high": 1000, "reasoning": "r", "signals_used": []}`},
		{"missing reasoning", `{"offer_low": 100, "offer_high": 500, "signals_used": []}`},
		{"missing signals", `{"offer_low": 100, "offer_high": 500, "reasoning": "r"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOfferReply(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedReply)
		})
	}
}

func TestParseOfferReply_NegativeClampedToZero(t *testing.T) {
	raw := `{"offer_low": -100, "offer_high": 500, "reasoning": "r", "signals_used": []}`

	offer, err := ParseOfferReply(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(0), offer.OfferLow)
	assert.Equal(t, int64(500), offer.OfferHigh)
}
