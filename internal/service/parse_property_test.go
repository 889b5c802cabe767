// Property-based tests for untrusted model output validation.
package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"vamo-backend/internal/model"
)

// For any numeric input, the clamped progress delta stays within [0, 5].
func TestClampProgressDeltaBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.Float64Range(-1e9, 1e9).Draw(t, "delta")

		raw, err := json.Marshal(f)
		if err != nil {
			t.Fatalf("failed to marshal %v: %v", f, err)
		}

		d := clampProgressDelta(raw)
		if d < 0 || d > 5 {
			t.Fatalf("clampProgressDelta(%v) = %d, outside [0, 5]", f, d)
		}
	})
}

// For any string input, the normalized valuation adjustment is one of the
// three known directions, and the known directions pass through unchanged.
func TestNormalizeValuationAdjustmentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "adjustment")

		got := normalizeValuationAdjustment(s)
		switch got {
		case model.ValuationUp, model.ValuationDown, model.ValuationNone:
		default:
			t.Fatalf("normalizeValuationAdjustment(%q) = %q, not a known direction", s, got)
		}

		if s == model.ValuationUp || s == model.ValuationDown || s == model.ValuationNone {
			if got != s {
				t.Fatalf("known direction %q was rewritten to %q", s, got)
			}
		}
	})
}

// A parsed reply never carries a progress delta outside [0, 5], no matter
// what number the model emitted.
func TestParseAssistantReplyDeltaBoundedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		delta := rapid.Float64Range(-1e6, 1e6).Draw(t, "delta")
		raw := fmt.Sprintf(`{"reply": "r", "intent": "feature", "business_update": {"progress_delta": %v}}`, delta)

		reply, err := ParseAssistantReply(raw)
		if err != nil {
			t.Fatalf("unexpected parse error for delta %v: %v", delta, err)
		}
		d := reply.BusinessUpdate.ProgressDelta
		if d < 0 || d > 5 {
			t.Fatalf("parsed delta %d outside [0, 5] for input %v", d, delta)
		}
	})
}

// stripCodeFence is idempotent: stripping twice equals stripping once.
func TestStripCodeFenceIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.StringMatching(`[^` + "`" + `]*`).Draw(t, "body")
		fenced := rapid.Bool().Draw(t, "fenced")

		input := body
		if fenced {
			input = "```json\n" + body + "\n```"
		}

		once := stripCodeFence(input)
		twice := stripCodeFence(once)
		if once != twice {
			t.Fatalf("stripCodeFence not idempotent: %q -> %q -> %q", input, once, twice)
		}
	})
}
