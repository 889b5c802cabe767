// Property-based tests for the context compaction split.
package service

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"vamo-backend/internal/model"
)

func makeMessages(n int) []*model.Message {
	msgs := make([]*model.Message, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := range msgs {
		msgs[i] = &model.Message{CreatedAt: base.Add(time.Duration(i) * time.Minute)}
	}
	return msgs
}

// For any message count, the split either keeps everything (at or under the
// threshold) or summarizes exactly count-keep and keeps exactly keep.
func TestSplitForCompactionSizesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 200).Draw(t, "count")
		threshold := rapid.IntRange(1, 100).Draw(t, "threshold")
		keep := rapid.IntRange(1, threshold).Draw(t, "keep")

		msgs := makeMessages(count)
		toSummarize, toKeep := SplitForCompaction(msgs, threshold, keep)

		if count <= threshold {
			if len(toSummarize) != 0 {
				t.Fatalf("count=%d <= threshold=%d should summarize nothing, got %d", count, threshold, len(toSummarize))
			}
			if len(toKeep) != count {
				t.Fatalf("expected all %d messages kept, got %d", count, len(toKeep))
			}
			return
		}

		if len(toSummarize) != count-keep {
			t.Fatalf("expected %d summarized, got %d", count-keep, len(toSummarize))
		}
		if len(toKeep) != keep {
			t.Fatalf("expected %d kept, got %d", keep, len(toKeep))
		}
	})
}

// The split never reorders or drops messages: summarized prefix followed by
// kept suffix is the original sequence.
func TestSplitForCompactionPreservesOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 100).Draw(t, "count")
		threshold := rapid.IntRange(1, 50).Draw(t, "threshold")
		keep := rapid.IntRange(1, threshold).Draw(t, "keep")

		msgs := makeMessages(count)
		toSummarize, toKeep := SplitForCompaction(msgs, threshold, keep)

		combined := append(append([]*model.Message{}, toSummarize...), toKeep...)
		if len(combined) != len(msgs) {
			t.Fatalf("split lost messages: %d in, %d out", len(msgs), len(combined))
		}
		for i := range msgs {
			if combined[i] != msgs[i] {
				t.Fatalf("message %d reordered by split", i)
			}
		}
	})
}

// With the default tunables, 26 pending messages fold 15 and keep 11, and the
// kept suffix is always the newest messages.
func TestSplitForCompactionDefaults(t *testing.T) {
	msgs := makeMessages(26)
	toSummarize, toKeep := SplitForCompaction(msgs, 20, 11)

	if len(toSummarize) != 15 || len(toKeep) != 11 {
		t.Fatalf("expected 15 summarized / 11 kept, got %d / %d", len(toSummarize), len(toKeep))
	}
	if toKeep[len(toKeep)-1] != msgs[25] {
		t.Fatal("kept suffix must end with the newest message")
	}
	if toSummarize[len(toSummarize)-1].CreatedAt.After(toKeep[0].CreatedAt) {
		t.Fatal("every summarized message must precede every kept message")
	}
}
