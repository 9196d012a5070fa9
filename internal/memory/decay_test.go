package memory

import (
	"testing"
	"time"
)

func TestDecayScore_MonotonicInAge(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()

	var prev float64 = -1
	for _, days := range []int{0, 1, 5, 14, 30, 60} {
		lastAccessed := now.Add(-time.Duration(days) * 24 * time.Hour)
		score := decayScore(3, ConfidenceHigh, now, lastAccessed, cfg)
		if prev >= 0 && score > prev {
			t.Fatalf("score increased with age: days=%d score=%v prev=%v", days, score, prev)
		}
		prev = score
	}
}

func TestDecayScore_LowConfidencePenalized(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	last := now.Add(-20 * 24 * time.Hour)

	high := decayScore(1, ConfidenceHigh, now, last, cfg)
	low := decayScore(1, ConfidenceLow, now, last, cfg)
	if !(low < high) {
		t.Fatalf("expected low-confidence score (%v) < high-confidence score (%v)", low, high)
	}
}

func TestDecayScore_MediumAndHighShareBaseline(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	last := now.Add(-10 * 24 * time.Hour)

	medium := decayScore(2, ConfidenceMedium, now, last, cfg)
	high := decayScore(2, ConfidenceHigh, now, last, cfg)
	if medium != high {
		t.Fatalf("expected medium (%v) == high (%v)", medium, high)
	}
}

func TestDecayScore_AccessCountFloorsAtOne(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	last := now.Add(-5 * 24 * time.Hour)

	zero := decayScore(0, ConfidenceHigh, now, last, cfg)
	one := decayScore(1, ConfidenceHigh, now, last, cfg)
	if zero != one {
		t.Fatalf("expected access_count=0 to score same as access_count=1: %v vs %v", zero, one)
	}
}

func TestSelectForEviction_PinnedNeverEvicted(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	candidates := []Candidate{
		{ID: "stale-pinned", Pinned: true, AccessCount: 1, Confidence: ConfidenceLow, LastAccessedAt: now.Add(-60 * 24 * time.Hour)},
		{ID: "fresh-unpinned", Pinned: false, AccessCount: 10, Confidence: ConfidenceHigh, LastAccessedAt: now},
	}

	evicted := selectForEviction(candidates, len(candidates), now, cfg)
	for _, id := range evicted {
		if id == "stale-pinned" {
			t.Fatal("pinned entry must never be evicted")
		}
	}
}

func TestSelectForEviction_PhaseOneScoreThreshold(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	candidates := []Candidate{
		{ID: "stale-low-access", AccessCount: 1, Confidence: ConfidenceLow, LastAccessedAt: now.Add(-60 * 24 * time.Hour)},
		{ID: "fresh-high-access", AccessCount: 10, Confidence: ConfidenceHigh, LastAccessedAt: now},
	}

	evicted := selectForEviction(candidates, len(candidates), now, cfg)
	if len(evicted) != 1 || evicted[0] != "stale-low-access" {
		t.Fatalf("evicted = %v, want [stale-low-access]", evicted)
	}
}

func TestSelectForEviction_PhaseTwoTrimsToMaxEntries(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.MaxEntries = 1
	cfg.EvictionThreshold = 0 // phase 1 marks nothing, forcing phase 2 to act

	candidates := []Candidate{
		{ID: "older", AccessCount: 1, Confidence: ConfidenceHigh, LastAccessedAt: now.Add(-2 * 24 * time.Hour)},
		{ID: "newer", AccessCount: 1, Confidence: ConfidenceHigh, LastAccessedAt: now},
	}

	evicted := selectForEviction(candidates, len(candidates), now, cfg)
	if len(evicted) != 1 || evicted[0] != "older" {
		t.Fatalf("evicted = %v, want [older] (lowest-scored trimmed first)", evicted)
	}
}

func TestSelectForEviction_WithinBudgetEvictsNothing(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	candidates := []Candidate{
		{ID: "a", AccessCount: 5, Confidence: ConfidenceHigh, LastAccessedAt: now},
		{ID: "b", AccessCount: 5, Confidence: ConfidenceHigh, LastAccessedAt: now},
	}

	evicted := selectForEviction(candidates, len(candidates), now, cfg)
	if len(evicted) != 0 {
		t.Fatalf("evicted = %v, want none", evicted)
	}
}
