package memory

import (
	"math"
	"sort"
	"time"
)

const ln2 = 0.6931471805599453

// decayScore computes max(access_count,1) * exp(-rate * age_days), per spec
// §4.4. Only Low confidence shortens the effective half-life; High and
// Medium share the baseline (an explicit open question the spec leaves
// unresolved for a future three-level split).
func decayScore(accessCount int, confidence Confidence, now, lastAccessedAt time.Time, cfg Config) float64 {
	ageDays := now.Sub(lastAccessedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	halfLifeEff := cfg.HalfLifeDays
	if confidence == ConfidenceLow {
		halfLifeEff *= cfg.LowConfidenceFactor
	}
	rate := ln2 / halfLifeEff

	weight := accessCount
	if weight < 1 {
		weight = 1
	}
	return float64(weight) * math.Exp(-rate*ageDays)
}

type scoredCandidate struct {
	Candidate
	score  float64
	marked bool
}

// selectForEviction runs the spec's two-phase eviction algorithm over
// candidates (pinned entries already excluded by the caller is not
// assumed — this function drops them itself) and returns the ids to evict.
func selectForEviction(candidates []Candidate, totalCount int, now time.Time, cfg Config) []string {
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Pinned {
			continue
		}
		s := decayScore(c.AccessCount, c.Confidence, now, c.LastAccessedAt, cfg)
		scored = append(scored, scoredCandidate{Candidate: c, score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score < scored[j].score
	})

	var marked int
	for i := range scored {
		if scored[i].score < cfg.EvictionThreshold {
			scored[i].marked = true
			marked++
		}
	}

	if totalCount-marked > cfg.MaxEntries {
		need := (totalCount - marked) - cfg.MaxEntries
		for i := range scored {
			if need <= 0 {
				break
			}
			if scored[i].marked {
				continue
			}
			scored[i].marked = true
			marked++
			need--
		}
	}

	ids := make([]string, 0, marked)
	for _, s := range scored {
		if s.marked {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
