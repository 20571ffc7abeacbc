// Package selection implements the partner ad request orchestrator (C10):
// eligibility filtering, frequency capping, concurrent scoring, tie-break
// ordering, and debug candidate reporting.
package selection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickwarner/openadserve/internal/logic/scoring"
	"github.com/patrickwarner/openadserve/internal/models"
)

// Candidate is one eligible (campaign, ad) pair prepared for scoring.
type Candidate struct {
	Campaign            models.Campaign
	Ad                  models.Ad
	PriorAssignments    int  // count of prior assignments to this partner, for tie-break
	LastServedWithinCap bool // a PartnerAdExposure exists inside the freq-cap window
}

// ScoredCandidate pairs a Candidate with its scoring result.
type ScoredCandidate struct {
	Candidate Candidate
	Result    scoring.Result
}

// ScoreFunc computes the scoring inputs and score for one candidate. It may
// perform blocking reads (CTR history, partner reject rate); each call is
// run in its own goroutine bounded by the orchestrator's context deadline.
type ScoreFunc func(ctx context.Context, c Candidate) (scoring.Result, error)

// Outcome is the orchestrator's result: the winner when filled, otherwise
// the models.UnfilledReason.
type Outcome struct {
	Filled          bool
	Winner          *ScoredCandidate
	UnfilledReason  models.UnfilledReason
	DebugCandidates []ScoredCandidate // top-N by tie-break order, when debug is enabled
}

const debugLimit = 3

// Select filters candidates down to those not frequency-capped, scores the
// remainder concurrently (bounded by ctx), and picks a winner by the
// tie-break ordering: highest score first, then fewer prior assignments to
// this partner, then campaign_id ascending, then ad_id ascending.
//
// If every candidate was skipped due to the frequency cap, the result is
// unfilled with reason FREQ_CAP; if there were no eligible candidates at
// all, or any candidate's scoring call returned an error or ctx was done,
// the reason is NO_ELIGIBLE_ADS. Scoring errors are not returned.
func Select(ctx context.Context, candidates []Candidate, score ScoreFunc, debug bool) Outcome {
	anyCapBlocked := false
	var eligible []Candidate
	for _, c := range candidates {
		if c.LastServedWithinCap {
			anyCapBlocked = true
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		reason := models.ReasonNoEligibleAds
		if anyCapBlocked {
			reason = models.ReasonFreqCap
		}
		return Outcome{Filled: false, UnfilledReason: reason}
	}

	scored := make([]ScoredCandidate, len(eligible))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, c := range eligible {
		wg.Add(1)
		go func(i int, c Candidate) {
			defer wg.Done()
			res, err := score(ctx, c)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			scored[i] = ScoredCandidate{Candidate: c, Result: res}
		}(i, c)
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		return Outcome{Filled: false, UnfilledReason: models.ReasonNoEligibleAds}
	default:
	}

	if firstErr != nil || len(scored) == 0 {
		return Outcome{Filled: false, UnfilledReason: models.ReasonNoEligibleAds}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Result.Score != b.Result.Score {
			return a.Result.Score > b.Result.Score
		}
		if a.Candidate.PriorAssignments != b.Candidate.PriorAssignments {
			return a.Candidate.PriorAssignments < b.Candidate.PriorAssignments
		}
		if a.Candidate.Campaign.ID != b.Candidate.Campaign.ID {
			return a.Candidate.Campaign.ID < b.Candidate.Campaign.ID
		}
		return a.Candidate.Ad.ID < b.Candidate.Ad.ID
	})

	winner := scored[0]
	out := Outcome{Filled: true, Winner: &winner}
	if debug {
		n := debugLimit
		if n > len(scored) {
			n = len(scored)
		}
		out.DebugCandidates = scored[:n]
	}
	return out
}

// WithinFreqCap reports whether a PartnerAdExposure's last_served_at falls
// inside the frequency-cap window ending at now.
func WithinFreqCap(lastServedAt time.Time, now time.Time, capSeconds int) bool {
	cutoff := now.Add(-time.Duration(capSeconds) * time.Second)
	return !lastServedAt.Before(cutoff)
}
