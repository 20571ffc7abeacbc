package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickwarner/openadserve/internal/logic/scoring"
	"github.com/patrickwarner/openadserve/internal/models"
)

func candidate(campaignID, adID int) Candidate {
	return Candidate{
		Campaign: models.Campaign{ID: campaignID},
		Ad:       models.Ad{ID: adID, CampaignID: campaignID},
	}
}

func scoreConst(scores map[int]float64) ScoreFunc {
	return func(_ context.Context, c Candidate) (scoring.Result, error) {
		return scoring.Result{Score: scores[c.Ad.ID]}, nil
	}
}

func TestSelectPicksHighestScore(t *testing.T) {
	cands := []Candidate{candidate(1, 10), candidate(2, 20), candidate(3, 30)}
	scores := map[int]float64{10: 0.5, 20: 0.9, 30: 0.1}

	out := Select(context.Background(), cands, scoreConst(scores), false)
	if !out.Filled {
		t.Fatalf("expected filled outcome")
	}
	if out.Winner.Candidate.Ad.ID != 20 {
		t.Errorf("winner ad id = %d, want 20", out.Winner.Candidate.Ad.ID)
	}
}

func TestSelectTieBreaksByPriorAssignmentsThenIDs(t *testing.T) {
	a := candidate(1, 10)
	a.PriorAssignments = 3
	b := candidate(1, 11)
	b.PriorAssignments = 1
	scores := map[int]float64{10: 0.5, 11: 0.5}

	out := Select(context.Background(), []Candidate{a, b}, scoreConst(scores), false)
	if out.Winner.Candidate.Ad.ID != 11 {
		t.Errorf("winner ad id = %d, want 11 (fewer prior assignments)", out.Winner.Candidate.Ad.ID)
	}
}

func TestSelectTieBreaksByCampaignThenAdID(t *testing.T) {
	a := candidate(5, 100)
	b := candidate(2, 50)
	c := candidate(2, 10)
	scores := map[int]float64{100: 0.5, 50: 0.5, 10: 0.5}

	out := Select(context.Background(), []Candidate{a, b, c}, scoreConst(scores), false)
	if out.Winner.Candidate.Campaign.ID != 2 || out.Winner.Candidate.Ad.ID != 10 {
		t.Errorf("winner = campaign %d ad %d, want campaign 2 ad 10",
			out.Winner.Candidate.Campaign.ID, out.Winner.Candidate.Ad.ID)
	}
}

func TestSelectUnfilledNoEligibleAds(t *testing.T) {
	out := Select(context.Background(), nil, scoreConst(nil), false)
	if out.Filled {
		t.Fatalf("expected unfilled outcome")
	}
	if out.UnfilledReason != models.ReasonNoEligibleAds {
		t.Errorf("UnfilledReason = %v, want NO_ELIGIBLE_ADS", out.UnfilledReason)
	}
}

func TestSelectUnfilledFreqCapWhenAllCandidatesCapped(t *testing.T) {
	a := candidate(1, 10)
	a.LastServedWithinCap = true
	out := Select(context.Background(), []Candidate{a}, scoreConst(nil), false)
	if out.Filled {
		t.Fatalf("expected unfilled outcome")
	}
	if out.UnfilledReason != models.ReasonFreqCap {
		t.Errorf("UnfilledReason = %v, want FREQ_CAP", out.UnfilledReason)
	}
}

func TestSelectUnfilledOnScoringError(t *testing.T) {
	a := candidate(1, 10)
	failing := func(_ context.Context, _ Candidate) (scoring.Result, error) {
		return scoring.Result{}, errors.New("boom")
	}
	out := Select(context.Background(), []Candidate{a}, failing, false)
	if out.Filled {
		t.Fatalf("expected unfilled outcome on scoring error")
	}
}

func TestSelectDebugReturnsTopThree(t *testing.T) {
	cands := []Candidate{candidate(1, 10), candidate(2, 20), candidate(3, 30), candidate(4, 40)}
	scores := map[int]float64{10: 0.9, 20: 0.8, 30: 0.7, 40: 0.6}
	out := Select(context.Background(), cands, scoreConst(scores), true)
	if len(out.DebugCandidates) != 3 {
		t.Fatalf("DebugCandidates length = %d, want 3", len(out.DebugCandidates))
	}
}

func TestWithinFreqCap(t *testing.T) {
	now := time.Now()
	if !WithinFreqCap(now.Add(-30*time.Second), now, 60) {
		t.Errorf("expected within cap window")
	}
	if WithinFreqCap(now.Add(-90*time.Second), now, 60) {
		t.Errorf("expected outside cap window")
	}
}
