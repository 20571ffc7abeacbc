package delivery

import "testing"

func defaultThresholds() Thresholds {
	return Thresholds{
		MinRequests:             10,
		LowClickRate:            0.01,
		MinBudgetRemainingRatio: 0.5,
		BoostValue:              0.2,
	}
}

func TestEvaluateAppliesWhenUnderservedAndFunded(t *testing.T) {
	s := Stats{Requests: 20, Clicks: 0, Impressions: 20, BudgetRemainingRatio: 0.9}
	d := Evaluate(s, defaultThresholds())
	if !d.Applied || d.Boost != 0.2 {
		t.Fatalf("expected boost applied, got %+v", d)
	}
}

func TestEvaluateSkipsWhenTooFewRequests(t *testing.T) {
	s := Stats{Requests: 5, Clicks: 0, Impressions: 5, BudgetRemainingRatio: 0.9}
	d := Evaluate(s, defaultThresholds())
	if d.Applied {
		t.Fatalf("should not boost with too little history, got %+v", d)
	}
}

func TestEvaluateSkipsWhenClickRateHealthy(t *testing.T) {
	s := Stats{Requests: 20, Clicks: 5, Impressions: 20, BudgetRemainingRatio: 0.9}
	d := Evaluate(s, defaultThresholds())
	if d.Applied {
		t.Fatalf("should not boost a campaign that is already clicking well, got %+v", d)
	}
}

func TestEvaluateSkipsWhenBudgetLow(t *testing.T) {
	s := Stats{Requests: 20, Clicks: 0, Impressions: 20, BudgetRemainingRatio: 0.1}
	d := Evaluate(s, defaultThresholds())
	if d.Applied {
		t.Fatalf("should not boost a near-exhausted campaign, got %+v", d)
	}
}
