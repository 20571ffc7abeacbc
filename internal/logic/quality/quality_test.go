package quality

import "testing"

func defaultThresholds() Thresholds {
	return Thresholds{
		NewClicksThreshold:   10,
		RiskyRejectRate:      0.2,
		RecoveringRejectRate: 0.1,
		DeltaNew:             0.8,
		DeltaStable:          1.0,
		DeltaRisky:           1.5,
		DeltaRecovering:      1.1,
	}
}

func TestClassifyNewPartner(t *testing.T) {
	r := Classify(WindowCounts{Accepted: 2, Rejected: 0}, WindowCounts{Accepted: 5, Rejected: 1}, defaultThresholds())
	if r.State != StateNew {
		t.Fatalf("State = %v, want NEW", r.State)
	}
	if r.DeltaMultiplier != 0.8 {
		t.Errorf("DeltaMultiplier = %v, want 0.8", r.DeltaMultiplier)
	}
}

func TestClassifyRisky(t *testing.T) {
	long := WindowCounts{Accepted: 80, Rejected: 20}
	recent := WindowCounts{Accepted: 8, Rejected: 4}
	r := Classify(recent, long, defaultThresholds())
	if r.State != StateRisky {
		t.Fatalf("State = %v, want RISKY", r.State)
	}
}

func TestClassifyRecovering(t *testing.T) {
	long := WindowCounts{Accepted: 70, Rejected: 30}
	recent := WindowCounts{Accepted: 95, Rejected: 5}
	r := Classify(recent, long, defaultThresholds())
	if r.State != StateRecovering {
		t.Fatalf("State = %v, want RECOVERING", r.State)
	}
}

func TestClassifyStable(t *testing.T) {
	long := WindowCounts{Accepted: 90, Rejected: 10}
	recent := WindowCounts{Accepted: 95, Rejected: 5}
	r := Classify(recent, long, defaultThresholds())
	if r.State != StateStable {
		t.Fatalf("State = %v, want STABLE", r.State)
	}
}

func TestWindowCountsRejectRateNoClicks(t *testing.T) {
	w := WindowCounts{}
	if w.RejectRate() != 0 {
		t.Errorf("RejectRate() with no clicks = %v, want 0", w.RejectRate())
	}
}
