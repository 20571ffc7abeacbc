package market

import "testing"

func defaultThresholds() Thresholds {
	return Thresholds{
		FillLow:                 0.5,
		FillHigh:                0.8,
		EligibleSupplyLow:       0.5,
		RejectVolatilityThresh:  0.1,
		UnfilledStreakThreshold: 3,
		RejectHealthy:           0.05,
		ProfitBoostLowFill:      0.2,
		ProfitBoostLowSupply:    0.1,
		CTRBoostHealthy:         0.1,
		TargetingBoostLowFill:   0.1,
		TargetingBoostUnfilled:  0.1,
		MarketBoostLowFill:      0.2,
		MarketBoostVolatility:   0.1,
	}
}

func TestDeriveStableMarket(t *testing.T) {
	s := Snapshot{FillRate: 0.65, RejectRate: 0.02, EligibleAdsPerRequest: 2, UnfilledStreak: 0}
	m := Derive(s, defaultThresholds())
	if m.AlphaProfit != 1 || m.BetaCTR != 1 || m.GammaTargeting != 1 || m.DeltaMarket != 1 {
		t.Errorf("expected all multipliers at baseline 1.0, got %+v", m)
	}
	if m.MarketNote != "Market stable." {
		t.Errorf("MarketNote = %q, want %q", m.MarketNote, "Market stable.")
	}
}

func TestDeriveLowFillBoostsProfitTargetingAndMarket(t *testing.T) {
	s := Snapshot{FillRate: 0.3, RejectRate: 0.02, EligibleAdsPerRequest: 2, UnfilledStreak: 0}
	m := Derive(s, defaultThresholds())
	if m.AlphaProfit != 1.2 {
		t.Errorf("AlphaProfit = %v, want 1.2", m.AlphaProfit)
	}
	if m.GammaTargeting != 1.1 {
		t.Errorf("GammaTargeting = %v, want 1.1", m.GammaTargeting)
	}
	if m.DeltaMarket != 1.2 {
		t.Errorf("DeltaMarket = %v, want 1.2", m.DeltaMarket)
	}
}

func TestDeriveHealthyDemandBoostsCTR(t *testing.T) {
	s := Snapshot{FillRate: 0.9, RejectRate: 0.01, EligibleAdsPerRequest: 2, UnfilledStreak: 0}
	m := Derive(s, defaultThresholds())
	if m.BetaCTR != 1.1 {
		t.Errorf("BetaCTR = %v, want 1.1", m.BetaCTR)
	}
}

func TestDeriveCompoundBoosts(t *testing.T) {
	s := Snapshot{FillRate: 0.2, RejectRate: 0.02, EligibleAdsPerRequest: 0.1, UnfilledStreak: 5, RejectVolatility: 0.2}
	m := Derive(s, defaultThresholds())
	if m.AlphaProfit != 1.3 {
		t.Errorf("AlphaProfit = %v, want 1.3 (low fill + low supply)", m.AlphaProfit)
	}
	if m.GammaTargeting != 1.2 {
		t.Errorf("GammaTargeting = %v, want 1.2 (low fill + unfilled streak)", m.GammaTargeting)
	}
	if m.DeltaMarket != 1.3 {
		t.Errorf("DeltaMarket = %v, want 1.3 (low fill + volatility)", m.DeltaMarket)
	}
}
