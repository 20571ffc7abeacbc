package scoring

import (
	"strings"
	"testing"

	"github.com/patrickwarner/openadserve/internal/logic/delivery"
	"github.com/patrickwarner/openadserve/internal/logic/exploration"
	"github.com/patrickwarner/openadserve/internal/logic/market"
	"github.com/patrickwarner/openadserve/internal/logic/quality"
)

func baselineInputs() Inputs {
	return Inputs{
		BuyerCPC:            1.0,
		PartnerPayout:       0.7,
		CTR:                 0.05,
		CTRWeight:           1.0,
		Targeting:           Targeting{CategoryMatch: true, GeoMatch: true},
		TargetingBonusValue: 0.5,
		PartnerRejectRate:   0.1,
		RejectPenaltyWeight: 1.0,
		Market: market.Multipliers{
			AlphaProfit: 1.0, BetaCTR: 1.0, GammaTargeting: 1.0, DeltaMarket: 1.0,
			MarketNote: "Market stable.",
		},
		Quality: quality.Result{State: quality.StateStable, Note: "Consistent quality; standard penalty applies.", DeltaMultiplier: 1.0},
	}
}

func TestScoreBaselineFormula(t *testing.T) {
	in := baselineInputs()
	result := Score(in)

	// profit = 0.3, ctr term = 0.05, targeting = 2*0.5 = 1.0, reject penalty = 0.1
	want := 0.3 + 0.05 + 1.0 - 0.1
	if result.Score != round4(want) {
		t.Errorf("Score = %v, want %v", result.Score, round4(want))
	}
	if result.Breakdown.Profit != 0.3 {
		t.Errorf("Breakdown.Profit = %v, want 0.3", result.Breakdown.Profit)
	}
	if result.Breakdown.TargetingBonus != 1.0 {
		t.Errorf("Breakdown.TargetingBonus = %v, want 1.0", result.Breakdown.TargetingBonus)
	}
}

func TestScoreAddsExplorationBonus(t *testing.T) {
	in := baselineInputs()
	in.Explore = exploration.Decision{Applied: true, Bonus: 0.2, Reason: exploration.ReasonNewAd}
	withExplore := Score(in)

	in.Explore = exploration.Decision{}
	without := Score(in)

	if round4(withExplore.Score-without.Score) != 0.2 {
		t.Errorf("exploration bonus delta = %v, want 0.2", withExplore.Score-without.Score)
	}
	if !strings.Contains(withExplore.Explanation, "Exploration applied") {
		t.Errorf("Explanation missing exploration note: %q", withExplore.Explanation)
	}
}

func TestScoreAddsDeliveryBoost(t *testing.T) {
	in := baselineInputs()
	in.Delivery = delivery.Decision{Applied: true, Boost: 0.2}
	with := Score(in)

	in.Delivery = delivery.Decision{}
	without := Score(in)

	if round4(with.Score-without.Score) != 0.2 {
		t.Errorf("delivery boost delta = %v, want 0.2", with.Score-without.Score)
	}
	if !strings.Contains(with.Explanation, "Delivery boost applied") {
		t.Errorf("Explanation missing delivery note: %q", with.Explanation)
	}
}

func TestScoreMarketMultipliersScaleRejectPenaltyByBothFactors(t *testing.T) {
	in := baselineInputs()
	in.Market.DeltaMarket = 2.0
	in.Quality.DeltaMultiplier = 1.5
	result := Score(in)

	// penalty = reject_rate * weight * (delta_market * delta_partner) = 0.1*1*(2*1.5) = 0.3
	want := 0.3 + 0.05 + 1.0 - 0.3
	if result.Score != round4(want) {
		t.Errorf("Score = %v, want %v", result.Score, round4(want))
	}
}

func TestScoreZeroTargetingBonusWhenNoDimensionsMatch(t *testing.T) {
	in := baselineInputs()
	in.Targeting = Targeting{}
	result := Score(in)
	if result.Breakdown.TargetingBonus != 0 {
		t.Errorf("TargetingBonus = %v, want 0", result.Breakdown.TargetingBonus)
	}
}
