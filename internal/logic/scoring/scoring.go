// Package scoring combines the pricing, CTR, targeting, market-health,
// partner-quality, exploration and delivery signals into a single candidate
// score with a persisted breakdown and explanation (C9).
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/patrickwarner/openadserve/internal/logic/delivery"
	"github.com/patrickwarner/openadserve/internal/logic/exploration"
	"github.com/patrickwarner/openadserve/internal/logic/market"
	"github.com/patrickwarner/openadserve/internal/logic/quality"
)

// Targeting records, for each of the four targeting dimensions, whether the
// request value was a scoring-eligible strict match against the campaign.
type Targeting struct {
	CategoryMatch bool
	GeoMatch      bool
	DeviceMatch   bool
	PlacementMatch bool
}

func (t Targeting) matchedDimensions() int {
	n := 0
	if t.CategoryMatch {
		n++
	}
	if t.GeoMatch {
		n++
	}
	if t.DeviceMatch {
		n++
	}
	if t.PlacementMatch {
		n++
	}
	return n
}

// Inputs bundles every signal needed to score one candidate (campaign, ad).
type Inputs struct {
	BuyerCPC       float64
	PartnerPayout  float64
	CTR            float64
	CTRWeight      float64
	Targeting      Targeting
	TargetingBonusValue float64
	PartnerRejectRate   float64
	RejectPenaltyWeight float64
	Market   market.Multipliers
	Quality  quality.Result
	Explore  exploration.Decision
	Delivery delivery.Decision
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Breakdown is the persisted, 4-decimal-rounded numeric record of how a
// score was derived.
type Breakdown struct {
	Profit             float64 `json:"profit"`
	CTR                float64 `json:"ctr"`
	TargetingBonus     float64 `json:"targeting_bonus"`
	PartnerRejectRate  float64 `json:"partner_reject_rate"`
	AlphaProfit        float64 `json:"alpha_profit"`
	BetaCTR            float64 `json:"beta_ctr"`
	GammaTargeting     float64 `json:"gamma_targeting"`
	DeltaMarket        float64 `json:"delta_market"`
	DeltaPartner       float64 `json:"delta_partner"`
	ExplorationBonus   float64 `json:"exploration_bonus"`
	DeliveryBoost      float64 `json:"delivery_boost"`
	Score              float64 `json:"score"`
}

// Result is the full scoring output for one candidate.
type Result struct {
	Score       float64
	Breakdown   Breakdown
	Explanation string
}

// Score implements the weighted-sum formula from the scoring design:
//
//	score = profit·α_profit
//	      + (ctr·ctr_weight)·β_ctr
//	      + targeting_bonus·γ_targeting
//	      − (partner_reject_rate·reject_penalty_weight)·(δ_market·δ_partner)
//	      + exploration_bonus
//	      + delivery_boost
func Score(in Inputs) Result {
	profit := in.BuyerCPC - in.PartnerPayout
	targetingBonus := float64(in.Targeting.matchedDimensions()) * in.TargetingBonusValue

	deltaPartner := in.Quality.DeltaMultiplier

	explorationBonus := 0.0
	if in.Explore.Applied {
		explorationBonus = in.Explore.Bonus
	}
	deliveryBoost := 0.0
	if in.Delivery.Applied {
		deliveryBoost = in.Delivery.Boost
	}

	score := profit*in.Market.AlphaProfit +
		(in.CTR*in.CTRWeight)*in.Market.BetaCTR +
		targetingBonus*in.Market.GammaTargeting -
		(in.PartnerRejectRate*in.RejectPenaltyWeight)*(in.Market.DeltaMarket*deltaPartner) +
		explorationBonus +
		deliveryBoost

	breakdown := Breakdown{
		Profit:            round4(profit),
		CTR:               round4(in.CTR),
		TargetingBonus:    round4(targetingBonus),
		PartnerRejectRate: round4(in.PartnerRejectRate),
		AlphaProfit:       round4(in.Market.AlphaProfit),
		BetaCTR:           round4(in.Market.BetaCTR),
		GammaTargeting:    round4(in.Market.GammaTargeting),
		DeltaMarket:       round4(in.Market.DeltaMarket),
		DeltaPartner:      round4(deltaPartner),
		ExplorationBonus:  round4(explorationBonus),
		DeliveryBoost:     round4(deliveryBoost),
		Score:             round4(score),
	}

	return Result{
		Score:       breakdown.Score,
		Breakdown:   breakdown,
		Explanation: explain(breakdown, in),
	}
}

func explain(b Breakdown, in Inputs) string {
	var parts []string
	parts = append(parts, fmt.Sprintf(
		"score %.4f = profit %.4f*%.4f + ctr %.4f*%.4f + targeting %.4f*%.4f - reject %.4f*%.4f*%.4f + exploration %.4f + delivery %.4f",
		b.Score, b.Profit, b.AlphaProfit, in.CTR*in.CTRWeight, b.BetaCTR, b.TargetingBonus, b.GammaTargeting,
		b.PartnerRejectRate, in.RejectPenaltyWeight, b.DeltaMarket*b.DeltaPartner, b.ExplorationBonus, b.DeliveryBoost,
	))
	parts = append(parts, in.Market.MarketNote)
	parts = append(parts, fmt.Sprintf("Partner quality: %s — %s", in.Quality.State, in.Quality.Note))
	if in.Explore.Applied {
		parts = append(parts, fmt.Sprintf("Exploration applied (%s).", in.Explore.Reason))
	}
	if in.Delivery.Applied {
		parts = append(parts, "Delivery boost applied: under-delivering with budget headroom.")
	}
	return strings.Join(parts, " ")
}
