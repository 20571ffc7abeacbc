// Package delivery implements the delivery-health boost: a modest scoring
// bump for campaigns that are under-delivering relative to their remaining
// budget (C8).
package delivery

// Stats is one campaign's delivery history over the lookback window.
type Stats struct {
	Requests          int
	Clicks            int
	Impressions       int
	BudgetRemainingRatio float64
}

func (s Stats) clickRate() float64 {
	if s.Impressions == 0 {
		return 0
	}
	return float64(s.Clicks) / float64(s.Impressions)
}

// Thresholds configures when the delivery boost applies.
type Thresholds struct {
	MinRequests              int
	LowClickRate             float64
	MinBudgetRemainingRatio  float64
	BoostValue               float64
}

// Decision is the gate's verdict for one candidate campaign.
type Decision struct {
	Applied bool
	Boost   float64
}

// Evaluate applies the delivery boost when a campaign has enough request
// history to judge (Requests >= MinRequests), is under-clicking
// (clickRate < LowClickRate), and still has budget headroom
// (BudgetRemainingRatio >= MinBudgetRemainingRatio).
func Evaluate(s Stats, t Thresholds) Decision {
	if s.Requests < t.MinRequests {
		return Decision{}
	}
	if s.clickRate() >= t.LowClickRate {
		return Decision{}
	}
	if s.BudgetRemainingRatio < t.MinBudgetRemainingRatio {
		return Decision{}
	}
	return Decision{Applied: true, Boost: t.BoostValue}
}
