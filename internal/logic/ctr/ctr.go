// Package ctr estimates a smoothed click-through rate for a candidate ad,
// falling back through progressively coarser aggregation tiers when a finer
// tier has no impression history (C6).
package ctr

// DefaultCTR is used when no tier at any granularity has impression data.
const DefaultCTR = 0.01

// Counts is an accepted-click / accepted-impression tally for one tier.
type Counts struct {
	Clicks      int
	Impressions int
}

// smoothed applies the +1/+10 Beta-prior smoothing.
func smoothed(c Counts) float64 {
	return float64(c.Clicks+1) / float64(c.Impressions+10)
}

// Estimate returns the smoothed CTR for the first tier with any impressions,
// trying (partner, ad), then (partner, campaign), then (global campaign), in
// that order, and DefaultCTR if none have impressions.
func Estimate(partnerAd, partnerCampaign, globalCampaign Counts) float64 {
	if partnerAd.Impressions > 0 {
		return smoothed(partnerAd)
	}
	if partnerCampaign.Impressions > 0 {
		return smoothed(partnerCampaign)
	}
	if globalCampaign.Impressions > 0 {
		return smoothed(globalCampaign)
	}
	return DefaultCTR
}
