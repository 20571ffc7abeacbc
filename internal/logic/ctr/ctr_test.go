package ctr

import "testing"

func TestEstimatePrefersFinestTierWithData(t *testing.T) {
	partnerAd := Counts{Clicks: 4, Impressions: 40}
	partnerCampaign := Counts{Clicks: 100, Impressions: 1000}
	globalCampaign := Counts{Clicks: 50, Impressions: 500}

	got := Estimate(partnerAd, partnerCampaign, globalCampaign)
	want := smoothed(partnerAd)
	if got != want {
		t.Errorf("Estimate() = %v, want %v (partner-ad tier)", got, want)
	}
}

func TestEstimateFallsBackToPartnerCampaign(t *testing.T) {
	partnerAd := Counts{}
	partnerCampaign := Counts{Clicks: 10, Impressions: 100}
	globalCampaign := Counts{Clicks: 50, Impressions: 500}

	got := Estimate(partnerAd, partnerCampaign, globalCampaign)
	want := smoothed(partnerCampaign)
	if got != want {
		t.Errorf("Estimate() = %v, want %v (partner-campaign tier)", got, want)
	}
}

func TestEstimateFallsBackToGlobalCampaign(t *testing.T) {
	partnerAd := Counts{}
	partnerCampaign := Counts{}
	globalCampaign := Counts{Clicks: 20, Impressions: 200}

	got := Estimate(partnerAd, partnerCampaign, globalCampaign)
	want := smoothed(globalCampaign)
	if got != want {
		t.Errorf("Estimate() = %v, want %v (global-campaign tier)", got, want)
	}
}

func TestEstimateDefaultsWhenNoDataAnywhere(t *testing.T) {
	got := Estimate(Counts{}, Counts{}, Counts{})
	if got != DefaultCTR {
		t.Errorf("Estimate() = %v, want DefaultCTR %v", got, DefaultCTR)
	}
}
