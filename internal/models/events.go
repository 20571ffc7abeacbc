package models

import "time"

// ClickStatus is the outcome of click validation (C11).
type ClickStatus string

const (
	ClickAccepted ClickStatus = "ACCEPTED"
	ClickRejected ClickStatus = "REJECTED"
)

// RejectReason enumerates why a click was rejected. Exactly one of these, or
// none, accompanies a ClickEvent.
type RejectReason string

const (
	ReasonInvalidAssignment RejectReason = "INVALID_ASSIGNMENT"
	ReasonBotSuspected      RejectReason = "BOT_SUSPECTED"
	ReasonDuplicateClick    RejectReason = "DUPLICATE_CLICK"
	ReasonRateLimit         RejectReason = "RATE_LIMIT"
	ReasonBudgetExhausted   RejectReason = "BUDGET_EXHAUSTED"
)

// ClickEvent is an immutable record of a single tracking-click decision.
// PartnerID/CampaignID/AdID are nullable: an INVALID_ASSIGNMENT rejection
// has no assignment to resolve them from, but the click is still persisted.
type ClickEvent struct {
	ID             int64
	AssignmentCode string
	PartnerID      *int
	CampaignID     *int
	AdID           *int
	Timestamp      time.Time
	IPHash         string
	UAHash         *string
	Status         ClickStatus
	RejectReason   *RejectReason
	SpendDelta     float64
	EarningsDelta  float64
	ProfitDelta    float64
}

// ImpressionStatus is the outcome of impression dedup.
type ImpressionStatus string

const (
	ImpressionAccepted ImpressionStatus = "ACCEPTED"
	ImpressionDeduped  ImpressionStatus = "DEDUPED"
)

const DedupReasonDuplicateWindow = "DUPLICATE_WINDOW"

// ImpressionEvent is an immutable record of a single impression-tracking call.
type ImpressionEvent struct {
	ID             int64
	AssignmentCode string
	Timestamp      time.Time
	IPHash         string
	Status         ImpressionStatus
	DedupReason    *string
}

// UnfilledReason enumerates why a partner ad request went unfilled.
type UnfilledReason string

const (
	ReasonNoEligibleAds UnfilledReason = "NO_ELIGIBLE_ADS"
	ReasonFreqCap       UnfilledReason = "FREQ_CAP"
)

// PartnerAdRequestEvent is an immutable record of every partner ad request,
// whether or not it was filled.
type PartnerAdRequestEvent struct {
	ID             int64
	PartnerID      int
	Timestamp      time.Time
	Category       *string
	Geo            *string
	Device         *string
	Placement      *string
	Filled         bool
	AdID           *int
	CampaignID     *int
	AssignmentCode *string
	Explanation    *string
	ScoreBreakdown *string // serialized JSON
	UnfilledReason *UnfilledReason
}

// PartnerAdExposure tracks the last time a given (partner, ad) pair was
// served, for the frequency-cap check in C10.
type PartnerAdExposure struct {
	PartnerID     int
	AdID          int
	LastServedAt  time.Time
}

// TargetingContext is the optional targeting tuple a partner ad request may carry.
type TargetingContext struct {
	Category  string
	Geo       string
	Device    string
	Placement string
}
