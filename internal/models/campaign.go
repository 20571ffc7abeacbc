package models

import "time"

// CampaignStatus is the lifecycle state of a Campaign.
type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
)

// Campaign is a buyer's running order: a budget, a per-click price, and an
// optional targeting quadruple that narrows which partner requests it is
// eligible for.
type Campaign struct {
	ID             int
	OwnerID        int
	Status         CampaignStatus
	BudgetTotal    float64
	BudgetSpent    float64
	BuyerCPC       float64
	PartnerPayout  float64
	Category       *string
	Geo            *string
	Device         *string
	Placement      *string
	StartDate      *time.Time
	EndDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BudgetRemaining is the derived, non-negative spendable balance.
func (c *Campaign) BudgetRemaining() float64 {
	remaining := c.BudgetTotal - c.BudgetSpent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MatchesTargetingField is the eligibility rule (C10): a campaign's optional
// targeting field matches a provided request value iff it is null or equal.
// Only call this for fields the request actually supplied.
func MatchesTargetingField(campaignValue *string, requestValue string) bool {
	if campaignValue == nil {
		return true
	}
	return *campaignValue == requestValue
}

// TargetingBonusMatches is the scoring rule (C9): unlike eligibility, a null
// campaign field earns no targeting bonus — only an explicit equal value does.
func TargetingBonusMatches(campaignValue *string, requestValue string) bool {
	if campaignValue == nil || requestValue == "" {
		return false
	}
	return *campaignValue == requestValue
}
