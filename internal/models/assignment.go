package models

import "time"

// AdAssignment is issued once per (partner, request) winner and is the primary
// key a tracking click resolves against.
type AdAssignment struct {
	ID         int
	Code       string
	PartnerID  int
	CampaignID int
	AdID       int
	Category   *string
	Geo        *string
	Device     *string
	Placement  *string
	CreatedAt  time.Time
}
