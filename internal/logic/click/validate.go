// Package click implements the ordered click-validation decision chain (C11).
package click

import (
	"strings"
	"time"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/openadserve/internal/logic/ratelimit"
	"github.com/patrickwarner/openadserve/internal/models"
)

// AssignmentLookup resolves a tracking code to its assignment, or nil if
// none exists.
type AssignmentLookup func(code string) (*models.AdAssignment, error)

// DuplicateCheck reports whether a prior ClickEvent with the same
// (assignment_code, ip_hash) exists within the duplicate window.
type DuplicateCheck func(assignmentCode, ipHash string, window time.Duration) (bool, error)

// Decision carries the validator's verdict along with the fingerprints
// downstream persistence needs regardless of outcome.
type Decision struct {
	Status       models.ClickStatus
	RejectReason *models.RejectReason
	Assignment   *models.AdAssignment
	IPHash       string
	UAHash       *string
}

func rejected(reason models.RejectReason, assignment *models.AdAssignment, ipHash string, uaHash *string) Decision {
	r := reason
	return Decision{Status: models.ClickRejected, RejectReason: &r, Assignment: assignment, IPHash: ipHash, UAHash: uaHash}
}

// Validate runs the five-step decision chain in order. The UA check
// (BOT_SUSPECTED, a blank UA or one uasurfer classifies as a bot/crawler)
// runs before the duplicate-click check: it's treated as a stronger signal
// than duplication, and checking it first means a bot replaying the same
// (assignment_code, ip_hash) is flagged BOT_SUSPECTED rather than
// DUPLICATE_CLICK on its second hit. This ordering is intentional and must
// not be swapped.
func Validate(
	code, ua, ipHash string,
	uaHash *string,
	lookupAssignment AssignmentLookup,
	duplicateExists DuplicateCheck,
	duplicateWindow time.Duration,
	limiter *ratelimit.Limiter,
	now time.Time,
	rateLimitPerMinute int,
) (Decision, error) {
	assignment, err := lookupAssignment(code)
	if err != nil {
		return Decision{}, err
	}
	if assignment == nil {
		return rejected(models.ReasonInvalidAssignment, nil, ipHash, uaHash), nil
	}

	if strings.TrimSpace(ua) == "" || uasurfer.Parse(ua).Browser.Name == uasurfer.BrowserBot {
		return rejected(models.ReasonBotSuspected, assignment, ipHash, uaHash), nil
	}

	dup, err := duplicateExists(assignment.Code, ipHash, duplicateWindow)
	if err != nil {
		return Decision{}, err
	}
	if dup {
		return rejected(models.ReasonDuplicateClick, assignment, ipHash, uaHash), nil
	}

	if !limiter.Allow(ipHash, now, rateLimitPerMinute) {
		return rejected(models.ReasonRateLimit, assignment, ipHash, uaHash), nil
	}

	return Decision{Status: models.ClickAccepted, Assignment: assignment, IPHash: ipHash, UAHash: uaHash}, nil
}
