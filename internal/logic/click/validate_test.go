package click

import (
	"errors"
	"testing"
	"time"

	"github.com/patrickwarner/openadserve/internal/logic/ratelimit"
	"github.com/patrickwarner/openadserve/internal/models"
)

func testAssignment() *models.AdAssignment {
	return &models.AdAssignment{ID: 1, Code: "abc123", PartnerID: 1, CampaignID: 1, AdID: 1}
}

func noopLookup(a *models.AdAssignment) AssignmentLookup {
	return func(string) (*models.AdAssignment, error) { return a, nil }
}

func dupCheck(v bool) DuplicateCheck {
	return func(string, string, time.Duration) (bool, error) { return v, nil }
}

func TestValidateRejectsUnknownAssignment(t *testing.T) {
	d, err := Validate("missing", "Mozilla/5.0", "iphash", nil, noopLookup(nil), dupCheck(false), time.Minute, ratelimit.New(time.Minute), time.Now(), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != models.ClickRejected || *d.RejectReason != models.ReasonInvalidAssignment {
		t.Fatalf("got %+v, want INVALID_ASSIGNMENT rejection", d)
	}
}

func TestValidateBotSuspectedPrecedesDuplicateCheck(t *testing.T) {
	// The duplicate check, if reached, would also reject — but BOT_SUSPECTED
	// must win since the UA check runs first.
	d, err := Validate("abc123", "   ", "iphash", nil, noopLookup(testAssignment()), dupCheck(true), time.Minute, ratelimit.New(time.Minute), time.Now(), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != models.ClickRejected || *d.RejectReason != models.ReasonBotSuspected {
		t.Fatalf("got %+v, want BOT_SUSPECTED rejection", d)
	}
}

func TestValidateRejectsDuplicateClick(t *testing.T) {
	d, err := Validate("abc123", "Mozilla/5.0", "iphash", nil, noopLookup(testAssignment()), dupCheck(true), time.Minute, ratelimit.New(time.Minute), time.Now(), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != models.ClickRejected || *d.RejectReason != models.ReasonDuplicateClick {
		t.Fatalf("got %+v, want DUPLICATE_CLICK rejection", d)
	}
}

func TestValidateRejectsOverRateLimit(t *testing.T) {
	limiter := ratelimit.New(time.Minute)
	now := time.Now()
	limiter.Allow("iphash", now, 1)

	d, err := Validate("abc123", "Mozilla/5.0", "iphash", nil, noopLookup(testAssignment()), dupCheck(false), time.Minute, limiter, now, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != models.ClickRejected || *d.RejectReason != models.ReasonRateLimit {
		t.Fatalf("got %+v, want RATE_LIMIT rejection", d)
	}
}

func TestValidateAccepts(t *testing.T) {
	d, err := Validate("abc123", "Mozilla/5.0", "iphash", nil, noopLookup(testAssignment()), dupCheck(false), time.Minute, ratelimit.New(time.Minute), time.Now(), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != models.ClickAccepted {
		t.Fatalf("got %+v, want accepted", d)
	}
}

func TestValidatePropagatesLookupError(t *testing.T) {
	lookupErr := errors.New("db down")
	_, err := Validate("abc123", "Mozilla/5.0", "iphash", nil,
		func(string) (*models.AdAssignment, error) { return nil, lookupErr },
		dupCheck(false), time.Minute, ratelimit.New(time.Minute), time.Now(), 60)
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error to propagate, got %v", err)
	}
}
