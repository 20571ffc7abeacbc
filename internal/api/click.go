package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve/internal/logic/click"
	"github.com/patrickwarner/openadserve/internal/logic/fingerprint"
	"github.com/patrickwarner/openadserve/internal/middleware"
	"github.com/patrickwarner/openadserve/internal/models"
)

const defaultRedirect = "/"

// TrackHandler serves GET /t/<code>. It always redirects the browser —
// to the ad's destination whenever the assignment and its ad resolve,
// whether the click is accepted or rejected, and to defaultRedirect when
// they cannot be resolved. The click decision never blocks the redirect.
func (s *Server) TrackHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/t/{code}"
	const method = "GET"
	ctx := r.Context()
	logger := middleware.LoggerFromRequest(r, s.Logger)

	code := mux.Vars(r)["code"]
	if code == "" {
		http.Redirect(w, r, defaultRedirect, http.StatusFound)
		s.Metrics.IncrementRequests(endpoint, method, "302")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	now := time.Now().UTC()
	ipHash := fingerprint.Hash(s.Config.ClickHashSalt, fingerprint.RequestIP(r))
	uaHash := fingerprint.UAHash(s.Config.ClickHashSalt, r.UserAgent())
	duplicateWindow := time.Duration(s.Config.ClickDuplicateWindowSeconds) * time.Second

	lookup := func(c string) (*models.AdAssignment, error) {
		return s.PG.AssignmentByCode(ctx, c)
	}
	duplicateExists := func(assignmentCode, ip string, window time.Duration) (bool, error) {
		return s.PG.DuplicateClickExists(ctx, assignmentCode, ip, window, now)
	}

	decision, err := click.Validate(code, r.UserAgent(), ipHash, uaHash, lookup, duplicateExists, duplicateWindow, s.Limiter, now, s.Config.ClickRateLimitPerMinute)
	if err != nil {
		logger.Error("click validation", zap.Error(err))
		http.Redirect(w, r, defaultRedirect, http.StatusFound)
		s.Metrics.IncrementRequests(endpoint, method, "302")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	destination := defaultRedirect
	if decision.Assignment != nil {
		if ad, err := s.PG.AdByID(ctx, decision.Assignment.AdID); err != nil {
			logger.Error("lookup ad", zap.Error(err))
		} else if ad != nil && ad.DestinationURL != "" {
			destination = ad.DestinationURL
		}
	}

	switch {
	case decision.Status == models.ClickAccepted:
		if _, err := s.PG.DebitClick(ctx, *decision.Assignment, ipHash, uaHash, now); err != nil {
			logger.Error("debit click", zap.Error(err))
		}
		s.Metrics.IncrementClickDecision(string(models.ClickAccepted))
	case decision.Assignment != nil:
		reason := models.ReasonInvalidAssignment
		if decision.RejectReason != nil {
			reason = *decision.RejectReason
		}
		a := decision.Assignment
		if _, err := s.PG.RecordRejectedClick(ctx, &a.PartnerID, &a.CampaignID, &a.AdID, a.Code, ipHash, uaHash, reason, now); err != nil {
			logger.Error("record rejected click", zap.Error(err))
		}
		s.Metrics.IncrementClickDecision(string(reason))
	default:
		// No assignment resolved at all: still persist a REJECTED ClickEvent,
		// with the dimension ids left null, under the code the caller submitted.
		if _, err := s.PG.RecordRejectedClick(ctx, nil, nil, nil, code, ipHash, uaHash, models.ReasonInvalidAssignment, now); err != nil {
			logger.Error("record rejected click", zap.Error(err))
		}
		s.Metrics.IncrementClickDecision(string(models.ReasonInvalidAssignment))
	}

	http.Redirect(w, r, destination, http.StatusFound)
	s.Metrics.IncrementRequests(endpoint, method, "302")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
