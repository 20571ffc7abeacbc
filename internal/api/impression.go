package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve/internal/logic/fingerprint"
	"github.com/patrickwarner/openadserve/internal/middleware"
	"github.com/patrickwarner/openadserve/internal/models"
)

type impressionResponse struct {
	Status  string `json:"status"`
	Deduped bool   `json:"deduped"`
}

// ImpressionHandler serves POST /api/track/impression?code=….
func (s *Server) ImpressionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "track_impression"
	const method = "POST"
	ctx := r.Context()
	logger := middleware.LoggerFromRequest(r, s.Logger)

	code := r.URL.Query().Get("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"missing_code"}`))
		s.Metrics.IncrementImpressionEvent("missing_code")
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	assignment, err := s.PG.AssignmentByCode(ctx, code)
	if err != nil {
		logger.Error("lookup assignment", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}
	if assignment == nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
		s.Metrics.IncrementRequests(endpoint, method, "404")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	now := time.Now().UTC()
	window := time.Duration(s.Config.ImpressionDedupWindowSeconds) * time.Second
	ipHash := fingerprint.Hash(s.Config.ClickHashSalt, fingerprint.RequestIP(r))

	dup, err := s.PG.DuplicateImpressionExists(ctx, code, window, now)
	if err != nil {
		logger.Error("duplicate impression check", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	event := models.ImpressionEvent{
		AssignmentCode: code,
		Timestamp:      now,
		IPHash:         ipHash,
		Status:         models.ImpressionAccepted,
	}
	if dup {
		event.Status = models.ImpressionDeduped
		reason := models.DedupReasonDuplicateWindow
		event.DedupReason = &reason
	}
	if _, err := s.PG.InsertImpressionEvent(ctx, event); err != nil {
		logger.Error("insert impression event", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	s.Metrics.IncrementImpressionEvent(string(event.Status))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(impressionResponse{Status: "ok", Deduped: dup})

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
