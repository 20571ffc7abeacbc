package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/avct/uasurfer"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve/internal/logic/ctr"
	"github.com/patrickwarner/openadserve/internal/logic/delivery"
	"github.com/patrickwarner/openadserve/internal/logic/exploration"
	"github.com/patrickwarner/openadserve/internal/logic/fingerprint"
	"github.com/patrickwarner/openadserve/internal/logic/market"
	"github.com/patrickwarner/openadserve/internal/logic/quality"
	"github.com/patrickwarner/openadserve/internal/logic/scoring"
	"github.com/patrickwarner/openadserve/internal/logic/selection"
	"github.com/patrickwarner/openadserve/internal/models"
)

type campaignResponse struct {
	ID            int     `json:"id"`
	MaxCPC        float64 `json:"max_cpc"`
	PartnerPayout float64 `json:"partner_payout"`
}

type adResponse struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	ImageURL       string `json:"image_url,omitempty"`
	DestinationURL string `json:"destination_url"`
}

type adRequestResult struct {
	Filled          bool               `json:"filled"`
	Reason          string             `json:"reason,omitempty"`
	AssignmentCode  string             `json:"assignment_code,omitempty"`
	TrackingURL     string             `json:"tracking_url,omitempty"`
	Campaign        *campaignResponse  `json:"campaign,omitempty"`
	Ad              *adResponse        `json:"ad,omitempty"`
	Explanation     string             `json:"explanation,omitempty"`
	ScoreBreakdown  *scoring.Breakdown `json:"score_breakdown,omitempty"`
	DebugCandidates []debugCandidate   `json:"debug_candidates,omitempty"`
}

type debugCandidate struct {
	CampaignID int               `json:"campaign_id"`
	AdID       int               `json:"ad_id"`
	Score      float64           `json:"score"`
	Breakdown  scoring.Breakdown `json:"breakdown"`
}

// PartnerAdHandler serves GET /api/partner/ad?category&geo&device&placement.
func (s *Server) PartnerAdHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "partner_ad"
	const method = "GET"
	ctx := r.Context()
	log := zap.L()

	partnerID, ok := partnerIDFromRequest(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_identity"}`))
		s.Metrics.IncrementRequests(endpoint, method, "401")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	q := r.URL.Query()
	reqCtx := models.TargetingContext{
		Category:  q.Get("category"),
		Geo:       q.Get("geo"),
		Device:    q.Get("device"),
		Placement: q.Get("placement"),
	}
	if reqCtx.Geo == "" {
		reqCtx.Geo = s.geoFromRequest(r)
	}
	if reqCtx.Device == "" {
		reqCtx.Device = deviceFromUA(r.UserAgent())
	}

	now := time.Now().UTC()
	selCtx, cancel := context.WithTimeout(ctx, s.Config.SelectionTimeout)
	defer cancel()

	result, err := s.selectAd(selCtx, partnerID, reqCtx, now)
	if err != nil {
		log.Error("partner ad selection failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	outcomeLabel := "filled"
	if !result.Filled {
		outcomeLabel = result.Reason
	}
	s.Metrics.IncrementSelectionOutcome(outcomeLabel)
	s.Metrics.RecordSelectionDuration(time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func partnerIDFromRequest(r *http.Request) (int, bool) {
	raw := r.Header.Get("X-Partner-ID")
	if raw == "" {
		raw = r.URL.Query().Get("partner_id")
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// selectAd implements C10: eligibility filter, frequency cap, concurrent
// scoring via C4-C9, tie-break, and the assignment/exposure/event persistence
// on success or failure.
func (s *Server) selectAd(ctx context.Context, partnerID int, reqCtx models.TargetingContext, now time.Time) (adRequestResult, error) {
	cfg := s.Config

	campaigns, err := s.PG.EligibleCampaigns(ctx, now)
	if err != nil {
		return adRequestResult{}, err
	}

	snapshot, err := s.marketSnapshot(ctx, now)
	if err != nil {
		return adRequestResult{}, err
	}
	multipliers := market.Derive(snapshot, marketThresholds(cfg))

	partnerRejectRate, err := s.PG.PartnerRejectRate(ctx, partnerID, cfg.MatchRejectLookbackDays, now)
	if err != nil {
		return adRequestResult{}, err
	}
	accepted, rejected, err := s.PG.PartnerQualityWindow(ctx, partnerID, cfg.PartnerQualityLongDays, now)
	if err != nil {
		return adRequestResult{}, err
	}
	recentAccepted, recentRejected, err := s.PG.PartnerQualityWindow(ctx, partnerID, cfg.PartnerQualityRecentDays, now)
	if err != nil {
		return adRequestResult{}, err
	}
	qualityResult := quality.Classify(
		quality.WindowCounts{Accepted: recentAccepted, Rejected: recentRejected},
		quality.WindowCounts{Accepted: accepted, Rejected: rejected},
		qualityThresholds(cfg),
	)

	var candidates []selection.Candidate
	for _, c := range campaigns {
		if reqCtx.Category != "" && !models.MatchesTargetingField(c.Category, reqCtx.Category) {
			continue
		}
		if reqCtx.Geo != "" && !models.MatchesTargetingField(c.Geo, reqCtx.Geo) {
			continue
		}
		if reqCtx.Device != "" && !models.MatchesTargetingField(c.Device, reqCtx.Device) {
			continue
		}
		if reqCtx.Placement != "" && !models.MatchesTargetingField(c.Placement, reqCtx.Placement) {
			continue
		}

		ad, err := s.PG.LowestActiveAd(ctx, c.ID)
		if err != nil {
			return adRequestResult{}, err
		}
		if ad == nil {
			continue
		}

		cand := selection.Candidate{Campaign: c, Ad: *ad}
		exposure, err := s.PG.Exposure(ctx, partnerID, ad.ID)
		if err != nil {
			return adRequestResult{}, err
		}
		if exposure != nil {
			cand.LastServedWithinCap = selection.WithinFreqCap(exposure.LastServedAt, now, cfg.FreqCapSeconds)
		}
		priorCount, err := s.PG.PriorAssignmentCount(ctx, partnerID)
		if err != nil {
			return adRequestResult{}, err
		}
		cand.PriorAssignments = priorCount

		candidates = append(candidates, cand)
	}

	scoreFn := func(ctx context.Context, c selection.Candidate) (scoring.Result, error) {
		return s.scoreCandidate(ctx, partnerID, c, reqCtx, multipliers, qualityResult, partnerRejectRate, now)
	}

	outcome := selection.Select(ctx, candidates, scoreFn, cfg.MatchingDebug)

	event := models.PartnerAdRequestEvent{
		PartnerID: partnerID,
		Timestamp: now,
		Category:  optionalString(reqCtx.Category),
		Geo:       optionalString(reqCtx.Geo),
		Device:    optionalString(reqCtx.Device),
		Placement: optionalString(reqCtx.Placement),
		Filled:    outcome.Filled,
	}

	if !outcome.Filled {
		reason := outcome.UnfilledReason
		event.UnfilledReason = &reason
		if _, err := s.PG.InsertRequestEvent(ctx, event); err != nil {
			return adRequestResult{}, err
		}
		if s.Analytics != nil {
			_ = s.Analytics.RecordRequest(ctx, event)
		}
		return adRequestResult{Filled: false, Reason: string(reason)}, nil
	}

	winner := outcome.Winner
	assignment, err := s.PG.CreateAssignment(ctx, models.AdAssignment{
		PartnerID:  partnerID,
		CampaignID: winner.Candidate.Campaign.ID,
		AdID:       winner.Candidate.Ad.ID,
		Category:   optionalString(reqCtx.Category),
		Geo:        optionalString(reqCtx.Geo),
		Device:     optionalString(reqCtx.Device),
		Placement:  optionalString(reqCtx.Placement),
	})
	if err != nil {
		return adRequestResult{}, err
	}
	if err := s.PG.UpsertExposure(ctx, partnerID, winner.Candidate.Ad.ID, now); err != nil {
		return adRequestResult{}, err
	}

	breakdownJSON, _ := json.Marshal(winner.Result.Breakdown)
	breakdownStr := string(breakdownJSON)
	event.AdID = &winner.Candidate.Ad.ID
	event.CampaignID = &winner.Candidate.Campaign.ID
	event.AssignmentCode = &assignment.Code
	event.Explanation = &winner.Result.Explanation
	event.ScoreBreakdown = &breakdownStr
	if _, err := s.PG.InsertRequestEvent(ctx, event); err != nil {
		return adRequestResult{}, err
	}
	if s.Analytics != nil {
		_ = s.Analytics.RecordRequest(ctx, event)
	}

	result := adRequestResult{
		Filled:         true,
		AssignmentCode: assignment.Code,
		TrackingURL:    "/t/" + assignment.Code,
		Campaign: &campaignResponse{
			ID:            winner.Candidate.Campaign.ID,
			MaxCPC:        winner.Candidate.Campaign.BuyerCPC,
			PartnerPayout: winner.Candidate.Campaign.PartnerPayout,
		},
		Ad: &adResponse{
			ID:             winner.Candidate.Ad.ID,
			Title:          winner.Candidate.Ad.Title,
			Body:           winner.Candidate.Ad.Body,
			ImageURL:       winner.Candidate.Ad.ImageURL,
			DestinationURL: winner.Candidate.Ad.DestinationURL,
		},
		Explanation:    winner.Result.Explanation,
		ScoreBreakdown: &winner.Result.Breakdown,
	}
	if cfg.MatchingDebug {
		for _, d := range outcome.DebugCandidates {
			result.DebugCandidates = append(result.DebugCandidates, debugCandidate{
				CampaignID: d.Candidate.Campaign.ID,
				AdID:       d.Candidate.Ad.ID,
				Score:      d.Result.Score,
				Breakdown:  d.Result.Breakdown,
			})
		}
	}
	return result, nil
}

// scoreCandidate computes C6-C9 for one candidate.
func (s *Server) scoreCandidate(ctx context.Context, partnerID int, c selection.Candidate, reqCtx models.TargetingContext, mult market.Multipliers, q quality.Result, partnerRejectRate float64, now time.Time) (scoring.Result, error) {
	cfg := s.Config

	partnerAdClicks, partnerAdImps, err := s.PG.CTRCounts(ctx, &partnerID, nil, &c.Ad.ID, cfg.MatchCTRLookbackDays, now)
	if err != nil {
		return scoring.Result{}, err
	}
	partnerCampClicks, partnerCampImps, err := s.PG.CTRCounts(ctx, &partnerID, &c.Campaign.ID, nil, cfg.MatchCTRLookbackDays, now)
	if err != nil {
		return scoring.Result{}, err
	}
	globalCampClicks, globalCampImps, err := s.PG.CTRCounts(ctx, nil, &c.Campaign.ID, nil, cfg.MatchCTRLookbackDays, now)
	if err != nil {
		return scoring.Result{}, err
	}
	estimatedCTR := ctr.Estimate(
		ctr.Counts{Clicks: partnerAdClicks, Impressions: partnerAdImps},
		ctr.Counts{Clicks: partnerCampClicks, Impressions: partnerCampImps},
		ctr.Counts{Clicks: globalCampClicks, Impressions: globalCampImps},
	)

	payout := c.Campaign.PartnerPayout

	targeting := scoring.Targeting{
		CategoryMatch:  models.TargetingBonusMatches(c.Campaign.Category, reqCtx.Category),
		GeoMatch:       models.TargetingBonusMatches(c.Campaign.Geo, reqCtx.Geo),
		DeviceMatch:    models.TargetingBonusMatches(c.Campaign.Device, reqCtx.Device),
		PlacementMatch: models.TargetingBonusMatches(c.Campaign.Placement, reqCtx.Placement),
	}

	partnerRequests, partnerAdServes, err := s.explorationCounts(ctx, partnerID, c.Ad.ID, cfg.ExplorationLookbackDays, now)
	if err != nil {
		return scoring.Result{}, err
	}
	servesInWindow, err := s.Cache.ExplorationServeCount(partnerID, c.Ad.ID)
	if err != nil {
		servesInWindow = 0
	}
	explore := exploration.Evaluate(partnerID, c.Ad.ID, partnerRequests, partnerAdServes, servesInWindow, explorationThresholds(cfg))

	deliveryStats, err := s.deliveryStats(ctx, c.Campaign, cfg.DeliveryLookbackDays, now)
	if err != nil {
		return scoring.Result{}, err
	}
	deliveryDecision := delivery.Evaluate(deliveryStats, deliveryThresholds(cfg))

	in := scoring.Inputs{
		BuyerCPC:            c.Campaign.BuyerCPC,
		PartnerPayout:       payout,
		CTR:                 estimatedCTR,
		CTRWeight:           cfg.MatchCTRWeight,
		Targeting:           targeting,
		TargetingBonusValue: cfg.MatchTargetingBonus,
		PartnerRejectRate:   partnerRejectRate,
		RejectPenaltyWeight: cfg.MatchRejectPenaltyWeight,
		Market:              mult,
		Quality:             q,
		Explore:             explore,
		Delivery:            deliveryDecision,
	}
	result := scoring.Score(in)

	if explore.Applied {
		lookback := time.Duration(cfg.ExplorationLookbackDays) * 24 * time.Hour
		if err := s.Cache.IncrementExplorationServe(partnerID, c.Ad.ID, lookback); err != nil {
			zap.L().Warn("increment exploration serve count", zap.Error(err))
		}
	}
	return result, nil
}

// explorationCounts returns the two counts C7 judges novelty by. Both are
// accepted-impression counts from CTRCounts over the lookback: partner-wide
// for partnerRequests, and for the partner and ad for adServesToPartner.
// Ad requests and assignments without an accepted impression are not counted.
func (s *Server) explorationCounts(ctx context.Context, partnerID, adID, lookbackDays int, now time.Time) (partnerRequests, adServesToPartner int, err error) {
	_, partnerRequests, err = s.PG.CTRCounts(ctx, &partnerID, nil, nil, lookbackDays, now)
	if err != nil {
		return 0, 0, err
	}
	_, adServesToPartner, err = s.PG.CTRCounts(ctx, &partnerID, nil, &adID, lookbackDays, now)
	if err != nil {
		return 0, 0, err
	}
	return partnerRequests, adServesToPartner, nil
}

func (s *Server) deliveryStats(ctx context.Context, c models.Campaign, lookbackDays int, now time.Time) (delivery.Stats, error) {
	clicks, impressions, err := s.PG.CTRCounts(ctx, nil, &c.ID, nil, lookbackDays, now)
	if err != nil {
		return delivery.Stats{}, err
	}
	remainingRatio := 0.0
	if c.BudgetTotal > 0 {
		remainingRatio = c.BudgetRemaining() / c.BudgetTotal
	}
	return delivery.Stats{
		Requests:             impressions,
		Clicks:               clicks,
		Impressions:          impressions,
		BudgetRemainingRatio: remainingRatio,
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// geoFromRequest resolves a geo targeting dimension from the caller's IP when
// the partner didn't supply an explicit geo param.
func (s *Server) geoFromRequest(r *http.Request) string {
	if s.GeoIP == nil {
		return ""
	}
	ip := net.ParseIP(fingerprint.RequestIP(r))
	if ip == nil {
		return ""
	}
	return s.GeoIP.Country(ip)
}

// deviceFromUA classifies the request's User-Agent into a device targeting
// value when the partner didn't supply one explicitly.
func deviceFromUA(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := uasurfer.Parse(ua)
	switch parsed.DeviceType {
	case uasurfer.DeviceTablet:
		return "tablet"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceComputer:
		return "desktop"
	default:
		return ""
	}
}
