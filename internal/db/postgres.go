package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve/internal/logic/assignmentcode"
	"github.com/patrickwarner/openadserve/internal/logic/market"
	"github.com/patrickwarner/openadserve/internal/models"
)

// Postgres wraps a postgres DB connection holding the mediator's
// transactional store: campaigns, ads, assignments, and the click/impression/
// request event log.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS campaigns (
    id SERIAL PRIMARY KEY,
    owner_id INT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    budget_total DOUBLE PRECISION NOT NULL,
    budget_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
    buyer_cpc DOUBLE PRECISION NOT NULL,
    partner_payout DOUBLE PRECISION NOT NULL,
    category TEXT,
    geo TEXT,
    device TEXT,
    placement TEXT,
    start_date TIMESTAMPTZ,
    end_date TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ads (
    id SERIAL PRIMARY KEY,
    campaign_id INT NOT NULL REFERENCES campaigns(id),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    image_url TEXT,
    destination_url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ad_assignments (
    id SERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    partner_id INT NOT NULL,
    campaign_id INT NOT NULL REFERENCES campaigns(id),
    ad_id INT NOT NULL REFERENCES ads(id),
    category TEXT,
    geo TEXT,
    device TEXT,
    placement TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS click_events (
    id BIGSERIAL PRIMARY KEY,
    assignment_code TEXT NOT NULL,
    partner_id INT,
    campaign_id INT,
    ad_id INT,
    ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ip_hash TEXT NOT NULL,
    ua_hash TEXT,
    status TEXT NOT NULL,
    reject_reason TEXT,
    spend_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
    earnings_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
    profit_delta DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS impression_events (
    id BIGSERIAL PRIMARY KEY,
    assignment_code TEXT NOT NULL,
    ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ip_hash TEXT NOT NULL,
    status TEXT NOT NULL,
    dedup_reason TEXT
);

CREATE TABLE IF NOT EXISTS partner_ad_request_events (
    id BIGSERIAL PRIMARY KEY,
    partner_id INT NOT NULL,
    ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    category TEXT,
    geo TEXT,
    device TEXT,
    placement TEXT,
    filled BOOLEAN NOT NULL,
    ad_id INT,
    campaign_id INT,
    assignment_code TEXT,
    explanation TEXT,
    score_breakdown JSONB,
    unfilled_reason TEXT
);

CREATE TABLE IF NOT EXISTS partner_ad_exposures (
    partner_id INT NOT NULL,
    ad_id INT NOT NULL,
    last_served_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (partner_id, ad_id)
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status);
CREATE INDEX IF NOT EXISTS idx_ads_campaign_id ON ads (campaign_id);
CREATE INDEX IF NOT EXISTS idx_ad_assignments_code ON ad_assignments (code);
CREATE INDEX IF NOT EXISTS idx_click_events_assignment_ip_ts ON click_events (assignment_code, ip_hash, ts);
CREATE INDEX IF NOT EXISTS idx_click_events_campaign_ts ON click_events (campaign_id, ts);
CREATE INDEX IF NOT EXISTS idx_click_events_partner_ts ON click_events (partner_id, ts);
CREATE INDEX IF NOT EXISTS idx_impression_events_assignment_ts ON impression_events (assignment_code, ts);
CREATE INDEX IF NOT EXISTS idx_partner_ad_request_events_partner_ts ON partner_ad_request_events (partner_id, ts);
CREATE INDEX IF NOT EXISTS idx_partner_ad_exposures_last_served ON partner_ad_exposures (partner_id, ad_id, last_served_at);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.connection_string", dsn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if err := sqlDB.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: sqlDB}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// EligibleCampaigns returns active campaigns whose budget has headroom for
// one more click, within their date window (C10 eligibility, minus the
// per-field targeting checks which the caller applies against request
// context since they're cheap in-process comparisons).
func (p *Postgres) EligibleCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT id, owner_id, status, budget_total, budget_spent, buyer_cpc, partner_payout,
		       category, geo, device, placement, start_date, end_date, created_at, updated_at
		FROM campaigns
		WHERE status = 'active'
		  AND budget_spent + buyer_cpc <= budget_total
		  AND (start_date IS NULL OR start_date <= $1)
		  AND (end_date IS NULL OR end_date >= $1)`, now)
	if err != nil {
		return nil, fmt.Errorf("query eligible campaigns: %w", err)
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var category, geo, device, placement sql.NullString
		var start, end sql.NullTime
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Status, &c.BudgetTotal, &c.BudgetSpent, &c.BuyerCPC, &c.PartnerPayout,
			&category, &geo, &device, &placement, &start, &end, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Category = nullableString(category)
		c.Geo = nullableString(geo)
		c.Device = nullableString(device)
		c.Placement = nullableString(placement)
		if start.Valid {
			c.StartDate = &start.Time
		}
		if end.Valid {
			c.EndDate = &end.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LowestActiveAd returns the lowest-id active ad for a campaign, or nil.
func (p *Postgres) LowestActiveAd(ctx context.Context, campaignID int) (*models.Ad, error) {
	var a models.Ad
	var imageURL sql.NullString
	err := p.DB.QueryRowContext(ctx, `
		SELECT id, campaign_id, active, title, body, image_url, destination_url
		FROM ads WHERE campaign_id = $1 AND active ORDER BY id ASC LIMIT 1`, campaignID).
		Scan(&a.ID, &a.CampaignID, &a.Active, &a.Title, &a.Body, &imageURL, &a.DestinationURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lowest active ad: %w", err)
	}
	if imageURL.Valid {
		a.ImageURL = imageURL.String
	}
	return &a, nil
}

// Exposure returns the PartnerAdExposure for (partnerID, adID), or nil.
func (p *Postgres) Exposure(ctx context.Context, partnerID, adID int) (*models.PartnerAdExposure, error) {
	var e models.PartnerAdExposure
	err := p.DB.QueryRowContext(ctx, `
		SELECT partner_id, ad_id, last_served_at FROM partner_ad_exposures
		WHERE partner_id = $1 AND ad_id = $2`, partnerID, adID).
		Scan(&e.PartnerID, &e.AdID, &e.LastServedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query exposure: %w", err)
	}
	return &e, nil
}

// PriorAssignmentCount returns how many assignments a partner has previously
// received, used only as a tie-break signal in C10.
func (p *Postgres) PriorAssignmentCount(ctx context.Context, partnerID int) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ad_assignments WHERE partner_id = $1`, partnerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count prior assignments: %w", err)
	}
	return n, nil
}

// CreateAssignment issues a fresh assignment, retrying with a new code on a
// unique-violation (routes.generate_code's retry loop).
func (p *Postgres) CreateAssignment(ctx context.Context, a models.AdAssignment) (models.AdAssignment, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := assignmentcode.Generate()
		if err != nil {
			return models.AdAssignment{}, fmt.Errorf("generate assignment code: %w", err)
		}
		a.Code = code

		err = p.DB.QueryRowContext(ctx, `
			INSERT INTO ad_assignments (code, partner_id, campaign_id, ad_id, category, geo, device, placement)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
			a.Code, a.PartnerID, a.CampaignID, a.AdID, a.Category, a.Geo, a.Device, a.Placement).
			Scan(&a.ID, &a.CreatedAt)
		if err == nil {
			return a, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			continue // unique-violation on code: regenerate and retry
		}
		return models.AdAssignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return models.AdAssignment{}, fmt.Errorf("insert assignment: exhausted %d code attempts", maxAttempts)
}

// UpsertExposure records that (partnerID, adID) was served at servedAt.
func (p *Postgres) UpsertExposure(ctx context.Context, partnerID, adID int, servedAt time.Time) error {
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO partner_ad_exposures (partner_id, ad_id, last_served_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (partner_id, ad_id) DO UPDATE SET last_served_at = EXCLUDED.last_served_at`,
		partnerID, adID, servedAt)
	if err != nil {
		return fmt.Errorf("upsert exposure: %w", err)
	}
	return nil
}

// InsertRequestEvent persists a PartnerAdRequestEvent, filled or not.
func (p *Postgres) InsertRequestEvent(ctx context.Context, e models.PartnerAdRequestEvent) (int64, error) {
	var id int64
	var unfilledReason *string
	if e.UnfilledReason != nil {
		s := string(*e.UnfilledReason)
		unfilledReason = &s
	}
	err := p.DB.QueryRowContext(ctx, `
		INSERT INTO partner_ad_request_events
		    (partner_id, ts, category, geo, device, placement, filled, ad_id, campaign_id,
		     assignment_code, explanation, score_breakdown, unfilled_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		e.PartnerID, e.Timestamp, e.Category, e.Geo, e.Device, e.Placement, e.Filled,
		e.AdID, e.CampaignID, e.AssignmentCode, e.Explanation, e.ScoreBreakdown, unfilledReason).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert request event: %w", err)
	}
	return id, nil
}

// AssignmentByCode resolves a tracking code, or returns nil if not found.
func (p *Postgres) AssignmentByCode(ctx context.Context, code string) (*models.AdAssignment, error) {
	var a models.AdAssignment
	var category, geo, device, placement sql.NullString
	err := p.DB.QueryRowContext(ctx, `
		SELECT id, code, partner_id, campaign_id, ad_id, category, geo, device, placement, created_at
		FROM ad_assignments WHERE code = $1`, code).
		Scan(&a.ID, &a.Code, &a.PartnerID, &a.CampaignID, &a.AdID, &category, &geo, &device, &placement, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query assignment: %w", err)
	}
	a.Category = nullableString(category)
	a.Geo = nullableString(geo)
	a.Device = nullableString(device)
	a.Placement = nullableString(placement)
	return &a, nil
}

// AdByID resolves an ad by id, or returns nil if not found.
func (p *Postgres) AdByID(ctx context.Context, id int) (*models.Ad, error) {
	var a models.Ad
	var imageURL sql.NullString
	err := p.DB.QueryRowContext(ctx, `
		SELECT id, campaign_id, active, title, body, image_url, destination_url
		FROM ads WHERE id = $1`, id).
		Scan(&a.ID, &a.CampaignID, &a.Active, &a.Title, &a.Body, &imageURL, &a.DestinationURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ad: %w", err)
	}
	if imageURL.Valid {
		a.ImageURL = imageURL.String
	}
	return &a, nil
}

// DuplicateClickExists reports whether a prior ClickEvent for
// (assignmentCode, ipHash) landed within window before now.
func (p *Postgres) DuplicateClickExists(ctx context.Context, assignmentCode, ipHash string, window time.Duration, now time.Time) (bool, error) {
	var exists bool
	err := p.DB.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM click_events
			WHERE assignment_code = $1 AND ip_hash = $2 AND ts >= $3
		)`, assignmentCode, ipHash, now.Add(-window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query duplicate click: %w", err)
	}
	return exists, nil
}

// InsertImpressionEvent persists an impression-tracking decision.
func (p *Postgres) InsertImpressionEvent(ctx context.Context, e models.ImpressionEvent) (int64, error) {
	var id int64
	err := p.DB.QueryRowContext(ctx, `
		INSERT INTO impression_events (assignment_code, ts, ip_hash, status, dedup_reason)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		e.AssignmentCode, e.Timestamp, e.IPHash, e.Status, e.DedupReason).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert impression event: %w", err)
	}
	return id, nil
}

// DuplicateImpressionExists reports whether a prior ImpressionEvent for
// assignmentCode landed within window before now.
func (p *Postgres) DuplicateImpressionExists(ctx context.Context, assignmentCode string, window time.Duration, now time.Time) (bool, error) {
	var exists bool
	err := p.DB.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM impression_events
			WHERE assignment_code = $1 AND status = 'ACCEPTED' AND ts >= $2
		)`, assignmentCode, now.Add(-window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query duplicate impression: %w", err)
	}
	return exists, nil
}

// DebitClick implements the Budget Accountant (C12): under a row lock on the
// assignment's campaign, validate status/budget, apply the debit, auto-pause
// on exhaustion, and persist the ClickEvent — all inside one transaction.
func (p *Postgres) DebitClick(ctx context.Context, assignment models.AdAssignment, ipHash string, uaHash *string, now time.Time) (models.ClickEvent, error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.ClickEvent{}, fmt.Errorf("begin debit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var c models.Campaign
	err = tx.QueryRowContext(ctx, `
		SELECT id, status, budget_total, budget_spent, buyer_cpc, partner_payout
		FROM campaigns WHERE id = $1 FOR UPDATE`, assignment.CampaignID).
		Scan(&c.ID, &c.Status, &c.BudgetTotal, &c.BudgetSpent, &c.BuyerCPC, &c.PartnerPayout)

	event := models.ClickEvent{
		AssignmentCode: assignment.Code,
		PartnerID:      &assignment.PartnerID,
		CampaignID:     &assignment.CampaignID,
		AdID:           &assignment.AdID,
		Timestamp:      now,
		IPHash:         ipHash,
		UAHash:         uaHash,
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		reason := models.ReasonInvalidAssignment
		event.Status = models.ClickRejected
		event.RejectReason = &reason
	case err != nil:
		return models.ClickEvent{}, fmt.Errorf("lock campaign: %w", err)
	case c.Status != models.CampaignActive || c.BudgetRemaining() < c.BuyerCPC:
		if c.Status == models.CampaignActive {
			if _, err := tx.ExecContext(ctx, `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`,
				models.CampaignPaused, now, c.ID); err != nil {
				return models.ClickEvent{}, fmt.Errorf("pause campaign: %w", err)
			}
		}
		reason := models.ReasonBudgetExhausted
		event.Status = models.ClickRejected
		event.RejectReason = &reason
	default:
		event.Status = models.ClickAccepted
		event.SpendDelta = c.BuyerCPC
		event.EarningsDelta = c.PartnerPayout
		event.ProfitDelta = c.BuyerCPC - c.PartnerPayout

		newSpent := c.BudgetSpent + event.SpendDelta
		newStatus := c.Status
		if c.BudgetTotal-newSpent < c.BuyerCPC {
			newStatus = models.CampaignPaused
		}
		if _, err := tx.ExecContext(ctx, `UPDATE campaigns SET budget_spent = $1, status = $2, updated_at = $3 WHERE id = $4`,
			newSpent, newStatus, now, c.ID); err != nil {
			return models.ClickEvent{}, fmt.Errorf("debit campaign: %w", err)
		}
	}

	var rejectReason *string
	if event.RejectReason != nil {
		s := string(*event.RejectReason)
		rejectReason = &s
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO click_events
		    (assignment_code, partner_id, campaign_id, ad_id, ts, ip_hash, ua_hash,
		     status, reject_reason, spend_delta, earnings_delta, profit_delta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		event.AssignmentCode, event.PartnerID, event.CampaignID, event.AdID, event.Timestamp,
		event.IPHash, event.UAHash, event.Status, rejectReason,
		event.SpendDelta, event.EarningsDelta, event.ProfitDelta).Scan(&event.ID)
	if err != nil {
		return models.ClickEvent{}, fmt.Errorf("insert click event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.ClickEvent{}, fmt.Errorf("commit debit tx: %w", err)
	}
	return event, nil
}

// RecordRejectedClick persists a ClickEvent for a click that C11 already
// rejected before it ever reached the budget accountant, with zero deltas.
// partnerID/campaignID/adID are nil when the tracking code never resolved to
// an assignment (INVALID_ASSIGNMENT) — the click is still persisted.
func (p *Postgres) RecordRejectedClick(ctx context.Context, partnerID, campaignID, adID *int, assignmentCode, ipHash string, uaHash *string, reason models.RejectReason, now time.Time) (models.ClickEvent, error) {
	event := models.ClickEvent{
		AssignmentCode: assignmentCode,
		PartnerID:      partnerID,
		CampaignID:     campaignID,
		AdID:           adID,
		Timestamp:      now,
		IPHash:         ipHash,
		UAHash:         uaHash,
		Status:         models.ClickRejected,
		RejectReason:   &reason,
	}
	reasonStr := string(reason)
	err := p.DB.QueryRowContext(ctx, `
		INSERT INTO click_events
		    (assignment_code, partner_id, campaign_id, ad_id, ts, ip_hash, ua_hash, status, reject_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		event.AssignmentCode, event.PartnerID, event.CampaignID, event.AdID, event.Timestamp,
		event.IPHash, event.UAHash, event.Status, reasonStr).Scan(&event.ID)
	if err != nil {
		return models.ClickEvent{}, fmt.Errorf("insert rejected click event: %w", err)
	}
	return event, nil
}

// PartnerRejectRate returns a partner's global click reject rate over the
// trailing lookbackDays, independent of the partner-quality windows (C9).
func (p *Postgres) PartnerRejectRate(ctx context.Context, partnerID int, lookbackDays int, now time.Time) (float64, error) {
	var accepted, rejected int
	err := p.DB.QueryRowContext(ctx, `
		SELECT
		    COUNT(*) FILTER (WHERE status = 'ACCEPTED'),
		    COUNT(*) FILTER (WHERE status = 'REJECTED')
		FROM click_events WHERE partner_id = $1 AND ts >= $2`,
		partnerID, now.AddDate(0, 0, -lookbackDays)).Scan(&accepted, &rejected)
	if err != nil {
		return 0, fmt.Errorf("query partner reject rate: %w", err)
	}
	total := accepted + rejected
	if total == 0 {
		return 0, nil
	}
	return float64(rejected) / float64(total), nil
}

// PartnerQualityWindow returns accepted/rejected click counts for a partner
// over the trailing `days` (C4).
func (p *Postgres) PartnerQualityWindow(ctx context.Context, partnerID int, days int, now time.Time) (accepted, rejected int, err error) {
	err = p.DB.QueryRowContext(ctx, `
		SELECT
		    COUNT(*) FILTER (WHERE status = 'ACCEPTED'),
		    COUNT(*) FILTER (WHERE status = 'REJECTED')
		FROM click_events WHERE partner_id = $1 AND ts >= $2`,
		partnerID, now.AddDate(0, 0, -days)).Scan(&accepted, &rejected)
	if err != nil {
		return 0, 0, fmt.Errorf("query partner quality window: %w", err)
	}
	return accepted, rejected, nil
}

// CTRCounts returns click/impression counts at one of the three CTR tiers
// (C6). Exactly one of partnerID/campaignID/adID-scoped tiers is selected by
// the caller: pass nil for any dimension that tier does not scope on.
func (p *Postgres) CTRCounts(ctx context.Context, partnerID, campaignID, adID *int, lookbackDays int, now time.Time) (clicks, impressions int, err error) {
	since := now.AddDate(0, 0, -lookbackDays)

	clickWhere, clickArgs := ctrScope("ce.partner_id", "ce.campaign_id", "ce.ad_id", partnerID, campaignID, adID, since)
	err = p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM click_events ce WHERE ce.status = 'ACCEPTED' AND ce.ts >= $1`+clickWhere,
		clickArgs...).Scan(&clicks)
	if err != nil {
		return 0, 0, fmt.Errorf("query ctr clicks: %w", err)
	}

	// accepted_impressions per the CTR definition: impression_events carries no
	// partner/campaign/ad columns of its own, so scope through ad_assignments.
	impWhere, impArgs := ctrScope("aa.partner_id", "aa.campaign_id", "aa.ad_id", partnerID, campaignID, adID, since)
	err = p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM impression_events ie
		 JOIN ad_assignments aa ON aa.code = ie.assignment_code
		 WHERE ie.status = 'ACCEPTED' AND ie.ts >= $1`+impWhere,
		impArgs...).Scan(&impressions)
	if err != nil {
		return 0, 0, fmt.Errorf("query ctr impressions: %w", err)
	}
	return clicks, impressions, nil
}

// ctrScope builds the additional "AND col = $n" clauses for whichever of
// partnerID/campaignID/adID are non-nil, with since always bound to $1.
func ctrScope(partnerCol, campaignCol, adCol string, partnerID, campaignID, adID *int, since time.Time) (string, []interface{}) {
	clause := ""
	args := []interface{}{since}
	idx := 2
	if partnerID != nil {
		clause += fmt.Sprintf(" AND %s = $%d", partnerCol, idx)
		args = append(args, *partnerID)
		idx++
	}
	if campaignID != nil {
		clause += fmt.Sprintf(" AND %s = $%d", campaignCol, idx)
		args = append(args, *campaignID)
		idx++
	}
	if adID != nil {
		clause += fmt.Sprintf(" AND %s = $%d", adCol, idx)
		args = append(args, *adID)
		idx++
	}
	return clause, args
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// MarketSnapshot computes the raw window statistics for C5: fill rate and
// reject rate over the trailing windowMinutes, reject-rate volatility
// against the preceding window of equal length, eligible-ad supply per
// request, and the length of the most recent unfilled streak.
func (p *Postgres) MarketSnapshot(ctx context.Context, windowMinutes, streakSample int, now time.Time) (market.Snapshot, error) {
	window := time.Duration(windowMinutes) * time.Minute
	cutoff := now.Add(-window)
	prevCutoff := cutoff.Add(-window)

	var totalRequests, filledRequests int
	if err := p.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE filled)
		FROM partner_ad_request_events WHERE ts >= $1`, cutoff).
		Scan(&totalRequests, &filledRequests); err != nil {
		return market.Snapshot{}, fmt.Errorf("query fill rate: %w", err)
	}
	fillRate := 0.0
	if totalRequests > 0 {
		fillRate = float64(filledRequests) / float64(totalRequests)
	}

	var accepted, rejected int
	if err := p.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'ACCEPTED'), COUNT(*) FILTER (WHERE status = 'REJECTED')
		FROM click_events WHERE ts >= $1`, cutoff).
		Scan(&accepted, &rejected); err != nil {
		return market.Snapshot{}, fmt.Errorf("query reject rate: %w", err)
	}
	rejectRate := 0.0
	if accepted+rejected > 0 {
		rejectRate = float64(rejected) / float64(accepted+rejected)
	}

	var prevAccepted, prevRejected int
	if err := p.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'ACCEPTED'), COUNT(*) FILTER (WHERE status = 'REJECTED')
		FROM click_events WHERE ts >= $1 AND ts < $2`, prevCutoff, cutoff).
		Scan(&prevAccepted, &prevRejected); err != nil {
		return market.Snapshot{}, fmt.Errorf("query prev reject rate: %w", err)
	}
	prevRejectRate := 0.0
	if prevAccepted+prevRejected > 0 {
		prevRejectRate = float64(prevRejected) / float64(prevAccepted+prevRejected)
	}
	rejectVolatility := rejectRate - prevRejectRate
	if rejectVolatility < 0 {
		rejectVolatility = -rejectVolatility
	}

	var eligibleAds int
	if err := p.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ads a JOIN campaigns c ON c.id = a.campaign_id
		WHERE a.active AND c.status = 'active' AND c.budget_spent + c.buyer_cpc <= c.budget_total`).
		Scan(&eligibleAds); err != nil {
		return market.Snapshot{}, fmt.Errorf("query eligible ads: %w", err)
	}
	eligiblePerRequest := float64(eligibleAds)
	if totalRequests > 0 {
		eligiblePerRequest = float64(eligibleAds) / float64(totalRequests)
	}

	rows, err := p.DB.QueryContext(ctx, `
		SELECT filled FROM partner_ad_request_events ORDER BY ts DESC LIMIT $1`, streakSample)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("query unfilled streak: %w", err)
	}
	defer rows.Close()
	unfilledStreak := 0
	for rows.Next() {
		var filled bool
		if err := rows.Scan(&filled); err != nil {
			return market.Snapshot{}, fmt.Errorf("scan unfilled streak row: %w", err)
		}
		if filled {
			break
		}
		unfilledStreak++
	}

	return market.Snapshot{
		FillRate:              fillRate,
		RejectRate:             rejectRate,
		RejectVolatility:       rejectVolatility,
		EligibleAdsPerRequest:  eligiblePerRequest,
		UnfilledStreak:         unfilledStreak,
	}, rows.Err()
}
