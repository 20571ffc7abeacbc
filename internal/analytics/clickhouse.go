// Package analytics mirrors every partner ad request — filled or not — into
// ClickHouse for high-volume analytical queries that would be expensive
// against the transactional Postgres store.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/openadserve/internal/models"
)

// ErrUnavailable is returned by RecordRequest when ClickHouse is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse DB connection holding the request-event mirror.
type Analytics struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse with connection pooling and ensures
// the partner_ad_request_events mirror table exists.
func InitClickHouse(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Analytics, error) {
	sqlDB, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	if err := sqlDB.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	create := `CREATE TABLE IF NOT EXISTS partner_ad_request_events (
       timestamp       DateTime,
       partner_id      Int32,
       category        Nullable(String),
       geo             Nullable(String),
       device          Nullable(String),
       placement       Nullable(String),
       filled          UInt8,
       ad_id           Nullable(Int32),
       campaign_id     Nullable(Int32),
       assignment_code Nullable(String),
       unfilled_reason Nullable(String)
   ) ENGINE=MergeTree() ORDER BY (partner_id, timestamp)`
	if _, err := sqlDB.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: sqlDB}, nil
}

// RecordRequest mirrors a PartnerAdRequestEvent into ClickHouse, write-through
// from the selection orchestrator. Failures here are logged, not fatal: the
// transactional Postgres row is the system of record.
func (a *Analytics) RecordRequest(ctx context.Context, e models.PartnerAdRequestEvent) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	var unfilledReason *string
	if e.UnfilledReason != nil {
		s := string(*e.UnfilledReason)
		unfilledReason = &s
	}
	stmt := `INSERT INTO partner_ad_request_events
	    (timestamp, partner_id, category, geo, device, placement, filled, ad_id, campaign_id, assignment_code, unfilled_reason)
	    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	filled := uint8(0)
	if e.Filled {
		filled = 1
	}
	if _, err := a.DB.ExecContext(ctx, stmt, e.Timestamp, e.PartnerID, e.Category, e.Geo, e.Device, e.Placement,
		filled, e.AdID, e.CampaignID, e.AssignmentCode, unfilledReason); err != nil {
		return fmt.Errorf("insert partner ad request event: %w", err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
