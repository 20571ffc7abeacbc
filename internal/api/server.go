package api

import (
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve/internal/analytics"
	"github.com/patrickwarner/openadserve/internal/config"
	"github.com/patrickwarner/openadserve/internal/db"
	"github.com/patrickwarner/openadserve/internal/geoip"
	"github.com/patrickwarner/openadserve/internal/logic/ratelimit"
	"github.com/patrickwarner/openadserve/internal/observability"
)

// Server groups the dependencies every HTTP handler needs: the
// transactional store, the market-health/exploration cache, the append-only
// analytics mirror, config, and the process-shared rate limiter.
type Server struct {
	Logger    *zap.Logger
	PG        *db.Postgres
	Cache     *db.RedisStore
	Analytics *analytics.Analytics
	GeoIP     *geoip.GeoIP
	Metrics   observability.MetricsRegistry
	Config    config.Config
	Limiter   *ratelimit.Limiter
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, pg *db.Postgres, cache *db.RedisStore, an *analytics.Analytics, geo *geoip.GeoIP, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	return &Server{
		Logger:    logger,
		PG:        pg,
		Cache:     cache,
		Analytics: an,
		GeoIP:     geo,
		Metrics:   metrics,
		Config:    cfg,
		Limiter:   ratelimit.New(time.Minute),
	}
}
