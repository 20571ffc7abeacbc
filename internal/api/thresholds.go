package api

import (
	"context"
	"time"

	"github.com/patrickwarner/openadserve/internal/config"
	"github.com/patrickwarner/openadserve/internal/logic/delivery"
	"github.com/patrickwarner/openadserve/internal/logic/exploration"
	"github.com/patrickwarner/openadserve/internal/logic/market"
	"github.com/patrickwarner/openadserve/internal/logic/quality"
)

func marketThresholds(cfg config.Config) market.Thresholds {
	return market.Thresholds{
		FillLow:                 cfg.MarketHealthFillLow,
		FillHigh:                cfg.MarketHealthFillHigh,
		EligibleSupplyLow:       cfg.MarketHealthEligibleSupplyLow,
		RejectVolatilityThresh:  cfg.MarketHealthRejectVolatilityThresh,
		UnfilledStreakThreshold: cfg.MarketHealthUnfilledStreakThreshold,
		RejectHealthy:           cfg.MarketHealthRejectHealthy,
		ProfitBoostLowFill:      cfg.AlphaProfitBoostLowFill,
		ProfitBoostLowSupply:    cfg.AlphaProfitBoostLowSupply,
		CTRBoostHealthy:         cfg.BetaCTRBoostHealthy,
		TargetingBoostLowFill:   cfg.GammaTargetingBoostLowFill,
		TargetingBoostUnfilled:  cfg.GammaTargetingBoostUnfilled,
		MarketBoostLowFill:      cfg.DeltaQualityBoostLowFill,
		MarketBoostVolatility:   cfg.DeltaQualityBoostVolatility,
	}
}

func qualityThresholds(cfg config.Config) quality.Thresholds {
	return quality.Thresholds{
		NewClicksThreshold:   cfg.PartnerQualityNewClicks,
		RiskyRejectRate:      cfg.PartnerQualityRiskyRejectRate,
		RecoveringRejectRate: cfg.PartnerQualityRecoverRejectRate,
		DeltaNew:             cfg.PartnerQualityDeltaNew,
		DeltaStable:          cfg.PartnerQualityDeltaStable,
		DeltaRisky:           cfg.PartnerQualityDeltaRisky,
		DeltaRecovering:      cfg.PartnerQualityDeltaRecovering,
	}
}

func explorationThresholds(cfg config.Config) exploration.Thresholds {
	return exploration.Thresholds{
		Rate:               cfg.ExplorationRate,
		Bonus:              cfg.ExplorationBonus,
		NewPartnerRequests: cfg.ExplorationNewPartnerRequests,
		NewAdServes:        cfg.ExplorationNewAdServes,
		MaxAdServes:        cfg.ExplorationMaxAdServes,
	}
}

func deliveryThresholds(cfg config.Config) delivery.Thresholds {
	return delivery.Thresholds{
		MinRequests:             cfg.DeliveryMinRequests,
		LowClickRate:            cfg.DeliveryLowClickRate,
		MinBudgetRemainingRatio: cfg.DeliveryMinBudgetRemainingRatio,
		BoostValue:              cfg.DeliveryBoostValue,
	}
}

// marketSnapshotCacheTTL is the sub-second cache window the design notes
// allow for C5's snapshot computation.
const marketSnapshotCacheTTL = 500 * time.Millisecond

// marketSnapshot returns the cached snapshot if fresh, else recomputes it
// from Postgres and repopulates the cache.
func (s *Server) marketSnapshot(ctx context.Context, now time.Time) (market.Snapshot, error) {
	if s.Cache != nil {
		if snap, ok := s.Cache.CachedMarketSnapshot(); ok {
			return snap, nil
		}
	}
	snap, err := s.PG.MarketSnapshot(ctx, s.Config.MarketHealthWindowMinutes, s.Config.MarketHealthStreakSample, now)
	if err != nil {
		return market.Snapshot{}, err
	}
	if s.Cache != nil {
		_ = s.Cache.CacheMarketSnapshot(snap, marketSnapshotCacheTTL)
	}
	return snap, nil
}
