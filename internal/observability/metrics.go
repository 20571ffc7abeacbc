package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediator_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediator_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// ad selection outcomes: filled or unfilled, labelled by reason
	SelectionOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediator_selection_outcomes_total",
			Help: "Total ad selection outcomes, labelled by filled/reason",
		},
		[]string{"outcome"},
	)

	// wall-clock duration of one selection call
	SelectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediator_selection_duration_seconds",
			Help:    "Duration of the ad selection pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	// candidates skipped because of the frequency cap in a single selection call
	FreqCapBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediator_freq_cap_blocked_total",
			Help: "Total candidates skipped due to frequency cap",
		},
	)

	// click decisions, labelled by final status or reject reason
	ClickDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediator_click_decisions_total",
			Help: "Total click validation decisions, labelled by status or reject reason",
		},
		[]string{"decision"},
	)

	// impression events, labelled by accepted/deduped
	ImpressionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediator_impression_events_total",
			Help: "Total impression events, labelled by status",
		},
		[]string{"status"},
	)

	// total buyer spend debited across all accepted clicks
	BudgetDebited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediator_budget_debited_total",
			Help: "Total buyer spend debited across all accepted clicks",
		},
	)

	// campaigns transitioned to paused due to budget exhaustion
	CampaignsPaused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediator_campaigns_paused_total",
			Help: "Total campaigns auto-paused on budget exhaustion",
		},
	)

	// rate limiter checks and refusals
	RateLimitRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediator_ratelimit_requests_total",
			Help: "Total rate limiter checks performed",
		},
	)
	RateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediator_ratelimit_hits_total",
			Help: "Total requests refused by the rate limiter",
		},
	)

	// exploration bonuses applied, labelled by reason
	ExplorationApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediator_exploration_applied_total",
			Help: "Total exploration bonuses applied, labelled by reason",
		},
		[]string{"reason"},
	)

	// delivery-balancing boosts applied to a candidate
	DeliveryBoostApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediator_delivery_boost_applied_total",
			Help: "Total delivery-balancing boosts applied to a candidate",
		},
	)

	// current market-health multiplier values, sampled at each snapshot refresh
	MarketMultiplier = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediator_market_multiplier",
			Help: "Current market-health multiplier values",
		},
		[]string{"multiplier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SelectionOutcome,
		SelectionDuration,
		FreqCapBlocked,
		ClickDecisions,
		ImpressionEvents,
		BudgetDebited,
		CampaignsPaused,
		RateLimitRequests,
		RateLimitHits,
		ExplorationApplied,
		DeliveryBoostApplied,
		MarketMultiplier,
	)
}
