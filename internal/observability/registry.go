package observability

import "time"

// MetricsRegistry decouples application code from the global Prometheus
// collectors so components can be tested without a real registry.
type MetricsRegistry interface {
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	IncrementSelectionOutcome(outcome string)
	RecordSelectionDuration(duration time.Duration)
	IncrementFreqCapBlocked()

	IncrementClickDecision(decision string)
	IncrementImpressionEvent(status string)

	AddBudgetDebited(amount float64)
	IncrementCampaignsPaused()

	IncrementRateLimitRequests()
	IncrementRateLimitHits()

	IncrementExplorationApplied(reason string)
	IncrementDeliveryBoostApplied()
	SetMarketMultiplier(name string, value float64)
}

// PrometheusRegistry implements MetricsRegistry against the package-level collectors.
type PrometheusRegistry struct{}

func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementSelectionOutcome(outcome string) {
	SelectionOutcome.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordSelectionDuration(duration time.Duration) {
	SelectionDuration.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementFreqCapBlocked() {
	FreqCapBlocked.Inc()
}

func (r *PrometheusRegistry) IncrementClickDecision(decision string) {
	ClickDecisions.WithLabelValues(decision).Inc()
}

func (r *PrometheusRegistry) IncrementImpressionEvent(status string) {
	ImpressionEvents.WithLabelValues(status).Inc()
}

func (r *PrometheusRegistry) AddBudgetDebited(amount float64) {
	BudgetDebited.Add(amount)
}

func (r *PrometheusRegistry) IncrementCampaignsPaused() {
	CampaignsPaused.Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitRequests() {
	RateLimitRequests.Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits() {
	RateLimitHits.Inc()
}

func (r *PrometheusRegistry) IncrementExplorationApplied(reason string) {
	ExplorationApplied.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementDeliveryBoostApplied() {
	DeliveryBoostApplied.Inc()
}

func (r *PrometheusRegistry) SetMarketMultiplier(name string, value float64) {
	MarketMultiplier.WithLabelValues(name).Set(value)
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing.
type NoOpRegistry struct{}

func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSelectionOutcome(outcome string)                             {}
func (r *NoOpRegistry) RecordSelectionDuration(duration time.Duration)                       {}
func (r *NoOpRegistry) IncrementFreqCapBlocked()                                             {}
func (r *NoOpRegistry) IncrementClickDecision(decision string)                               {}
func (r *NoOpRegistry) IncrementImpressionEvent(status string)                               {}
func (r *NoOpRegistry) AddBudgetDebited(amount float64)                                      {}
func (r *NoOpRegistry) IncrementCampaignsPaused()                                             {}
func (r *NoOpRegistry) IncrementRateLimitRequests()                                           {}
func (r *NoOpRegistry) IncrementRateLimitHits()                                               {}
func (r *NoOpRegistry) IncrementExplorationApplied(reason string)                             {}
func (r *NoOpRegistry) IncrementDeliveryBoostApplied()                                         {}
func (r *NoOpRegistry) SetMarketMultiplier(name string, value float64)                        {}
