package observability

import "time"

// MockMetricsRegistry is a separate no-op registry, equivalent to
// NoOpRegistry, for call sites that construct a mock explicitly in tests.
type MockMetricsRegistry struct{}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSelectionOutcome(outcome string)                             {}
func (m *MockMetricsRegistry) RecordSelectionDuration(duration time.Duration)                       {}
func (m *MockMetricsRegistry) IncrementFreqCapBlocked()                                             {}
func (m *MockMetricsRegistry) IncrementClickDecision(decision string)                               {}
func (m *MockMetricsRegistry) IncrementImpressionEvent(status string)                               {}
func (m *MockMetricsRegistry) AddBudgetDebited(amount float64)                                      {}
func (m *MockMetricsRegistry) IncrementCampaignsPaused()                                            {}
func (m *MockMetricsRegistry) IncrementRateLimitRequests()                                          {}
func (m *MockMetricsRegistry) IncrementRateLimitHits()                                              {}
func (m *MockMetricsRegistry) IncrementExplorationApplied(reason string)                            {}
func (m *MockMetricsRegistry) IncrementDeliveryBoostApplied()                                       {}
func (m *MockMetricsRegistry) SetMarketMultiplier(name string, value float64)                       {}
