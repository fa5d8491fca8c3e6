package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartSyncMetrics records outcomes of cart persistence and merge work.
type CartSyncMetrics struct {
	syncDuration   *prometheus.HistogramVec
	persistFailure *prometheus.CounterVec
	mergeOutcome   *prometheus.CounterVec
}

// NewCartSyncMetrics registers the cart metrics on the provided registerer.
func NewCartSyncMetrics(reg prometheus.Registerer) *CartSyncMetrics {
	if reg == nil {
		return &CartSyncMetrics{}
	}
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart persistence calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backing"})
	persistFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persist_failure",
		Help: "Cart persistence calls that failed and were absorbed.",
	}, []string{"backing"})
	mergeOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_total",
		Help: "Login merge attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(syncDuration, persistFailure, mergeOutcome)
	return &CartSyncMetrics{
		syncDuration:   syncDuration,
		persistFailure: persistFailure,
		mergeOutcome:   mergeOutcome,
	}
}

// ObserveSync records the duration of a persistence call for the named backing.
func (c *CartSyncMetrics) ObserveSync(backing string, duration time.Duration) {
	if c == nil || c.syncDuration == nil {
		return
	}
	c.syncDuration.WithLabelValues(normalizeLabel(backing)).Observe(duration.Seconds())
}

// IncPersistFailure increments the absorbed-failure counter for the named backing.
func (c *CartSyncMetrics) IncPersistFailure(backing string) {
	if c == nil || c.persistFailure == nil {
		return
	}
	c.persistFailure.WithLabelValues(normalizeLabel(backing)).Inc()
}

// IncMerge increments the merge counter for the given outcome
// (committed, superseded, fallback).
func (c *CartSyncMetrics) IncMerge(outcome string) {
	if c == nil || c.mergeOutcome == nil {
		return
	}
	c.mergeOutcome.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
