package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCartSyncMetricsNilRegistererIsNoop(t *testing.T) {
	t.Parallel()

	m := NewCartSyncMetrics(nil)
	m.ObserveSync("guest", time.Second)
	m.IncPersistFailure("guest")
	m.IncMerge("committed")

	var nilMetrics *CartSyncMetrics
	nilMetrics.IncMerge("committed")
}

func TestCartSyncMetricsCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewCartSyncMetrics(reg)

	m.IncPersistFailure("remote")
	m.IncPersistFailure("remote")
	m.IncMerge("")

	if got := testutil.ToFloat64(m.persistFailure.WithLabelValues("remote")); got != 2 {
		t.Fatalf("expected 2 persist failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.mergeOutcome.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty outcome to normalize to unknown, got %v", got)
	}
}
