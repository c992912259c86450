package index

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricInsertsTotal   = "itree.index.inserts.total"
	metricRemovesTotal   = "itree.index.removes.total"
	metricSearchesTotal  = "itree.index.searches.total"
	metricSearchMatches  = "itree.index.search.matches"
	metricSearchDuration = "itree.index.search.duration.seconds"
	metricSize           = "itree.index.size"

	attrIndex = "index"
	attrKind  = "kind"

	kindRange = "range"
	kindStab  = "stab"
)

// searchBucketBoundaries covers 1µs to 100ms; tree searches are in-memory.
var searchBucketBoundaries = []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 0.01, 0.1}

// matchBucketBoundaries buckets result counts per search.
var matchBucketBoundaries = []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000}

// indexMetrics holds the OTel instruments of one Index.
type indexMetrics struct {
	inserts        metric.Int64Counter
	removes        metric.Int64Counter
	searches       metric.Int64Counter
	searchMatches  metric.Float64Histogram
	searchDuration metric.Float64Histogram
	size           metric.Int64ObservableGauge
	registration   metric.Registration
	attrs          metric.MeasurementOption
}

func newIndexMetrics(mt metric.Meter, name string, size func() int) (*indexMetrics, error) {
	b := newMetricBuilder(mt)

	m := &indexMetrics{
		inserts:        b.counter(metricInsertsTotal, "Intervals inserted", "{interval}"),
		removes:        b.counter(metricRemovesTotal, "Intervals removed", "{interval}"),
		searches:       b.counter(metricSearchesTotal, "Overlap searches served", "{search}"),
		searchMatches:  b.histogram(metricSearchMatches, "Entries returned per search", "{interval}", matchBucketBoundaries...),
		searchDuration: b.histogram(metricSearchDuration, "Search latency in seconds", "s", searchBucketBoundaries...),
		size:           b.gauge(metricSize, "Entries currently stored", "{interval}"),
		attrs:          metric.WithAttributes(attribute.String(attrIndex, name)),
	}

	if b.err != nil {
		return nil, b.err
	}

	reg, err := mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.size, int64(size()), m.attrs)

		return nil
	}, m.size)
	if err != nil {
		return nil, fmt.Errorf("register %s callback: %w", metricSize, err)
	}

	m.registration = reg

	return m, nil
}

func (m *indexMetrics) recordInsert(ctx context.Context, n int) {
	m.inserts.Add(ctx, int64(n), m.attrs)
}

func (m *indexMetrics) recordRemove(ctx context.Context) {
	m.removes.Add(ctx, 1, m.attrs)
}

func (m *indexMetrics) recordSearch(ctx context.Context, kind string, matches int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrKind, kind))

	m.searches.Add(ctx, 1, m.attrs, attrs)
	m.searchMatches.Record(ctx, float64(matches), m.attrs, attrs)
	m.searchDuration.Record(ctx, elapsed.Seconds(), m.attrs, attrs)
}

func (m *indexMetrics) close() error {
	err := m.registration.Unregister()
	if err != nil {
		return fmt.Errorf("unregister %s callback: %w", metricSize, err)
	}

	return nil
}
