package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "breachcache"

// Lookup outcomes besides the breach.Source values.
const OutcomeError = "error"

// Write results.
const (
	WriteAdded     = "added"
	WriteDuplicate = "duplicate"
	WriteError     = "error"
)

// Metrics holds the service's instruments. A nil *Metrics records nothing.
type Metrics struct {
	lookups          metric.Int64Counter
	writes           metric.Int64Counter
	upstreamFailures metric.Int64Counter
	lookupDuration   metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.lookups, err = meter.Int64Counter("breachcache.lookups",
		metric.WithDescription("Breach lookups by outcome"))
	if err != nil {
		return nil, err
	}

	m.writes, err = meter.Int64Counter("breachcache.writes",
		metric.WithDescription("Breach additions by result"))
	if err != nil {
		return nil, err
	}

	m.upstreamFailures, err = meter.Int64Counter("breachcache.upstream.failures",
		metric.WithDescription("Failed calls to the breach data source"))
	if err != nil {
		return nil, err
	}

	m.lookupDuration, err = meter.Float64Histogram("breachcache.lookup.duration_seconds",
		metric.WithDescription("Lookup latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObservePartitions registers a gauge that samples count on every
// collection.
func (m *Metrics) ObservePartitions(count func() int) error {
	if m == nil {
		return nil
	}
	_, err := otel.Meter(meterName).Int64ObservableGauge("breachcache.partitions.active",
		metric.WithDescription("Activated cache partitions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}))
	return err
}

// RecordLookup counts a lookup and its latency.
func (m *Metrics) RecordLookup(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.lookups.Add(ctx, 1, attrs)
	m.lookupDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordWrite counts an add attempt.
func (m *Metrics) RecordWrite(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordUpstreamFailure counts a failed data source call.
func (m *Metrics) RecordUpstreamFailure(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.upstreamFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
