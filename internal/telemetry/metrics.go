package telemetry

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/engine"
)

const (
	metricSubmissions  = "ladder.submissions"
	metricFills        = "ladder.fills"
	metricVolume       = "ladder.fill.volume"
	metricProfit       = "ladder.profit.estimated"
	metricTicks        = "ladder.ticks"
	metricTickDuration = "ladder.tick.duration"
	metricTracked      = "ladder.slots.tracked"
)

// EngineMetrics records engine events as OpenTelemetry instruments. It
// implements engine.Observer.
type EngineMetrics struct {
	base []attribute.KeyValue

	submissions  metric.Int64Counter
	fills        metric.Int64Counter
	volume       metric.Float64Counter
	profit       metric.Float64Counter
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram

	tracked atomic.Int64
}

var _ engine.Observer = (*EngineMetrics)(nil)

// NewEngineMetrics registers the engine instruments on meter. The venue and
// market attributes are attached to every observation.
func NewEngineMetrics(meter metric.Meter, venue, market string) (*EngineMetrics, error) {
	m := &EngineMetrics{
		base: []attribute.KeyValue{
			attribute.String("venue", venue),
			attribute.String("market", market),
		},
	}
	var err error
	if m.submissions, err = meter.Int64Counter(metricSubmissions,
		metric.WithDescription("Order submissions by purpose and result"),
		metric.WithUnit("{order}")); err != nil {
		return nil, err
	}
	if m.fills, err = meter.Int64Counter(metricFills,
		metric.WithDescription("Trades recorded by the ledger"),
		metric.WithUnit("{trade}")); err != nil {
		return nil, err
	}
	if m.volume, err = meter.Float64Counter(metricVolume,
		metric.WithDescription("Quote notional of recorded trades")); err != nil {
		return nil, err
	}
	if m.profit, err = meter.Float64Counter(metricProfit,
		metric.WithDescription("Estimated profit credited by the ledger")); err != nil {
		return nil, err
	}
	if m.ticks, err = meter.Int64Counter(metricTicks,
		metric.WithDescription("Reconciliation cycles by result"),
		metric.WithUnit("{tick}")); err != nil {
		return nil, err
	}
	if m.tickDuration, err = meter.Float64Histogram(metricTickDuration,
		metric.WithDescription("Reconciliation cycle duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if _, err = meter.Int64ObservableGauge(metricTracked,
		metric.WithDescription("Order slots currently tracked"),
		metric.WithUnit("{slot}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.tracked.Load(), metric.WithAttributes(m.base...))
			return nil
		})); err != nil {
		return nil, err
	}
	return m, nil
}

// OnSubmission implements engine.Observer.
func (m *EngineMetrics) OnSubmission(ctx context.Context, ev engine.SubmissionEvent) {
	result := "accepted"
	if !ev.Accepted() {
		result = string(errs.CanonicalOf(ev.Err))
	}
	m.submissions.Add(ctx, 1, m.attrs(
		attribute.String("purpose", string(ev.Purpose)),
		attribute.String("side", ev.Order.Side.String()),
		attribute.String("result", result),
	))
}

// OnFill implements engine.Observer.
func (m *EngineMetrics) OnFill(ctx context.Context, ev engine.FillEvent) {
	opt := m.attrs(attribute.String("kind", string(ev.Kind)))
	m.fills.Add(ctx, ev.Trades, opt)
	m.volume.Add(ctx, ev.Volume.InexactFloat64(), opt)
	if ev.Profit.IsPositive() {
		m.profit.Add(ctx, ev.Profit.InexactFloat64(), opt)
	}
}

// OnTick implements engine.Observer.
func (m *EngineMetrics) OnTick(ctx context.Context, res engine.TickResult) {
	result := "ok"
	if res.Err != nil {
		result = string(errs.CanonicalOf(res.Err))
	} else {
		m.tracked.Store(int64(res.Tracked))
	}
	m.ticks.Add(ctx, 1, m.attrs(attribute.String("result", result)))
	m.tickDuration.Record(ctx, float64(res.Duration.Microseconds())/1000, m.attrs())
}

func (m *EngineMetrics) attrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(m.base)+len(extra))
	all = append(all, m.base...)
	all = append(all, extra...)
	return metric.WithAttributes(all...)
}
