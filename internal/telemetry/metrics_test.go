package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/engine"
	"github.com/coachpo/ladder/internal/gateway"
	"github.com/coachpo/ladder/internal/schema"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation %T is not an int64 sum", agg)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestEngineMetricsRecordsEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProvider(nil, reader)
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewEngineMetrics(mp.Meter("test"), "fake", "BTC")
	if err != nil {
		t.Fatalf("NewEngineMetrics: %v", err)
	}
	ctx := context.Background()
	m.OnSubmission(ctx, engine.SubmissionEvent{Purpose: engine.PurposeSeed, Order: gateway.Order{Side: schema.SideBid}})
	m.OnSubmission(ctx, engine.SubmissionEvent{
		Purpose: engine.PurposeRefill,
		Order:   gateway.Order{Side: schema.SideAsk},
		Err:     errs.SubmissionRejected("fake", "post-only cross", nil),
	})
	m.OnFill(ctx, engine.FillEvent{
		Kind:   engine.FillSingle,
		Trades: 2,
		Volume: decimal.RequireFromString("40"),
		Profit: decimal.RequireFromString("0.0004"),
	})
	m.OnTick(ctx, engine.TickResult{Tracked: 6, Duration: 12 * time.Millisecond})
	m.OnTick(ctx, engine.TickResult{Tracked: 0, Err: errs.Network("fake", "down", errors.New("eof"))})

	data := collect(t, reader)
	if got := sumInt(t, data[metricSubmissions]); got != 2 {
		t.Fatalf("submissions = %d", got)
	}
	if got := sumInt(t, data[metricFills]); got != 2 {
		t.Fatalf("fills = %d", got)
	}
	if got := sumInt(t, data[metricTicks]); got != 2 {
		t.Fatalf("ticks = %d", got)
	}
	gauge, ok := data[metricTracked].(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 6 {
		t.Fatalf("tracked gauge = %+v", data[metricTracked])
	}
	hist, ok := data[metricTickDuration].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Fatalf("tick histogram = %+v", data[metricTickDuration])
	}
	if hist.DataPoints[0].Bounds[0] != 5 {
		t.Fatalf("view buckets not applied: %v", hist.DataPoints[0].Bounds)
	}
}

func TestDisabledProviderUsesGlobalMeter(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Meter("ladder") == nil {
		t.Fatalf("expected a meter")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStripScheme(t *testing.T) {
	if got := stripScheme("https://collector:4318"); got != "collector:4318" {
		t.Fatalf("stripScheme = %q", got)
	}
}
