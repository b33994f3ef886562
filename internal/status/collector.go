package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachpo/ladder/internal/engine"
)

// reportCollector exposes the run report as gauges, read on every scrape.
type reportCollector struct {
	ctrl Controller

	ticks    *prometheus.Desc
	tracked  *prometheus.Desc
	trades   *prometheus.Desc
	fills    *prometheus.Desc
	rounds   *prometheus.Desc
	volume   *prometheus.Desc
	profit   *prometheus.Desc
	state    *prometheus.Desc
	lastFill *prometheus.Desc
}

func newReportCollector(ctrl Controller) *reportCollector {
	labels := []string{"run_id", "mode", "symbol"}
	desc := func(name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc("ladder_"+name, help, append(append([]string(nil), labels...), extra...), nil)
	}
	return &reportCollector{
		ctrl:     ctrl,
		ticks:    desc("ticks_total", "Reconciliation cycles completed."),
		tracked:  desc("tracked_slots", "Order slots currently tracked."),
		trades:   desc("trades_total", "Trades recorded by the ledger."),
		fills:    desc("fills_total", "Single fills recorded by side.", "side"),
		rounds:   desc("rounds_total", "Completed bid/ask rounds."),
		volume:   desc("volume_total", "Quote notional traded."),
		profit:   desc("estimated_profit", "Estimated profit; modelled, not reconciled."),
		state:    desc("state", "1 for the engine's current lifecycle state.", "state"),
		lastFill: desc("last_fill_timestamp_seconds", "Unix time of the most recent fill."),
	}
}

// Describe implements prometheus.Collector.
func (c *reportCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.ticks, c.tracked, c.trades, c.fills, c.rounds, c.volume, c.profit, c.state, c.lastFill} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *reportCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.ctrl.FinalReport()
	lv := []string{r.RunID, string(r.Mode), r.Symbol}
	with := func(extra ...string) []string { return append(append([]string(nil), lv...), extra...) }

	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(r.Ticks), lv...)
	ch <- prometheus.MustNewConstMetric(c.tracked, prometheus.GaugeValue, float64(r.TrackedSlots), lv...)
	ch <- prometheus.MustNewConstMetric(c.trades, prometheus.CounterValue, float64(r.Ledger.TradeCount), lv...)
	ch <- prometheus.MustNewConstMetric(c.fills, prometheus.CounterValue, float64(r.Ledger.BidFills), with("bid")...)
	ch <- prometheus.MustNewConstMetric(c.fills, prometheus.CounterValue, float64(r.Ledger.AskFills), with("ask")...)
	ch <- prometheus.MustNewConstMetric(c.rounds, prometheus.CounterValue, float64(r.Ledger.Rounds), lv...)
	ch <- prometheus.MustNewConstMetric(c.volume, prometheus.CounterValue, r.Ledger.TotalVolume.InexactFloat64(), lv...)
	ch <- prometheus.MustNewConstMetric(c.profit, prometheus.GaugeValue, r.Ledger.EstimatedProfit.InexactFloat64(), lv...)
	for _, s := range []engine.State{engine.StateIdle, engine.StateSeeded, engine.StatePolling, engine.StateStopped} {
		v := 0.0
		if s.String() == r.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, with(s.String())...)
	}
	if !r.Ledger.LastFillAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastFill, prometheus.GaugeValue, float64(r.Ledger.LastFillAt.Unix()), lv...)
	}
}
