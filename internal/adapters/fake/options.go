package fake

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/internal/numeric"
)

const (
	defaultName          = "fake"
	defaultDriftInterval = time.Second
	defaultVolatilityBps = 5.0
	defaultOrderIndex    = 1_000_000
)

var (
	defaultStartBid = decimal.RequireFromString("99.9")
	defaultStartAsk = decimal.RequireFromString("100.1")
)

// Options configures the in-memory venue.
type Options struct {
	Name     string
	MarketID int
	Scale    numeric.Scale
	StartBid decimal.Decimal
	StartAsk decimal.Decimal
	Drift    DriftOptions
	Clock    func() time.Time
}

// DriftOptions configures the paper-trading random walk.
type DriftOptions struct {
	Interval      time.Duration
	VolatilityBps float64
	Seed          uint64
}

func withDefaults(in Options) Options {
	if in.Name == "" {
		in.Name = defaultName
	}
	if in.Scale == (numeric.Scale{}) {
		in.Scale = numeric.Scale{PriceDecimals: 1, SizeDecimals: 8}
	}
	if !in.StartBid.IsPositive() || !in.StartAsk.IsPositive() {
		in.StartBid = defaultStartBid
		in.StartAsk = defaultStartAsk
	}
	if in.Drift.Interval <= 0 {
		in.Drift.Interval = defaultDriftInterval
	}
	if in.Drift.VolatilityBps <= 0 {
		in.Drift.VolatilityBps = defaultVolatilityBps
	}
	if in.Clock == nil {
		in.Clock = time.Now
	}
	return in
}
