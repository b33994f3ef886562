// Package ledger accumulates trade counts, traded volume and an estimated profit.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/internal/schema"
)

// DefaultProfitFactor is the per-unit-of-distance factor applied to ASK fills
// in the ladder profit estimate.
var DefaultProfitFactor = decimal.RequireFromString("0.001")

// Fill describes one observed fill.
type Fill struct {
	Price decimal.Decimal
	Side  schema.Side
	// Size is the filled amount in coins.
	Size decimal.Decimal
	// Notional overrides Price*Size as the traded volume when set.
	Notional decimal.Decimal
}

// Volume returns the quote-currency volume of the fill.
func (f Fill) Volume() decimal.Decimal {
	if !f.Notional.IsZero() {
		return f.Notional
	}
	return f.Price.Mul(f.Size)
}

// ProfitModel estimates the profit attributable to a single fill.
type ProfitModel interface {
	FillProfit(Fill) decimal.Decimal
}

// LadderProfit credits ASK fills with (price - lower) * factor. BID fills add
// nothing. The figure is an estimate, not realized PnL.
type LadderProfit struct {
	Lower  decimal.Decimal
	Factor decimal.Decimal
}

// FillProfit implements ProfitModel.
func (m LadderProfit) FillProfit(f Fill) decimal.Decimal {
	if f.Side != schema.SideAsk {
		return decimal.Zero
	}
	return f.Price.Sub(m.Lower).Mul(m.Factor)
}

// Round is a completed buy/sell pair in the pair variant.
type Round struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
	// Notional is the per-leg order size in quote currency.
	Notional decimal.Decimal
}

// Profit returns (sell - buy) * notional / buy.
func (r Round) Profit() decimal.Decimal {
	if !r.Buy.IsPositive() {
		return decimal.Zero
	}
	return r.Sell.Sub(r.Buy).Mul(r.Notional.Div(r.Buy))
}

// Entry is the accounting effect of one recorded event.
type Entry struct {
	Trades int64
	Volume decimal.Decimal
	Profit decimal.Decimal
}

// Report is a point-in-time copy of the ledger totals.
type Report struct {
	TradeCount      int64           `json:"tradeCount"`
	TotalVolume     decimal.Decimal `json:"totalVolume"`
	EstimatedProfit decimal.Decimal `json:"estimatedProfit"`
	BidFills        int64           `json:"bidFills"`
	AskFills        int64           `json:"askFills"`
	Rounds          int64           `json:"rounds"`
	LastFillAt      time.Time       `json:"lastFillAt,omitempty"`
}

// Ledger is written by the reconciliation loop and may be read concurrently.
type Ledger struct {
	mu       sync.RWMutex
	clock    func() time.Time
	trades   int64
	volume   decimal.Decimal
	profit   decimal.Decimal
	bidFills int64
	askFills int64
	rounds   int64
	lastFill time.Time
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{clock: time.Now}
}

// RecordFill accounts for a single fill. A nil model credits no profit.
func (l *Ledger) RecordFill(f Fill, model ProfitModel) Entry {
	entry := Entry{Trades: 1, Volume: f.Volume(), Profit: decimal.Zero}
	if model != nil {
		entry.Profit = model.FillProfit(f)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.apply(entry)
	switch f.Side {
	case schema.SideBid:
		l.bidFills++
	case schema.SideAsk:
		l.askFills++
	}
	return entry
}

// RecordRound accounts for both legs of a completed pair.
func (l *Ledger) RecordRound(r Round) Entry {
	entry := Entry{
		Trades: 2,
		Volume: r.Notional.Mul(decimal.NewFromInt(2)),
		Profit: r.Profit(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.apply(entry)
	l.bidFills++
	l.askFills++
	l.rounds++
	return entry
}

func (l *Ledger) apply(e Entry) {
	l.trades += e.Trades
	l.volume = l.volume.Add(e.Volume)
	l.profit = l.profit.Add(e.Profit)
	l.lastFill = l.clock()
}

// Report returns the current totals.
func (l *Ledger) Report() Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Report{
		TradeCount:      l.trades,
		TotalVolume:     l.volume,
		EstimatedProfit: l.profit,
		BidFills:        l.bidFills,
		AskFills:        l.askFills,
		Rounds:          l.rounds,
		LastFillAt:      l.lastFill,
	}
}
