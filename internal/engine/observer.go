package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/internal/gateway"
	"github.com/coachpo/ladder/internal/schema"
)

// Purpose tags why an order was submitted.
type Purpose string

const (
	PurposeSeed    Purpose = "seed"
	PurposeInitial Purpose = "initial"
	PurposeRefill  Purpose = "refill"
	PurposeRequote Purpose = "requote"
)

// FillKind distinguishes single fills from completed pair rounds.
type FillKind string

const (
	FillSingle FillKind = "fill"
	FillRound  FillKind = "round"
)

// SubmissionEvent describes one submission attempt. Err is nil on acceptance.
type SubmissionEvent struct {
	RunID   string
	Purpose Purpose
	Order   gateway.Order
	Slot    schema.OrderSlot
	Err     error
	At      time.Time
}

// Accepted reports whether the venue took the order.
func (e SubmissionEvent) Accepted() bool { return e.Err == nil }

// FillEvent describes an accounting entry derived from vanished slots.
type FillEvent struct {
	RunID  string
	Tick   uint64
	Kind   FillKind
	Legs   []schema.OrderSlot
	Trades int64
	Volume decimal.Decimal
	Profit decimal.Decimal
	At     time.Time
}

// TickResult summarises one reconciliation cycle.
type TickResult struct {
	Seq      uint64
	Active   int
	Tracked  int
	Filled   int
	Placed   int
	Rejected int
	Duration time.Duration
	Err      error
}

// Observer receives engine events on the reconciliation goroutine.
// Implementations must not block.
type Observer interface {
	OnSubmission(ctx context.Context, ev SubmissionEvent)
	OnFill(ctx context.Context, ev FillEvent)
	OnTick(ctx context.Context, res TickResult)
}

type observers []Observer

func (o observers) submission(ctx context.Context, ev SubmissionEvent) {
	for _, obs := range o {
		obs.OnSubmission(ctx, ev)
	}
}

func (o observers) fill(ctx context.Context, ev FillEvent) {
	for _, obs := range o {
		obs.OnFill(ctx, ev)
	}
}

func (o observers) tick(ctx context.Context, res TickResult) {
	for _, obs := range o {
		obs.OnTick(ctx, res)
	}
}
