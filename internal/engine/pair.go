package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/gateway"
	"github.com/coachpo/ladder/internal/ledger"
	"github.com/coachpo/ladder/internal/schema"
)

var hundred = decimal.NewFromInt(100)

// pairVariant keeps one bid and one ask around the midpoint. Whenever either
// leg vanishes the pair is replaced as a unit at a fresh quote.
type pairVariant struct {
	e   *Engine
	cfg PairConfig
}

func (p *pairVariant) seed(ctx context.Context) error {
	quote, err := p.e.quoter.Quote(ctx)
	if err != nil {
		return fmt.Errorf("initial quote: %w", err)
	}
	_, err = p.placePair(ctx, quote, PurposeSeed)
	return err
}

func (p *pairVariant) reconcile(ctx context.Context, snapshot, filled []schema.OrderSlot, res *TickResult) {
	e := p.e
	if len(filled) == 0 {
		switch len(snapshot) {
		case 0:
			// The previous placement failed entirely; try again.
			p.refresh(ctx, res)
		case 1:
			// One leg was never placed or its cancel failed earlier. Pull the
			// survivor so the pair is re-quoted as a unit.
			e.logger.Info("incomplete pair; re-quoting",
				zap.String("side", snapshot[0].Side.String()),
				zap.String("price", e.cfg.Scale.FormatTicks(snapshot[0].Price)))
			if p.pullResting(ctx) {
				p.refresh(ctx, res)
			}
		}
		return
	}

	bid, ask, round := roundLegs(filled)
	if round {
		entry := e.ledger.RecordRound(ledger.Round{
			Buy:      e.cfg.Scale.FromTicks(bid.Price),
			Sell:     e.cfg.Scale.FromTicks(ask.Price),
			Notional: p.cfg.OrderSize,
		})
		e.logger.Info("round completed",
			zap.String("buy", e.cfg.Scale.FormatTicks(bid.Price)),
			zap.String("sell", e.cfg.Scale.FormatTicks(ask.Price)),
			zap.String("profit_estimate", entry.Profit.String()))
		e.emitFill(ctx, res.Seq, FillRound, entry, bid, ask)
	} else {
		for _, slot := range filled {
			entry := e.ledger.RecordFill(ledger.Fill{
				Price:    e.cfg.Scale.FromTicks(slot.Price),
				Side:     slot.Side,
				Size:     e.cfg.Scale.FromBaseUnits(slot.Size),
				Notional: p.cfg.OrderSize,
			}, nil)
			e.logger.Info("single leg filled",
				zap.String("side", slot.Side.String()),
				zap.String("price", e.cfg.Scale.FormatTicks(slot.Price)),
				zap.Int64("client_order_id", slot.ClientOrderID))
			e.emitFill(ctx, res.Seq, FillSingle, entry, slot)
		}
	}
	for _, slot := range filled {
		e.tracker.Remove(slot.Price)
	}

	if p.pullResting(ctx) {
		p.refresh(ctx, res)
	}
}

// pullResting cancels every tracked leg. A leg whose cancel fails stays
// tracked so the next tick retries it, and pullResting reports false.
func (p *pairVariant) pullResting(ctx context.Context) bool {
	e := p.e
	ok := true
	for _, slot := range e.tracker.Snapshot() {
		if err := e.gateway.Cancel(ctx, slot); err != nil {
			e.logger.Warn("cancel of remaining leg failed; retrying next tick",
				zap.Int64("client_order_id", slot.ClientOrderID),
				zap.String("price", e.cfg.Scale.FormatTicks(slot.Price)),
				zap.Error(err))
			ok = false
			continue
		}
		e.tracker.Remove(slot.Price)
	}
	return ok
}

func (p *pairVariant) refresh(ctx context.Context, res *TickResult) {
	e := p.e
	if e.stopRequested() {
		return
	}
	quote, err := e.quoter.Quote(ctx)
	if err != nil {
		e.logger.Warn("re-quote failed; pair will be placed on a later tick",
			zap.String("canonical", string(errs.CanonicalOf(err))),
			zap.Error(err))
		return
	}
	placed, err := p.placePair(ctx, quote, PurposeRequote)
	if err != nil {
		e.logger.Warn("pair not placed", zap.Error(err))
	}
	res.Placed += placed
	res.Rejected += 2 - placed
}

// placePair submits the bid then the ask at mid ∓ spread and returns how many
// legs the venue accepted.
func (p *pairVariant) placePair(ctx context.Context, quote schema.Quote, purpose Purpose) (int, error) {
	e := p.e
	scale := e.cfg.Scale
	offset := quote.Mid.Mul(p.cfg.SpreadPercent).Div(hundred)
	buy := scale.ToTicks(quote.Mid.Sub(offset))
	sell := scale.ToTicks(quote.Mid.Add(offset))
	if buy >= sell {
		return 0, errs.InvalidSpec(fmt.Sprintf("spread %s%% collapses to a single tick at mid %s", p.cfg.SpreadPercent, quote.Mid))
	}
	size := scale.ToBaseUnits(p.cfg.OrderSize.Mul(e.cfg.Leverage).Div(quote.Mid))
	if size <= 0 {
		return 0, errs.InvalidSpec(fmt.Sprintf("order size %s rounds to zero base units", p.cfg.OrderSize))
	}

	e.logger.Info("placing pair",
		zap.String("mid", quote.Mid.String()),
		zap.String("buy", scale.FormatTicks(buy)),
		zap.String("sell", scale.FormatTicks(sell)),
		zap.Int64("size", size))
	placed := 0
	for _, leg := range []gateway.Order{
		{Price: buy, Side: schema.SideBid, Size: size, TimeInForce: schema.TIFPostOnly},
		{Price: sell, Side: schema.SideAsk, Size: size, TimeInForce: schema.TIFPostOnly},
	} {
		if _, ok := e.place(ctx, leg, purpose); ok {
			placed++
		}
	}
	return placed, nil
}

// roundLegs reports whether filled holds exactly one bid and one ask.
func roundLegs(filled []schema.OrderSlot) (bid, ask schema.OrderSlot, ok bool) {
	if len(filled) != 2 {
		return bid, ask, false
	}
	var haveBid, haveAsk bool
	for _, s := range filled {
		switch s.Side {
		case schema.SideBid:
			bid, haveBid = s, true
		case schema.SideAsk:
			ask, haveAsk = s, true
		}
	}
	return bid, ask, haveBid && haveAsk
}
