package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/gateway"
	"github.com/coachpo/ladder/internal/ladder"
	"github.com/coachpo/ladder/internal/ledger"
	"github.com/coachpo/ladder/internal/schema"
)

var (
	initialBuyPremium   = decimal.RequireFromString("1.001")
	initialSellDiscount = decimal.RequireFromString("0.999")
)

type gridVariant struct {
	e      *Engine
	cfg    GridConfig
	ladder ladder.Ladder
	size   int64
	profit ledger.LadderProfit
}

func (g *gridVariant) seed(ctx context.Context) error {
	e := g.e
	quote, err := e.quoter.Quote(ctx)
	if err != nil {
		return fmt.Errorf("initial quote: %w", err)
	}
	plan, err := e.planner.Plan(quote.Mid, g.cfg.Direction, g.cfg.LevelCount)
	if err != nil {
		return err
	}
	perLevel := g.cfg.Investment.
		Div(decimal.NewFromInt(int64(g.cfg.LevelCount))).
		Mul(e.cfg.Leverage).
		Div(quote.Mid)
	size := e.cfg.Scale.ToBaseUnits(perLevel)
	if size <= 0 {
		return errs.InvalidSpec(fmt.Sprintf("per-level size %s rounds to zero base units", perLevel))
	}
	factor := g.cfg.ProfitFactor
	if factor.IsZero() {
		factor = ledger.DefaultProfitFactor
	}
	g.ladder = plan
	g.size = size
	g.profit = ledger.LadderProfit{Lower: e.cfg.Scale.FromTicks(plan.LowerTicks), Factor: factor}

	bids, asks := plan.Count()
	e.logger.Info("ladder planned",
		zap.String("mid", quote.Mid.String()),
		zap.String("direction", string(plan.Spec.Direction)),
		zap.String("lower", e.cfg.Scale.FormatTicks(plan.LowerTicks)),
		zap.String("upper", e.cfg.Scale.FormatTicks(plan.UpperTicks)),
		zap.String("spacing", plan.Spacing().String()),
		zap.Int("bids", bids),
		zap.Int("asks", asks),
		zap.Int64("size", size))

	adopted := 0
	if g.cfg.AdoptExisting {
		active, err := e.account.ActiveOrders(ctx, e.cfg.MarketID)
		if err != nil {
			return fmt.Errorf("list existing orders: %w", err)
		}
		adopted = g.adopt(active)
	}
	if g.cfg.InitialPosition {
		if adopted > 0 {
			e.logger.Info("skipping initial position; existing ladder adopted", zap.Int("adopted", adopted))
		} else {
			g.openPosition(ctx, quote)
		}
	}

	for _, lvl := range plan.Levels {
		if e.stopRequested() {
			e.logger.Info("stop requested during seed", zap.Int("tracked", e.tracker.Len()))
			return nil
		}
		if _, ok := e.tracker.Get(lvl.Price); ok {
			continue
		}
		e.place(ctx, gateway.Order{
			Price:       lvl.Price,
			Side:        lvl.Side,
			Size:        size,
			TimeInForce: schema.TIFPostOnly,
		}, PurposeSeed)
	}
	return nil
}

// adopt records venue orders already resting at planned levels so a restart
// does not stack a second ladder on top of the first.
func (g *gridVariant) adopt(active []schema.ActiveOrder) int {
	e := g.e
	byPrice := make(map[schema.Ticks]schema.ActiveOrder, len(active))
	for _, o := range active {
		byPrice[o.Price] = o
	}
	adopted := 0
	for _, lvl := range g.ladder.Levels {
		o, ok := byPrice[lvl.Price]
		if !ok {
			continue
		}
		slot := schema.OrderSlot{
			Price:         o.Price,
			Side:          o.Side,
			Size:          o.RemainingAmount,
			ClientOrderID: o.ClientOrderID,
			TimeInForce:   schema.TIFPostOnly,
			PlacedAt:      e.clock(),
		}
		if err := e.tracker.Record(slot); err != nil {
			continue
		}
		e.tracker.Advance(o.ClientOrderID)
		adopted++
	}
	if adopted > 0 {
		e.logger.Info("adopted resting orders", zap.Int("adopted", adopted), zap.Int("venue_orders", len(active)))
	}
	return adopted
}

// openPosition sends the aggressive opening order. It is not tracked.
func (g *gridVariant) openPosition(ctx context.Context, quote schema.Quote) {
	e := g.e
	notional := g.cfg.Investment.Mul(e.cfg.Leverage).Mul(g.ladder.InitialFraction)
	size := e.cfg.Scale.ToBaseUnits(notional.Div(quote.Mid))
	price := quote.Mid.Mul(initialBuyPremium)
	if g.ladder.InitialSide == schema.SideAsk {
		price = quote.Mid.Mul(initialSellDiscount)
	}
	order := gateway.Order{
		Price:       e.cfg.Scale.ToTicks(price),
		Side:        g.ladder.InitialSide,
		Size:        size,
		TimeInForce: schema.TIFImmediateOrCancel,
	}
	slot, err := e.gateway.Submit(ctx, order)
	e.observers.submission(ctx, SubmissionEvent{RunID: e.runID, Purpose: PurposeInitial, Order: order, Slot: slot, Err: err, At: e.clock()})
	if err != nil {
		e.logger.Warn("initial position not opened", zap.Stringer("order", order), zap.Error(err))
		return
	}
	e.logger.Info("initial position submitted",
		zap.String("side", order.Side.String()),
		zap.String("price", e.cfg.Scale.FormatTicks(order.Price)),
		zap.Int64("size", size),
		zap.Int64("client_order_id", slot.ClientOrderID))
}

func (g *gridVariant) reconcile(ctx context.Context, _, filled []schema.OrderSlot, res *TickResult) {
	e := g.e
	scale := e.cfg.Scale
	for _, slot := range filled {
		e.tracker.MarkFilled(slot.Price)
		entry := e.ledger.RecordFill(ledger.Fill{
			Price: scale.FromTicks(slot.Price),
			Side:  slot.Side,
			Size:  scale.FromBaseUnits(slot.Size),
		}, g.profit)
		e.logger.Info("fill detected",
			zap.String("side", slot.Side.String()),
			zap.String("price", scale.FormatTicks(slot.Price)),
			zap.Int64("client_order_id", slot.ClientOrderID),
			zap.String("profit_estimate", entry.Profit.String()))
		e.emitFill(ctx, res.Seq, FillSingle, entry, slot)

		size := g.size
		if size <= 0 {
			size = slot.Size
		}
		order := gateway.Order{
			Price:       slot.Price,
			Side:        g.cfg.Refill.side(slot.Side),
			Size:        size,
			TimeInForce: schema.TIFPostOnly,
		}
		if _, ok := e.place(ctx, order, PurposeRefill); ok {
			res.Placed++
			continue
		}
		res.Rejected++
		e.tracker.Remove(slot.Price)
	}
}
