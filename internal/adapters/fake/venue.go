// Package fake implements an in-memory venue used by tests and paper trading.
package fake

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
)

// Venue is a single-market order book holding only the account's own orders
// plus a synthetic best bid and ask. It implements the market data, account
// query and order entry surfaces.
type Venue struct {
	mu   sync.Mutex
	opts Options

	bid schema.Ticks
	ask schema.Ticks

	orders      map[int64]*restingOrder
	nextIndex   int64
	rejects     map[schema.Ticks]string
	activeErr   error
	quoteErr    error
	cancelErr   error
	submissions []schema.SubmitRequest
	cancels     []schema.CancelRequest
	fills       []Fill
}

// NewVenue constructs a venue with the configured starting book.
func NewVenue(opts Options) *Venue {
	opts = withDefaults(opts)
	return &Venue{
		opts:      opts,
		bid:       opts.Scale.ToTicks(opts.StartBid),
		ask:       opts.Scale.ToTicks(opts.StartAsk),
		orders:    make(map[int64]*restingOrder),
		nextIndex: defaultOrderIndex,
		rejects:   make(map[schema.Ticks]string),
	}
}

// Name returns the venue name used in error envelopes.
func (v *Venue) Name() string { return v.opts.Name }

// Ping always succeeds.
func (v *Venue) Ping(context.Context) error { return nil }

// TopOfBook returns the synthetic best bid and ask.
func (v *Venue) TopOfBook(_ context.Context, market int) (schema.TopOfBook, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkMarket(market); err != nil {
		return schema.TopOfBook{}, err
	}
	if v.quoteErr != nil {
		return schema.TopOfBook{}, v.quoteErr
	}
	var top schema.TopOfBook
	if v.bid > 0 {
		top.BestBid = v.opts.Scale.FromTicks(v.bid)
	}
	if v.ask > 0 {
		top.BestAsk = v.opts.Scale.FromTicks(v.ask)
	}
	return top, nil
}

// ActiveOrders lists resting orders ordered by price.
func (v *Venue) ActiveOrders(_ context.Context, market int) ([]schema.ActiveOrder, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkMarket(market); err != nil {
		return nil, err
	}
	if v.activeErr != nil {
		return nil, v.activeErr
	}
	out := make([]schema.ActiveOrder, 0, len(v.orders))
	for _, o := range v.orders {
		out = append(out, o.active())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].ClientOrderID < out[j].ClientOrderID
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

// SubmitOrder accepts, fills or rejects req according to its time in force.
// POST_ONLY orders that would cross are rejected; IOC orders fill when they
// cross and otherwise expire without resting.
func (v *Venue) SubmitOrder(_ context.Context, req schema.SubmitRequest) (schema.SubmitReceipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submissions = append(v.submissions, req)

	if err := v.checkMarket(req.MarketID); err != nil {
		return schema.SubmitReceipt{}, err
	}
	if reason, ok := v.rejects[req.Price]; ok {
		return schema.SubmitReceipt{}, v.rejected(reason, req)
	}
	if req.BaseAmount <= 0 {
		return schema.SubmitReceipt{}, v.rejected("base amount must be positive", req)
	}
	if _, dup := v.orders[req.ClientOrderID]; dup {
		return schema.SubmitReceipt{}, v.rejected("duplicate client order index", req)
	}

	side := schema.SideFromAsk(req.IsAsk)
	now := v.opts.Clock()
	v.nextIndex++
	receipt := schema.SubmitReceipt{TxHash: fmt.Sprintf("0xfake%012d", v.nextIndex)}
	cross := crosses(side, req.Price, v.bid, v.ask)

	switch parseTIF(string(req.TimeInForce)) {
	case tifPostOnly:
		if cross {
			return schema.SubmitReceipt{}, v.rejected("post-only order would cross the book", req)
		}
	case tifIOC:
		if cross {
			v.fills = append(v.fills, Fill{ClientOrderID: req.ClientOrderID, Side: side, Price: req.Price, Size: req.BaseAmount, At: now})
		}
		return receipt, nil
	default:
		if cross {
			v.fills = append(v.fills, Fill{ClientOrderID: req.ClientOrderID, Side: side, Price: req.Price, Size: req.BaseAmount, At: now})
			return receipt, nil
		}
	}
	v.orders[req.ClientOrderID] = &restingOrder{
		clientID:   req.ClientOrderID,
		orderIndex: v.nextIndex,
		side:       side,
		price:      req.Price,
		remaining:  req.BaseAmount,
		placedAt:   now,
	}
	return receipt, nil
}

// CancelOrder removes a resting order.
func (v *Venue) CancelOrder(_ context.Context, req schema.CancelRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancels = append(v.cancels, req)
	if v.cancelErr != nil {
		return v.cancelErr
	}
	if _, ok := v.orders[req.ClientOrderID]; !ok {
		return errs.New(v.opts.Name, errs.CodeExchange,
			errs.WithMessage(fmt.Sprintf("order %d not found", req.ClientOrderID)))
	}
	delete(v.orders, req.ClientOrderID)
	return nil
}

// SetBook moves the synthetic best bid and ask and fills every resting order
// the new book crosses.
func (v *Venue) SetBook(bid, ask decimal.Decimal) []Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bid = v.opts.Scale.ToTicks(bid)
	v.ask = v.opts.Scale.ToTicks(ask)
	return v.sweepLocked()
}

// FillAt fills every resting order at price regardless of the book.
func (v *Venue) FillAt(price schema.Ticks) []Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Fill
	for id, o := range v.orders {
		if o.price != price {
			continue
		}
		out = append(out, v.fillLocked(id, o))
	}
	return out
}

// RejectAt makes every submission at price fail with reason. An empty reason
// clears the rule.
func (v *Venue) RejectAt(price schema.Ticks, reason string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if reason == "" {
		delete(v.rejects, price)
		return
	}
	v.rejects[price] = reason
}

// FailActiveOrders makes ActiveOrders return err until cleared with nil.
func (v *Venue) FailActiveOrders(err error) {
	v.mu.Lock()
	v.activeErr = err
	v.mu.Unlock()
}

// FailQuotes makes TopOfBook return err until cleared with nil.
func (v *Venue) FailQuotes(err error) {
	v.mu.Lock()
	v.quoteErr = err
	v.mu.Unlock()
}

// FailCancels makes CancelOrder return err until cleared with nil.
func (v *Venue) FailCancels(err error) {
	v.mu.Lock()
	v.cancelErr = err
	v.mu.Unlock()
}

// Submissions returns every submission received, in order.
func (v *Venue) Submissions() []schema.SubmitRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]schema.SubmitRequest(nil), v.submissions...)
}

// Cancels returns every cancel request received, in order.
func (v *Venue) Cancels() []schema.CancelRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]schema.CancelRequest(nil), v.cancels...)
}

// Fills returns every execution so far.
func (v *Venue) Fills() []Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Fill(nil), v.fills...)
}

// Drift random-walks the book until ctx is cancelled, filling crossed orders
// as it goes. The spread is held constant.
func (v *Venue) Drift(ctx context.Context) {
	cfg := v.opts.Drift
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(v.opts.Clock().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.step(rng.NormFloat64() * cfg.VolatilityBps / 10_000)
		}
	}
}

func (v *Venue) step(move float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	spread := v.ask - v.bid
	if spread <= 0 {
		spread = 1
	}
	shift := schema.Ticks(math.Round(float64(v.bid) * move))
	if v.bid+shift <= 0 {
		return
	}
	v.bid += shift
	v.ask = v.bid + spread
	v.sweepLocked()
}

func (v *Venue) sweepLocked() []Fill {
	var out []Fill
	for id, o := range v.orders {
		if crosses(o.side, o.price, v.bid, v.ask) {
			out = append(out, v.fillLocked(id, o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func (v *Venue) fillLocked(id int64, o *restingOrder) Fill {
	f := Fill{ClientOrderID: id, Side: o.side, Price: o.price, Size: o.remaining, At: v.opts.Clock()}
	v.fills = append(v.fills, f)
	delete(v.orders, id)
	return f
}

func (v *Venue) checkMarket(market int) error {
	if market != v.opts.MarketID {
		return errs.New(v.opts.Name, errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("unknown market %d", market)))
	}
	return nil
}

func (v *Venue) rejected(reason string, req schema.SubmitRequest) error {
	return errs.New(v.opts.Name, errs.CodeExchange,
		errs.WithMessage(reason),
		errs.WithCanonicalCode(errs.CanonicalSubmissionRejected),
		errs.WithVenueField("client_order_index", fmt.Sprint(req.ClientOrderID)),
		errs.WithVenueField("price", v.opts.Scale.FormatTicks(req.Price)))
}
