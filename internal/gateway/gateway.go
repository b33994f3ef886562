// Package gateway submits and cancels single orders with client-side spacing.
package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
	"github.com/coachpo/ladder/internal/slots"
)

// OrderService is the venue's order entry surface.
type OrderService interface {
	SubmitOrder(ctx context.Context, req schema.SubmitRequest) (schema.SubmitReceipt, error)
	CancelOrder(ctx context.Context, req schema.CancelRequest) error
}

// IDAllocator issues client order ids.
type IDAllocator interface {
	Reserve(price schema.Ticks, side schema.Side, size int64) slots.Reservation
}

// Order is a request to place one order.
type Order struct {
	Price       schema.Ticks
	Side        schema.Side
	Size        int64
	TimeInForce schema.TimeInForce
	ReduceOnly  bool
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s@%d size=%d", o.TimeInForce, o.Side, o.Price, o.Size)
}

// Options configures a Gateway.
type Options struct {
	Venue    string
	MarketID int
	// Spacing is the minimum interval between consecutive submissions.
	// Zero disables spacing.
	Spacing time.Duration
	Clock   func() time.Time
}

// Gateway places orders through an OrderService.
type Gateway struct {
	svc     OrderService
	ids     IDAllocator
	limiter *rate.Limiter
	venue   string
	market  int
	clock   func() time.Time
}

// New constructs a gateway.
func New(svc OrderService, ids IDAllocator, opts Options) *Gateway {
	limit := rate.Inf
	if opts.Spacing > 0 {
		limit = rate.Every(opts.Spacing)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Gateway{
		svc:     svc,
		ids:     ids,
		limiter: rate.NewLimiter(limit, 1),
		venue:   opts.Venue,
		market:  opts.MarketID,
		clock:   clock,
	}
}

// Submit places order and returns the resulting slot. Submission waits for the
// spacing window; a reserved client order id is consumed even when the venue
// rejects the order.
func (g *Gateway) Submit(ctx context.Context, order Order) (schema.OrderSlot, error) {
	if err := validate(order); err != nil {
		return schema.OrderSlot{}, errs.New(g.venue, errs.CodeInvalid,
			errs.WithMessage(err.Error()),
			errs.WithCanonicalCode(errs.CanonicalSubmissionRejected))
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return schema.OrderSlot{}, errs.SubmissionRejected(g.venue, "submission spacing interrupted", err)
	}

	res := g.ids.Reserve(order.Price, order.Side, order.Size)
	req := schema.SubmitRequest{
		MarketID:      g.market,
		ClientOrderID: res.ClientOrderID,
		BaseAmount:    order.Size,
		Price:         order.Price,
		IsAsk:         order.Side.IsAsk(),
		Type:          schema.OrderTypeLimit,
		TimeInForce:   order.TimeInForce,
		ReduceOnly:    order.ReduceOnly,
	}
	receipt, err := g.svc.SubmitOrder(ctx, req)
	if err != nil {
		switch errs.CanonicalOf(err) {
		case errs.CanonicalSubmissionRejected, errs.CanonicalNetworkError, errs.CanonicalAuthFailure:
			return schema.OrderSlot{}, err
		default:
			return schema.OrderSlot{}, errs.SubmissionRejected(g.venue, fmt.Sprintf("client order %d", res.ClientOrderID), err)
		}
	}
	return schema.OrderSlot{
		Price:         order.Price,
		Side:          order.Side,
		Size:          order.Size,
		ClientOrderID: res.ClientOrderID,
		TimeInForce:   order.TimeInForce,
		PlacedAt:      g.clock(),
		TxHash:        receipt.TxHash,
	}, nil
}

// Cancel requests cancellation of the order resting in slot.
func (g *Gateway) Cancel(ctx context.Context, slot schema.OrderSlot) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.svc.CancelOrder(ctx, schema.CancelRequest{MarketID: g.market, ClientOrderID: slot.ClientOrderID})
}

func validate(o Order) error {
	if o.Size <= 0 {
		return fmt.Errorf("order size must be positive, got %d", o.Size)
	}
	if o.Price <= 0 {
		return fmt.Errorf("order price must be positive, got %d", o.Price)
	}
	if o.Side != schema.SideBid && o.Side != schema.SideAsk {
		return fmt.Errorf("order side %s invalid", o.Side)
	}
	switch o.TimeInForce {
	case schema.TIFPostOnly, schema.TIFImmediateOrCancel, schema.TIFGoodTillTime:
	default:
		return fmt.Errorf("unsupported time in force %q", o.TimeInForce)
	}
	return nil
}
