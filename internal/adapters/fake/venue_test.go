package fake

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

func newTestVenue() *Venue {
	return NewVenue(Options{
		Scale:    numeric.Scale{PriceDecimals: 2, SizeDecimals: 8},
		StartBid: decimal.RequireFromString("99.99"),
		StartAsk: decimal.RequireFromString("100.01"),
	})
}

func TestParseTIF(t *testing.T) {
	cases := map[string]tifMode{
		"":          tifGTT,
		"GTT":       tifGTT,
		"ioc":       tifIOC,
		"post":      tifPostOnly,
		"POST_ONLY": tifPostOnly,
	}
	for input, expected := range cases {
		if got := parseTIF(input); got != expected {
			t.Fatalf("parseTIF(%q)=%v want %v", input, got, expected)
		}
	}
}

func TestPostOnlyRestsOrRejects(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()
	if _, err := v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 1, BaseAmount: 10, Price: 9980, TimeInForce: schema.TIFPostOnly}); err != nil {
		t.Fatalf("resting bid: %v", err)
	}
	_, err := v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 2, BaseAmount: 10, Price: 10001, TimeInForce: schema.TIFPostOnly})
	if !errs.Is(err, errs.CanonicalSubmissionRejected) {
		t.Fatalf("crossing post-only err = %v", err)
	}
	active, err := v.ActiveOrders(ctx, 0)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Price != 9980 || active[0].Side != schema.SideBid || active[0].ClientOrderID != 1 {
		t.Fatalf("active = %+v", active)
	}
}

func TestIOCNeverRests(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()
	if _, err := v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 1, BaseAmount: 10, Price: 10011, TimeInForce: schema.TIFImmediateOrCancel}); err != nil {
		t.Fatalf("ioc: %v", err)
	}
	if _, err := v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 2, BaseAmount: 10, Price: 9000, TimeInForce: schema.TIFImmediateOrCancel}); err != nil {
		t.Fatalf("passive ioc: %v", err)
	}
	if active, _ := v.ActiveOrders(ctx, 0); len(active) != 0 {
		t.Fatalf("ioc rested: %+v", active)
	}
	if fills := v.Fills(); len(fills) != 1 || fills[0].ClientOrderID != 1 {
		t.Fatalf("fills = %+v", fills)
	}
}

func TestSetBookFillsCrossedOrders(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()
	_, _ = v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 1, BaseAmount: 10, Price: 9980, TimeInForce: schema.TIFPostOnly})
	_, _ = v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 2, BaseAmount: 10, Price: 10020, TimeInForce: schema.TIFPostOnly, IsAsk: true})

	fills := v.SetBook(decimal.RequireFromString("99.70"), decimal.RequireFromString("99.80"))
	if len(fills) != 1 || fills[0].ClientOrderID != 1 {
		t.Fatalf("fills = %+v", fills)
	}
	active, _ := v.ActiveOrders(ctx, 0)
	if len(active) != 1 || active[0].ClientOrderID != 2 {
		t.Fatalf("active after sweep = %+v", active)
	}
	top, _ := v.TopOfBook(ctx, 0)
	if !top.BestBid.Equal(decimal.RequireFromString("99.7")) {
		t.Fatalf("bid = %s", top.BestBid)
	}
}

func TestInjectedFailuresAndCancel(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()
	v.RejectAt(9990, "price band")
	if _, err := v.SubmitOrder(ctx, schema.SubmitRequest{ClientOrderID: 1, BaseAmount: 1, Price: 9990, TimeInForce: schema.TIFPostOnly}); !errs.Is(err, errs.CanonicalSubmissionRejected) {
		t.Fatalf("reject rule err = %v", err)
	}
	v.FailActiveOrders(errs.Network("fake", "down", nil))
	if _, err := v.ActiveOrders(ctx, 0); !errs.Is(err, errs.CanonicalNetworkError) {
		t.Fatalf("active err = %v", err)
	}
	v.FailActiveOrders(nil)

	if err := v.CancelOrder(ctx, schema.CancelRequest{ClientOrderID: 99}); err == nil {
		t.Fatalf("cancel of unknown order succeeded")
	}
	if _, err := v.TopOfBook(ctx, 7); err == nil {
		t.Fatalf("unknown market accepted")
	}
}

func TestStepKeepsSpread(t *testing.T) {
	v := newTestVenue()
	v.step(0.01)
	top, _ := v.TopOfBook(context.Background(), 0)
	if !top.BestAsk.Sub(top.BestBid).Equal(decimal.RequireFromString("0.02")) {
		t.Fatalf("spread after step = %s", top.BestAsk.Sub(top.BestBid))
	}
	if !top.BestBid.GreaterThan(decimal.RequireFromString("99.99")) {
		t.Fatalf("bid did not move up: %s", top.BestBid)
	}
}
