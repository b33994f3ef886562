package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
)

type stubBook struct {
	top    schema.TopOfBook
	err    error
	market int
}

func (s *stubBook) TopOfBook(_ context.Context, market int) (schema.TopOfBook, error) {
	s.market = market
	return s.top, s.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteMidpoint(t *testing.T) {
	src := &stubBook{top: schema.TopOfBook{BestBid: dec("99.9"), BestAsk: dec("100.1")}}
	q, err := New("lighter", src, 1).Quote(context.Background())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.Mid.Equal(dec("100")) {
		t.Fatalf("mid = %s", q.Mid)
	}
	if !q.Spread().Equal(dec("0.2")) {
		t.Fatalf("spread = %s", q.Spread())
	}
	if src.market != 1 {
		t.Fatalf("queried market %d", src.market)
	}
}

func TestQuoteRejectsOneSidedAndCrossedBooks(t *testing.T) {
	cases := map[string]schema.TopOfBook{
		"no bid":  {BestAsk: dec("100")},
		"no ask":  {BestBid: dec("100")},
		"crossed": {BestBid: dec("101"), BestAsk: dec("100")},
		"locked":  {BestBid: dec("100"), BestAsk: dec("100")},
	}
	for name, top := range cases {
		_, err := New("lighter", &stubBook{top: top}, 0).Quote(context.Background())
		if !errs.Is(err, errs.CanonicalQuoteUnavailable) {
			t.Fatalf("%s: err = %v, want quote unavailable", name, err)
		}
	}
}

func TestQuotePreservesNetworkErrors(t *testing.T) {
	netErr := errs.Network("lighter", "dial", errors.New("refused"))
	_, err := New("lighter", &stubBook{err: netErr}, 0).Quote(context.Background())
	if !errs.Is(err, errs.CanonicalNetworkError) {
		t.Fatalf("err = %v, want network error", err)
	}

	_, err = New("lighter", &stubBook{err: errors.New("boom")}, 0).Quote(context.Background())
	if !errs.Is(err, errs.CanonicalQuoteUnavailable) {
		t.Fatalf("plain error = %v, want quote unavailable", err)
	}
}
