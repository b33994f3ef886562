// Package oracle derives a validated midpoint from the venue's top of book.
package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
)

var two = decimal.NewFromInt(2)

// MarketData fetches the best bid and ask of a market.
type MarketData interface {
	TopOfBook(ctx context.Context, market int) (schema.TopOfBook, error)
}

// Oracle quotes one market.
type Oracle struct {
	source MarketData
	market int
	venue  string
}

// New constructs an oracle for market served by source.
func New(venue string, source MarketData, market int) *Oracle {
	return &Oracle{source: source, market: market, venue: venue}
}

// Quote returns the current top of book and its midpoint. One-sided or
// crossed books are reported as quote-unavailable.
func (o *Oracle) Quote(ctx context.Context) (schema.Quote, error) {
	top, err := o.source.TopOfBook(ctx, o.market)
	if err != nil {
		switch errs.CanonicalOf(err) {
		case errs.CanonicalNetworkError, errs.CanonicalQuoteUnavailable, errs.CanonicalAuthFailure:
			return schema.Quote{}, err
		default:
			return schema.Quote{}, errs.QuoteUnavailable(o.venue, "top of book", err)
		}
	}
	if !top.BestBid.IsPositive() || !top.BestAsk.IsPositive() {
		return schema.Quote{}, errs.QuoteUnavailable(o.venue, "one-sided book", nil)
	}
	if !top.BestBid.LessThan(top.BestAsk) {
		return schema.Quote{}, errs.QuoteUnavailable(o.venue, "crossed book: bid "+top.BestBid.String()+" not below ask "+top.BestAsk.String(), nil)
	}
	return schema.Quote{
		Mid:     top.BestBid.Add(top.BestAsk).Div(two),
		BestBid: top.BestBid,
		BestAsk: top.BestAsk,
	}, nil
}
