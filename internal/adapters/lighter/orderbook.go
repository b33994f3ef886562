package lighter

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
)

type bookLevel struct {
	OrderIndex          int64  `json:"order_index"`
	Price               string `json:"price"`
	RemainingBaseAmount string `json:"remaining_base_amount"`
}

type orderBookResponse struct {
	apiStatus
	TotalAsks int         `json:"total_asks"`
	Asks      []bookLevel `json:"asks"`
	TotalBids int         `json:"total_bids"`
	Bids      []bookLevel `json:"bids"`
}

// TopOfBook fetches the best bid and ask of market. An empty side is left as
// zero; the oracle decides whether that is usable.
func (c *Client) TopOfBook(ctx context.Context, market int) (schema.TopOfBook, error) {
	var resp orderBookResponse
	query := map[string]string{"market_id": marketQuery(market), "limit": "1"}
	if err := c.get(ctx, "order book", pathOrderBook, query, nil, errs.CanonicalQuoteUnavailable, &resp); err != nil {
		return schema.TopOfBook{}, err
	}
	if !resp.ok() {
		return schema.TopOfBook{}, errs.New(c.opts.Venue, errs.CodeUnavailable,
			errs.WithMessage("order book"),
			errs.WithRawMessage(resp.Message),
			errs.WithCanonicalCode(errs.CanonicalQuoteUnavailable))
	}
	var top schema.TopOfBook
	var err error
	if len(resp.Bids) > 0 {
		if top.BestBid, err = c.levelPrice(resp.Bids[0]); err != nil {
			return schema.TopOfBook{}, err
		}
	}
	if len(resp.Asks) > 0 {
		if top.BestAsk, err = c.levelPrice(resp.Asks[0]); err != nil {
			return schema.TopOfBook{}, err
		}
	}
	return top, nil
}

func (c *Client) levelPrice(level bookLevel) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(level.Price)
	if err != nil {
		return decimal.Zero, errs.QuoteUnavailable(c.opts.Venue, "parse book price "+level.Price, err)
	}
	return price, nil
}
