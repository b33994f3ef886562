package lighter

import (
	"context"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

type accountOrder struct {
	OrderIndex          int64  `json:"order_index"`
	ClientOrderIndex    int64  `json:"client_order_index"`
	MarketIndex         int    `json:"market_index"`
	Price               string `json:"price"`
	IsAsk               bool   `json:"is_ask"`
	RemainingBaseAmount string `json:"remaining_base_amount"`
	Status              string `json:"status"`
}

type activeOrdersResponse struct {
	apiStatus
	Orders *[]accountOrder `json:"orders"`
}

// ActiveOrders lists the account's resting orders on market. The call is
// authenticated with a short-lived token minted by the signer.
func (c *Client) ActiveOrders(ctx context.Context, market int) ([]schema.ActiveOrder, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}
	query := map[string]string{
		"account_index": accountQuery(c.opts.AccountIndex),
		"market_id":     marketQuery(market),
	}
	headers := map[string]string{"Authorization": token}
	var resp activeOrdersResponse
	if err := c.get(ctx, "active orders", pathActiveOrders, query, headers, errs.CanonicalNetworkError, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, errs.New(c.opts.Venue, errs.CodeExchange,
			errs.WithMessage("active orders"),
			errs.WithRawMessage(resp.Message),
			errs.WithCanonicalCode(errs.CanonicalNetworkError))
	}
	if resp.Orders == nil {
		return nil, errs.Network(c.opts.Venue, "active orders: response has no orders field", nil)
	}
	out := make([]schema.ActiveOrder, 0, len(*resp.Orders))
	for _, o := range *resp.Orders {
		price, err := c.opts.Scale.ParsePrice(o.Price)
		if err != nil {
			return nil, errs.Network(c.opts.Venue, "active orders: parse price "+o.Price, err)
		}
		var remaining int64
		if o.RemainingBaseAmount != "" {
			amount, ok := numeric.ParseDecimal(o.RemainingBaseAmount)
			if !ok {
				return nil, errs.Network(c.opts.Venue, "active orders: parse size "+o.RemainingBaseAmount, nil)
			}
			remaining = c.opts.Scale.ToBaseUnits(amount)
		}
		out = append(out, schema.ActiveOrder{
			Price:           price,
			Side:            schema.SideFromAsk(o.IsAsk),
			ClientOrderID:   o.ClientOrderIndex,
			OrderIndex:      o.OrderIndex,
			RemainingAmount: remaining,
		})
	}
	return out, nil
}
