package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TopOfBook is the best bid/ask pair returned by the Market Data Service.
// A zero value on either side means that side of the book is empty.
type TopOfBook struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
}

// Quote is a validated two-sided top of book with its midpoint.
type Quote struct {
	Mid     decimal.Decimal
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
}

// Spread returns ask minus bid.
func (q Quote) Spread() decimal.Decimal {
	return q.BestAsk.Sub(q.BestBid)
}

var marketSymbols = map[int]string{
	0: "ETH",
	1: "BTC",
	2: "SOL",
	3: "DOGE",
	4: "1000PEPE",
	5: "WIF",
	6: "WLD",
	7: "XRP",
	8: "LINK",
	9: "AVAX",
}

// MarketSymbol returns the display symbol for a market index.
func MarketSymbol(index int) string {
	if symbol, ok := marketSymbols[index]; ok {
		return symbol
	}
	return fmt.Sprintf("Market%d", index)
}
