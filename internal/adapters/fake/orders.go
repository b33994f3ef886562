package fake

import (
	"strings"
	"time"

	"github.com/coachpo/ladder/internal/schema"
)

type tifMode int

const (
	tifGTT tifMode = iota
	tifIOC
	tifPostOnly
)

func parseTIF(value string) tifMode {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "IOC":
		return tifIOC
	case "POST", "POST_ONLY", "PO":
		return tifPostOnly
	default:
		return tifGTT
	}
}

type restingOrder struct {
	clientID   int64
	orderIndex int64
	side       schema.Side
	price      schema.Ticks
	remaining  int64
	placedAt   time.Time
}

func (o *restingOrder) active() schema.ActiveOrder {
	return schema.ActiveOrder{
		Price:           o.price,
		Side:            o.side,
		ClientOrderID:   o.clientID,
		OrderIndex:      o.orderIndex,
		RemainingAmount: o.remaining,
	}
}

// Fill records an execution against the account on the fake venue.
type Fill struct {
	ClientOrderID int64
	Side          schema.Side
	Price         schema.Ticks
	Size          int64
	At            time.Time
}

// crosses reports whether an order on side at price would match the book.
func crosses(side schema.Side, price, bid, ask schema.Ticks) bool {
	if side == schema.SideAsk {
		return bid > 0 && price <= bid
	}
	return ask > 0 && price >= ask
}
