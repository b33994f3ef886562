package schema

import (
	"fmt"
	"strings"
	"time"
)

// Ticks is a price expressed in the venue's fixed-point encoding. It is the
// only representation used for equality and map keys.
type Ticks int64

// Side identifies the book side an order rests on.
type Side uint8

const (
	// SideUnknown is the zero value and never valid on a submitted order.
	SideUnknown Side = iota
	// SideBid rests on the buy side.
	SideBid
	// SideAsk rests on the sell side.
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// IsAsk reports whether the side is ASK.
func (s Side) IsAsk() bool { return s == SideAsk }

// Opposite returns the other book side.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	default:
		return SideUnknown
	}
}

// SideFromAsk maps the venue's is_ask flag onto a Side.
func SideFromAsk(isAsk bool) Side {
	if isAsk {
		return SideAsk
	}
	return SideBid
}

// OrderType enumerates venue order types.
type OrderType string

const (
	// OrderTypeLimit is a priced limit order.
	OrderTypeLimit OrderType = "LIMIT"
	// OrderTypeMarket is an unpriced market order.
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce controls how the venue treats an order that would cross.
type TimeInForce string

const (
	// TIFImmediateOrCancel matches immediately and cancels any remainder.
	TIFImmediateOrCancel TimeInForce = "IOC"
	// TIFGoodTillTime rests until expiry.
	TIFGoodTillTime TimeInForce = "GTT"
	// TIFPostOnly rests without matching; the venue rejects it if it would cross.
	TIFPostOnly TimeInForce = "POST_ONLY"
)

// OrderSlot is the tracked state of one outstanding order at one price level.
type OrderSlot struct {
	Price         Ticks
	Side          Side
	Size          int64
	ClientOrderID int64
	TimeInForce   TimeInForce
	PlacedAt      time.Time
	TxHash        string
}

func (s OrderSlot) String() string {
	return fmt.Sprintf("%s@%d size=%d coid=%d", s.Side, s.Price, s.Size, s.ClientOrderID)
}

// SubmitRequest mirrors the Order Submission Service create-order call.
type SubmitRequest struct {
	MarketID      int
	ClientOrderID int64
	BaseAmount    int64
	Price         Ticks
	IsAsk         bool
	Type          OrderType
	TimeInForce   TimeInForce
	ReduceOnly    bool
	TriggerPrice  Ticks
}

// SubmitReceipt is returned by the Order Submission Service on acceptance.
type SubmitReceipt struct {
	TxHash string
	TxInfo string
}

// CancelRequest identifies a resting order to cancel.
type CancelRequest struct {
	MarketID      int
	ClientOrderID int64
}

// ActiveOrder is one entry of the venue's authoritative active-order list.
type ActiveOrder struct {
	Price           Ticks
	Side            Side
	ClientOrderID   int64
	OrderIndex      int64
	RemainingAmount int64
}

// Direction biases ladder bounds.
type Direction string

const (
	// DirectionLong skews the ladder below the midpoint.
	DirectionLong Direction = "LONG"
	// DirectionNeutral keeps a tight symmetric ladder.
	DirectionNeutral Direction = "NEUTRAL"
	// DirectionShort skews the ladder above the midpoint.
	DirectionShort Direction = "SHORT"
)

// ParseDirection normalises a configured direction.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(raw))) {
	case DirectionLong:
		return DirectionLong, nil
	case DirectionNeutral:
		return DirectionNeutral, nil
	case DirectionShort:
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("unknown direction %q", raw)
	}
}
