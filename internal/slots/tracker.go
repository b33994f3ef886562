// Package slots tracks the engine's belief about which orders are resting at which price.
package slots

import (
	"errors"
	"sort"

	"github.com/coachpo/ladder/internal/schema"
)

// ErrSlotOccupied is returned when recording over a live slot.
var ErrSlotOccupied = errors.New("slots: price level already tracked")

// Reservation is a client order id issued for a prospective order.
type Reservation struct {
	ClientOrderID int64
	Price         schema.Ticks
	Side          schema.Side
	Size          int64
}

type entry struct {
	slot   schema.OrderSlot
	filled bool
}

// Tracker maps price levels to the order the engine placed there and issues
// client order ids. It holds at most one slot per price.
//
// Tracker is owned by the reconciliation loop and is not safe for concurrent use.
type Tracker struct {
	slots  map[schema.Ticks]*entry
	nextID int64
}

// NewTracker constructs a tracker whose first issued id is firstID.
func NewTracker(firstID int64) *Tracker {
	return &Tracker{
		slots:  make(map[schema.Ticks]*entry),
		nextID: firstID,
	}
}

// Reserve issues the next client order id. Ids are consumed whether or not the
// order is ultimately accepted and are never reissued.
func (t *Tracker) Reserve(price schema.Ticks, side schema.Side, size int64) Reservation {
	id := t.nextID
	t.nextID++
	return Reservation{ClientOrderID: id, Price: price, Side: side, Size: size}
}

// Advance moves the id counter past id so later reservations never collide
// with an order adopted from the venue.
func (t *Tracker) Advance(id int64) {
	if id >= t.nextID {
		t.nextID = id + 1
	}
}

// NextClientOrderID returns the id the next Reserve call will issue.
func (t *Tracker) NextClientOrderID() int64 { return t.nextID }

// Record stores slot at its price. Recording over a price whose slot was
// marked filled replaces it; recording over a live slot fails.
func (t *Tracker) Record(slot schema.OrderSlot) error {
	if existing, ok := t.slots[slot.Price]; ok && !existing.filled {
		return ErrSlotOccupied
	}
	t.slots[slot.Price] = &entry{slot: slot}
	return nil
}

// MarkFilled flags the slot at price as filled. The slot remains tracked until
// it is replaced or removed.
func (t *Tracker) MarkFilled(price schema.Ticks) bool {
	e, ok := t.slots[price]
	if !ok {
		return false
	}
	e.filled = true
	return true
}

// Remove drops the slot at price.
func (t *Tracker) Remove(price schema.Ticks) (schema.OrderSlot, bool) {
	e, ok := t.slots[price]
	if !ok {
		return schema.OrderSlot{}, false
	}
	delete(t.slots, price)
	return e.slot, true
}

// Get returns the slot at price.
func (t *Tracker) Get(price schema.Ticks) (schema.OrderSlot, bool) {
	e, ok := t.slots[price]
	if !ok {
		return schema.OrderSlot{}, false
	}
	return e.slot, true
}

// Snapshot returns the tracked slots ordered by ascending price.
func (t *Tracker) Snapshot() []schema.OrderSlot {
	out := make([]schema.OrderSlot, 0, len(t.slots))
	for _, e := range t.slots {
		out = append(out, e.slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// Len returns the number of tracked slots.
func (t *Tracker) Len() int { return len(t.slots) }
