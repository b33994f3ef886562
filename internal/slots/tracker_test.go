package slots

import (
	"errors"
	"testing"

	"github.com/coachpo/ladder/internal/schema"
)

func TestReserveIssuesStrictlyIncreasingIDs(t *testing.T) {
	tr := NewTracker(30000)
	prev := int64(-1)
	for i := 0; i < 50; i++ {
		r := tr.Reserve(schema.Ticks(1000+i), schema.SideBid, 10)
		if r.ClientOrderID <= prev {
			t.Fatalf("id %d not greater than %d", r.ClientOrderID, prev)
		}
		prev = r.ClientOrderID
	}
	if prev != 30049 {
		t.Fatalf("last id = %d want 30049", prev)
	}
}

func TestAdvanceSkipsAdoptedIDs(t *testing.T) {
	tr := NewTracker(30000)
	tr.Advance(30010)
	if got := tr.Reserve(1, schema.SideBid, 1).ClientOrderID; got != 30011 {
		t.Fatalf("after advance id = %d want 30011", got)
	}
	tr.Advance(5)
	if got := tr.NextClientOrderID(); got != 30012 {
		t.Fatalf("advance backwards moved counter to %d", got)
	}
}

func TestRecordRejectsOccupiedLevel(t *testing.T) {
	tr := NewTracker(1)
	slot := schema.OrderSlot{Price: 9980, Side: schema.SideBid, Size: 5, ClientOrderID: 1}
	if err := tr.Record(slot); err != nil {
		t.Fatalf("record: %v", err)
	}
	dup := slot
	dup.ClientOrderID = 2
	if err := tr.Record(dup); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("duplicate record err = %v", err)
	}
	if got, _ := tr.Get(9980); got.ClientOrderID != 1 {
		t.Fatalf("slot overwritten: %+v", got)
	}
}

func TestMarkFilledAllowsReplacement(t *testing.T) {
	tr := NewTracker(1)
	_ = tr.Record(schema.OrderSlot{Price: 9980, Side: schema.SideBid, ClientOrderID: 1})
	if !tr.MarkFilled(9980) {
		t.Fatalf("mark filled on tracked level returned false")
	}
	if tr.Len() != 1 {
		t.Fatalf("filled slot dropped before replacement")
	}
	if err := tr.Record(schema.OrderSlot{Price: 9980, Side: schema.SideBid, ClientOrderID: 2}); err != nil {
		t.Fatalf("replace filled slot: %v", err)
	}
	if got, _ := tr.Get(9980); got.ClientOrderID != 2 {
		t.Fatalf("replacement id = %d want 2", got.ClientOrderID)
	}
	if err := tr.Record(schema.OrderSlot{Price: 9980, Side: schema.SideBid, ClientOrderID: 3}); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("replacement not live: err = %v", err)
	}
	if tr.MarkFilled(1) {
		t.Fatalf("mark filled on untracked level returned true")
	}
}

func TestSnapshotSortedAndRemove(t *testing.T) {
	tr := NewTracker(1)
	for _, p := range []schema.Ticks{10020, 9980, 10000} {
		_ = tr.Record(schema.OrderSlot{Price: p})
	}
	snap := tr.Snapshot()
	if len(snap) != 3 || snap[0].Price != 9980 || snap[2].Price != 10020 {
		t.Fatalf("snapshot order = %+v", snap)
	}
	if _, ok := tr.Remove(10000); !ok {
		t.Fatalf("remove tracked level failed")
	}
	if _, ok := tr.Remove(10000); ok {
		t.Fatalf("second remove succeeded")
	}
	if tr.Len() != 2 {
		t.Fatalf("len = %d", tr.Len())
	}
}
