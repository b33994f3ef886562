package journal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/engine"
)

type memoryWriter struct {
	mu          sync.Mutex
	submissions []engine.SubmissionEvent
	fills       []engine.FillEvent
	fail        bool
	block       chan struct{}
}

func (w *memoryWriter) InsertSubmission(_ context.Context, ev engine.SubmissionEvent) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("db down")
	}
	w.submissions = append(w.submissions, ev)
	return nil
}

func (w *memoryWriter) InsertFill(_ context.Context, ev engine.FillEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fills = append(w.fills, ev)
	return nil
}

func TestRecorderWritesInOrder(t *testing.T) {
	w := &memoryWriter{}
	r := NewRecorder(w, 8, nil)
	ctx := context.Background()
	r.OnSubmission(ctx, engine.SubmissionEvent{RunID: "a", Purpose: engine.PurposeSeed})
	r.OnSubmission(ctx, engine.SubmissionEvent{RunID: "a", Purpose: engine.PurposeRefill, Err: errs.SubmissionRejected("fake", "cross", nil)})
	r.OnFill(ctx, engine.FillEvent{RunID: "a", Kind: engine.FillSingle, Trades: 1})
	r.OnTick(ctx, engine.TickResult{})
	r.Close()

	if len(w.submissions) != 2 || w.submissions[0].Purpose != engine.PurposeSeed || w.submissions[1].Purpose != engine.PurposeRefill {
		t.Fatalf("submissions = %+v", w.submissions)
	}
	if len(w.fills) != 1 {
		t.Fatalf("fills = %+v", w.fills)
	}
	if written, failed, dropped := r.Stats(); written != 3 || failed != 0 || dropped != 0 {
		t.Fatalf("stats = %d/%d/%d", written, failed, dropped)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	w := &memoryWriter{block: make(chan struct{})}
	r := NewRecorder(w, 1, nil)
	ctx := context.Background()
	// The first event is taken by the writer and blocks; the second fills
	// the queue; the rest are dropped.
	for i := 0; i < 5; i++ {
		r.OnSubmission(ctx, engine.SubmissionEvent{RunID: "a"})
	}
	close(w.block)
	r.Close()

	written, _, dropped := r.Stats()
	if written+dropped != 5 || dropped < 3 {
		t.Fatalf("written %d dropped %d", written, dropped)
	}
	r.OnFill(ctx, engine.FillEvent{})
	if _, _, after := r.Stats(); after != dropped+1 {
		t.Fatalf("event after close not counted as dropped")
	}
}

func TestRecorderCountsFailures(t *testing.T) {
	w := &memoryWriter{fail: true}
	r := NewRecorder(w, 4, nil)
	r.OnSubmission(context.Background(), engine.SubmissionEvent{})
	r.Close()
	if _, failed, _ := r.Stats(); failed != 1 {
		t.Fatalf("failed = %d", failed)
	}
}
