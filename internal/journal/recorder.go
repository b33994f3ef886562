package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/internal/engine"
)

const writeTimeout = 5 * time.Second

// Writer is the persistence surface the recorder drains into.
type Writer interface {
	InsertSubmission(ctx context.Context, ev engine.SubmissionEvent) error
	InsertFill(ctx context.Context, ev engine.FillEvent) error
}

type record struct {
	submission *engine.SubmissionEvent
	fill       *engine.FillEvent
}

// Recorder is an engine.Observer that queues events and writes them on its own
// goroutine so the reconciliation loop never waits on the database. When the
// queue is full new events are dropped and counted.
type Recorder struct {
	writer Writer
	logger *zap.Logger

	queue  chan record
	wg     conc.WaitGroup
	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder starts the writer goroutine.
func NewRecorder(writer Writer, buffer int, logger *zap.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		writer: writer,
		logger: logger.Named("journal"),
		queue:  make(chan record, buffer),
	}
	r.wg.Go(r.drain)
	return r
}

// OnSubmission implements engine.Observer.
func (r *Recorder) OnSubmission(_ context.Context, ev engine.SubmissionEvent) {
	r.enqueue(record{submission: &ev})
}

// OnFill implements engine.Observer.
func (r *Recorder) OnFill(_ context.Context, ev engine.FillEvent) {
	r.enqueue(record{fill: &ev})
}

// OnTick implements engine.Observer. Ticks are not journaled.
func (r *Recorder) OnTick(context.Context, engine.TickResult) {}

// Close stops accepting events and waits for the queue to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info("journal closed",
		zap.Int64("written", r.written.Load()),
		zap.Int64("failed", r.failed.Load()),
		zap.Int64("dropped", r.dropped.Load()))
}

// Stats returns the written, failed and dropped counts.
func (r *Recorder) Stats() (written, failed, dropped int64) {
	return r.written.Load(), r.failed.Load(), r.dropped.Load()
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- rec:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("journal queue full; dropping events")
		}
	}
}

func (r *Recorder) drain() {
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		var err error
		switch {
		case rec.submission != nil:
			err = r.writer.InsertSubmission(ctx, *rec.submission)
		case rec.fill != nil:
			err = r.writer.InsertFill(ctx, *rec.fill)
		}
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.logger.Warn("journal write failed", zap.Error(err))
			continue
		}
		r.written.Add(1)
	}
}
