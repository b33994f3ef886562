// Package engine runs the order ladder reconciliation loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/gateway"
	"github.com/coachpo/ladder/internal/ladder"
	"github.com/coachpo/ladder/internal/ledger"
	"github.com/coachpo/ladder/internal/schema"
	"github.com/coachpo/ladder/internal/slots"
)

// ErrStopped is returned by Tick once the engine has stopped.
var ErrStopped = errors.New("engine: stopped")

// State is the engine lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateSeeded
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSeeded:
		return "SEEDED"
	case StatePolling:
		return "POLLING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Quoter supplies validated midpoints.
type Quoter interface {
	Quote(ctx context.Context) (schema.Quote, error)
}

// AccountQuery lists the account's resting orders on a market.
type AccountQuery interface {
	ActiveOrders(ctx context.Context, market int) ([]schema.ActiveOrder, error)
}

// OrderGateway places and cancels single orders.
type OrderGateway interface {
	Submit(ctx context.Context, order gateway.Order) (schema.OrderSlot, error)
	Cancel(ctx context.Context, slot schema.OrderSlot) error
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Quoter  Quoter
	Account AccountQuery
	Gateway OrderGateway
	Tracker *slots.Tracker
	Ledger  *ledger.Ledger
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.runID = id
		}
	}
}

type variant interface {
	seed(ctx context.Context) error
	reconcile(ctx context.Context, snapshot, filled []schema.OrderSlot, res *TickResult)
}

// Engine owns the slot tracker and ledger for one market and reconciles them
// against the venue on a fixed poll interval. Seed, Run and Tick must be
// driven from a single goroutine; Stop, State and FinalReport are safe to call
// from any goroutine.
type Engine struct {
	cfg       Config
	quoter    Quoter
	account   AccountQuery
	gateway   OrderGateway
	tracker   *slots.Tracker
	ledger    *ledger.Ledger
	planner   *ladder.Planner
	variant   variant
	logger    *zap.Logger
	observers observers
	clock     func() time.Time
	runID     string

	state    atomic.Int32
	ticks    atomic.Uint64
	tracked  atomic.Int64
	stopOnce sync.Once
	stopC    chan struct{}

	mu        sync.Mutex
	startedAt time.Time
	stoppedAt time.Time
}

// New validates cfg and constructs an engine in the IDLE state.
func New(cfg Config, deps Deps, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Quoter == nil || deps.Account == nil || deps.Gateway == nil {
		return nil, fmt.Errorf("engine: quoter, account query and gateway are required")
	}
	if deps.Tracker == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("engine: tracker and ledger are required")
	}
	e := &Engine{
		cfg:     cfg,
		quoter:  deps.Quoter,
		account: deps.Account,
		gateway: deps.Gateway,
		tracker: deps.Tracker,
		ledger:  deps.Ledger,
		planner: ladder.NewPlanner(cfg.Scale),
		logger:  zap.NewNop(),
		clock:   time.Now,
		runID:   uuid.NewString(),
		stopC:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.logger = e.logger.With(
		zap.String("run_id", e.runID),
		zap.String("mode", string(cfg.Mode)),
		zap.String("market", schema.MarketSymbol(cfg.MarketID)),
	)
	switch cfg.Mode {
	case ModePair:
		e.variant = &pairVariant{e: e, cfg: cfg.Pair}
	default:
		e.variant = &gridVariant{e: e, cfg: cfg.Grid}
	}
	return e, nil
}

// RunID returns the identifier stamped on this run's events.
func (e *Engine) RunID() string { return e.runID }

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Seed places the initial position and the full set of slots. Startup
// failures such as an unavailable quote or an invalid ladder are returned and
// leave the engine STOPPED.
func (e *Engine) Seed(ctx context.Context) error {
	if e.State() != StateIdle {
		return fmt.Errorf("engine: seed from state %s", e.State())
	}
	e.mu.Lock()
	e.startedAt = e.clock()
	e.mu.Unlock()

	if e.stopRequested() {
		e.finish()
		return nil
	}
	if err := e.variant.seed(ctx); err != nil {
		e.logger.Error("seed failed", zap.Error(err), zap.String("canonical", string(errs.CanonicalOf(err))))
		e.finish()
		return fmt.Errorf("engine: seed: %w", err)
	}
	e.tracked.Store(int64(e.tracker.Len()))
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateSeeded)) {
		return nil
	}
	e.logger.Info("engine seeded",
		zap.Int("slots", e.tracker.Len()),
		zap.Int64("next_client_order_id", e.tracker.NextClientOrderID()))
	return nil
}

// Run seeds the engine if needed and then reconciles once per poll interval
// until Stop is called or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.State() == StateIdle {
		if err := e.Seed(ctx); err != nil {
			return err
		}
	}
	if !e.state.CompareAndSwap(int32(StateSeeded), int32(StatePolling)) {
		if e.State() == StateStopped {
			return nil
		}
		return fmt.Errorf("engine: run from state %s", e.State())
	}
	e.logger.Info("polling", zap.Duration("interval", e.cfg.PollInterval))

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopC:
			e.finish()
			return nil
		case <-ctx.Done():
			e.finish()
			return ctx.Err()
		case <-ticker.C:
		}
		if e.stopRequested() {
			e.finish()
			return nil
		}
		e.Tick(ctx)
	}
}

// Tick runs one reconciliation cycle: it lists the venue's active orders,
// classifies every tracked slot missing from that list as filled, accounts
// for the fills and lets the variant replace them. A failed account query
// leaves all state untouched.
func (e *Engine) Tick(ctx context.Context) TickResult {
	start := e.clock()
	res := TickResult{Seq: e.ticks.Add(1)}
	if e.State() == StateStopped {
		res.Err = ErrStopped
		return res
	}

	active, err := e.account.ActiveOrders(ctx, e.cfg.MarketID)
	if err != nil {
		res.Err = err
		res.Tracked = e.tracker.Len()
		res.Duration = e.clock().Sub(start)
		e.logger.Warn("active order query failed; skipping tick",
			zap.Uint64("tick", res.Seq),
			zap.String("canonical", string(errs.CanonicalOf(err))),
			zap.Error(err))
		e.observers.tick(ctx, res)
		return res
	}

	live := make(map[schema.Ticks]struct{}, len(active))
	for _, o := range active {
		live[o.Price] = struct{}{}
	}
	snapshot := e.tracker.Snapshot()
	var filled []schema.OrderSlot
	for _, slot := range snapshot {
		if _, ok := live[slot.Price]; !ok {
			filled = append(filled, slot)
		}
	}
	res.Active = len(active)
	res.Filled = len(filled)

	e.variant.reconcile(ctx, snapshot, filled, &res)

	res.Tracked = e.tracker.Len()
	res.Duration = e.clock().Sub(start)
	e.tracked.Store(int64(res.Tracked))
	if res.Filled > 0 {
		e.logger.Info("tick reconciled",
			zap.Uint64("tick", res.Seq),
			zap.Int("filled", res.Filled),
			zap.Int("placed", res.Placed),
			zap.Int("rejected", res.Rejected),
			zap.Int("tracked", res.Tracked))
	} else {
		e.logger.Debug("tick reconciled", zap.Uint64("tick", res.Seq), zap.Int("tracked", res.Tracked))
	}
	e.observers.tick(ctx, res)
	return res
}

// Stop requests a cooperative shutdown. The in-flight tick completes and no
// further submissions are made. Stop is idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopC)
		e.logger.Info("stop requested", zap.String("state", e.State().String()))
	})
	// Outside the poll loop nothing else will observe stopC.
	if e.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) ||
		e.state.CompareAndSwap(int32(StateSeeded), int32(StateStopped)) {
		e.markStopped()
	}
}

// Done is closed once Stop has been called.
func (e *Engine) Done() <-chan struct{} { return e.stopC }

func (e *Engine) stopRequested() bool {
	select {
	case <-e.stopC:
		return true
	default:
		return false
	}
}

func (e *Engine) finish() {
	e.state.Store(int32(StateStopped))
	e.markStopped()
}

func (e *Engine) markStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stoppedAt.IsZero() {
		e.stoppedAt = e.clock()
	}
}

// Report summarises a run.
type Report struct {
	RunID        string        `json:"runId"`
	Mode         Mode          `json:"mode"`
	Market       int           `json:"market"`
	Symbol       string        `json:"symbol"`
	State        string        `json:"state"`
	Ticks        uint64        `json:"ticks"`
	TrackedSlots int64         `json:"trackedSlots"`
	StartedAt    time.Time     `json:"startedAt,omitempty"`
	StoppedAt    time.Time     `json:"stoppedAt,omitempty"`
	Ledger       ledger.Report `json:"ledger"`
	// ProfitIsEstimate is always true: profit is modelled from fill prices,
	// not reconciled against account balances.
	ProfitIsEstimate bool `json:"profitIsEstimate"`
}

// FinalReport returns the run totals. It may be called at any time.
func (e *Engine) FinalReport() Report {
	e.mu.Lock()
	started, stopped := e.startedAt, e.stoppedAt
	e.mu.Unlock()
	return Report{
		RunID:            e.runID,
		Mode:             e.cfg.Mode,
		Market:           e.cfg.MarketID,
		Symbol:           schema.MarketSymbol(e.cfg.MarketID),
		State:            e.State().String(),
		Ticks:            e.ticks.Load(),
		TrackedSlots:     e.tracked.Load(),
		StartedAt:        started,
		StoppedAt:        stopped,
		Ledger:           e.ledger.Report(),
		ProfitIsEstimate: true,
	}
}

// place submits order and records the resulting slot, replacing a slot that
// was marked filled at the same price.
func (e *Engine) place(ctx context.Context, order gateway.Order, purpose Purpose) (schema.OrderSlot, bool) {
	slot, err := e.gateway.Submit(ctx, order)
	ev := SubmissionEvent{RunID: e.runID, Purpose: purpose, Order: order, Slot: slot, Err: err, At: e.clock()}
	if err != nil {
		e.logger.Warn("order not placed",
			zap.String("purpose", string(purpose)),
			zap.String("side", order.Side.String()),
			zap.String("price", e.cfg.Scale.FormatTicks(order.Price)),
			zap.Int64("ticks", int64(order.Price)),
			zap.String("canonical", string(errs.CanonicalOf(err))),
			zap.Error(err))
		e.observers.submission(ctx, ev)
		return schema.OrderSlot{}, false
	}
	e.observers.submission(ctx, ev)
	if err := e.tracker.Record(slot); err != nil {
		e.logger.Error("slot not recorded", zap.Stringer("slot", slot), zap.Error(err))
		return slot, false
	}
	e.logger.Debug("order placed",
		zap.String("purpose", string(purpose)),
		zap.String("side", slot.Side.String()),
		zap.String("price", e.cfg.Scale.FormatTicks(slot.Price)),
		zap.Int64("client_order_id", slot.ClientOrderID))
	return slot, true
}

func (e *Engine) emitFill(ctx context.Context, tick uint64, kind FillKind, entry ledger.Entry, legs ...schema.OrderSlot) {
	e.observers.fill(ctx, FillEvent{
		RunID:  e.runID,
		Tick:   tick,
		Kind:   kind,
		Legs:   legs,
		Trades: entry.Trades,
		Volume: entry.Volume,
		Profit: entry.Profit,
		At:     e.clock(),
	})
}
