// Package journal persists submissions and accounting events to PostgreSQL
// for audit. Rows correlate through the run id and client order id.
package journal

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/engine"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

const (
	runInsertSQL = `
INSERT INTO runs (run_id, mode, venue, market_id, symbol, config, started_at)
VALUES (@run_id, @mode, @venue, @market_id, @symbol, @config::jsonb, @started_at)
ON CONFLICT (run_id) DO NOTHING;
`

	runFinishSQL = `
UPDATE runs
SET stopped_at = @stopped_at,
    ticks = @ticks,
    trade_count = @trade_count,
    total_volume = @total_volume::numeric,
    estimated_profit = @estimated_profit::numeric
WHERE run_id = @run_id;
`

	submissionInsertSQL = `
INSERT INTO submissions (
    run_id, purpose, client_order_id, side, price_ticks, price, size,
    time_in_force, accepted, error_code, error_message, tx_hash, submitted_at
)
VALUES (
    @run_id, @purpose, @client_order_id, @side, @price_ticks, @price::numeric, @size,
    @time_in_force, @accepted, @error_code, @error_message, @tx_hash, @submitted_at
);
`

	fillInsertSQL = `
INSERT INTO fill_events (run_id, tick, kind, trades, volume, profit, legs, recorded_at)
VALUES (@run_id, @tick, @kind, @trades, @volume::numeric, @profit::numeric, @legs::jsonb, @recorded_at);
`
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Options configures the connection pool.
type Options struct {
	DSN      string
	MaxConns int32
}

// Store writes journal rows.
type Store struct {
	pool  *pgxpool.Pool
	exec  execer
	scale numeric.Scale
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, opts Options, scale numeric.Scale) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse journal dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &Store{pool: pool, exec: pool, scale: scale}, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, scale numeric.Scale) *Store {
	return &Store{pool: pool, exec: pool, scale: scale}
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RunInfo identifies a run when it starts.
type RunInfo struct {
	RunID     string
	Mode      engine.Mode
	Venue     string
	MarketID  int
	Config    any
	StartedAt time.Time
}

// StartRun inserts the run row. Re-inserting the same run is a no-op.
func (s *Store) StartRun(ctx context.Context, info RunInfo) error {
	cfg, err := json.Marshal(info.Config)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	if info.Config == nil {
		cfg = []byte("{}")
	}
	args := pgx.NamedArgs{
		"run_id":     info.RunID,
		"mode":       string(info.Mode),
		"venue":      info.Venue,
		"market_id":  info.MarketID,
		"symbol":     schema.MarketSymbol(info.MarketID),
		"config":     string(cfg),
		"started_at": info.StartedAt.UTC(),
	}
	if _, err := s.exec.Exec(ctx, runInsertSQL, args); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final totals of a run.
func (s *Store) FinishRun(ctx context.Context, report engine.Report) error {
	stopped := report.StoppedAt
	if stopped.IsZero() {
		stopped = time.Now()
	}
	args := pgx.NamedArgs{
		"run_id":           report.RunID,
		"stopped_at":       stopped.UTC(),
		"ticks":            int64(report.Ticks),
		"trade_count":      report.Ledger.TradeCount,
		"total_volume":     report.Ledger.TotalVolume.String(),
		"estimated_profit": report.Ledger.EstimatedProfit.String(),
	}
	if _, err := s.exec.Exec(ctx, runFinishSQL, args); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// InsertSubmission records one submission attempt.
func (s *Store) InsertSubmission(ctx context.Context, ev engine.SubmissionEvent) error {
	var txHash, errCode, errMsg *string
	var clientOrderID *int64
	if ev.Accepted() {
		id := ev.Slot.ClientOrderID
		clientOrderID = &id
		if ev.Slot.TxHash != "" {
			txHash = &ev.Slot.TxHash
		}
	} else {
		code := string(errs.CanonicalOf(ev.Err))
		msg := ev.Err.Error()
		errCode, errMsg = &code, &msg
	}
	args := pgx.NamedArgs{
		"run_id":          ev.RunID,
		"purpose":         string(ev.Purpose),
		"client_order_id": clientOrderID,
		"side":            ev.Order.Side.String(),
		"price_ticks":     int64(ev.Order.Price),
		"price":           s.scale.FormatTicks(ev.Order.Price),
		"size":            ev.Order.Size,
		"time_in_force":   string(ev.Order.TimeInForce),
		"accepted":        ev.Accepted(),
		"error_code":      errCode,
		"error_message":   errMsg,
		"tx_hash":         txHash,
		"submitted_at":    ev.At.UTC(),
	}
	if _, err := s.exec.Exec(ctx, submissionInsertSQL, args); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

type legRow struct {
	ClientOrderID int64  `json:"clientOrderId"`
	Side          string `json:"side"`
	PriceTicks    int64  `json:"priceTicks"`
	Price         string `json:"price"`
	Size          int64  `json:"size"`
}

// InsertFill records one ledger entry with its legs.
func (s *Store) InsertFill(ctx context.Context, ev engine.FillEvent) error {
	legs := make([]legRow, 0, len(ev.Legs))
	for _, l := range ev.Legs {
		legs = append(legs, legRow{
			ClientOrderID: l.ClientOrderID,
			Side:          l.Side.String(),
			PriceTicks:    int64(l.Price),
			Price:         s.scale.FormatTicks(l.Price),
			Size:          l.Size,
		})
	}
	encoded, err := json.Marshal(legs)
	if err != nil {
		return fmt.Errorf("encode legs: %w", err)
	}
	args := pgx.NamedArgs{
		"run_id":      ev.RunID,
		"tick":        int64(ev.Tick),
		"kind":        string(ev.Kind),
		"trades":      ev.Trades,
		"volume":      ev.Volume.String(),
		"profit":      ev.Profit.String(),
		"legs":        string(encoded),
		"recorded_at": ev.At.UTC(),
	}
	if _, err := s.exec.Exec(ctx, fillInsertSQL, args); err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}
