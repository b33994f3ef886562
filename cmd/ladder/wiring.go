package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/adapters/fake"
	"github.com/coachpo/ladder/internal/adapters/lighter"
	"github.com/coachpo/ladder/internal/config"
	"github.com/coachpo/ladder/internal/engine"
	"github.com/coachpo/ladder/internal/gateway"
	"github.com/coachpo/ladder/internal/journal"
	"github.com/coachpo/ladder/internal/ledger"
	"github.com/coachpo/ladder/internal/oracle"
	"github.com/coachpo/ladder/internal/schema"
	"github.com/coachpo/ladder/internal/slots"
	"github.com/coachpo/ladder/internal/status"
	"github.com/coachpo/ladder/internal/telemetry"
)

// venueClient is the union of the surfaces the engine drives.
type venueClient interface {
	TopOfBook(ctx context.Context, market int) (schema.TopOfBook, error)
	ActiveOrders(ctx context.Context, market int) ([]schema.ActiveOrder, error)
	SubmitOrder(ctx context.Context, req schema.SubmitRequest) (schema.SubmitReceipt, error)
	CancelOrder(ctx context.Context, req schema.CancelRequest) error
	Ping(ctx context.Context) error
}

type venueHandle struct {
	venueClient
	label string
	paper *fake.Venue
}

func buildVenue(appCfg config.AppConfig, paper bool, logger *zap.Logger) venueHandle {
	scale := appCfg.Scale()
	if paper {
		bid, _ := decimal.NewFromString(appCfg.Paper.Bid)
		ask, _ := decimal.NewFromString(appCfg.Paper.Ask)
		v := fake.NewVenue(fake.Options{
			Name:     "paper",
			MarketID: appCfg.Market.Index,
			Scale:    scale,
			StartBid: bid,
			StartAsk: ask,
			Drift: fake.DriftOptions{
				Interval:      appCfg.Paper.DriftInterval,
				VolatilityBps: appCfg.Paper.VolatilityBps,
				Seed:          appCfg.Paper.Seed,
			},
		})
		logger.Info("paper venue initialised",
			zap.String("bid", appCfg.Paper.Bid),
			zap.String("ask", appCfg.Paper.Ask))
		return venueHandle{venueClient: v, label: v.Name(), paper: v}
	}

	signer := lighter.NewBridgeSigner(lighter.BridgeOptions{
		URL:          appCfg.Venue.SignerURL,
		AccountIndex: appCfg.Venue.AccountIndex,
		APIKeyIndex:  appCfg.Venue.APIKeyIndex,
		Timeout:      appCfg.Venue.HTTPTimeout,
	})
	client := lighter.NewClient(lighter.Options{
		BaseURL:      appCfg.Venue.BaseURL,
		Venue:        appCfg.Venue.Name,
		AccountIndex: appCfg.Venue.AccountIndex,
		APIKeyIndex:  appCfg.Venue.APIKeyIndex,
		Scale:        scale,
		HTTPTimeout:  appCfg.Venue.HTTPTimeout,
		AuthTokenTTL: appCfg.Venue.AuthTokenTTL,
	}, signer, logger)
	logger.Info("lighter client initialised",
		zap.String("base_url", appCfg.Venue.BaseURL),
		zap.Int64("account_index", appCfg.Venue.AccountIndex))
	return venueHandle{venueClient: client, label: client.Venue()}
}

func (v venueHandle) name() string { return v.label }

// probeVenue pings the venue with exponential backoff. Authentication
// failures are not retried.
func probeVenue(ctx context.Context, venue venueHandle, logger *zap.Logger) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = startupProbeInitialDelay
	bo.MaxInterval = startupProbeMaxInterval
	deadline := time.Now().Add(startupProbeMaxElapsed)

	for attempt := 1; ; attempt++ {
		err := venue.Ping(ctx)
		if err == nil {
			logger.Info("venue reachable", zap.String("venue", venue.name()), zap.Int("attempts", attempt))
			return nil
		}
		if errs.CanonicalOf(err) == errs.CanonicalAuthFailure {
			return fmt.Errorf("probe %s: %w", venue.name(), err)
		}
		sleep := bo.NextBackOff()
		if sleep == backoff.Stop || time.Now().Add(sleep).After(deadline) {
			return fmt.Errorf("probe %s: giving up after %d attempts: %w", venue.name(), attempt, err)
		}
		logger.Warn("venue probe failed; retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", sleep),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// checkAccount logs the market quote and the account's resting orders.
func checkAccount(ctx context.Context, venue venueHandle, market int, logger *zap.Logger) error {
	quote, err := oracle.New(venue.name(), venue, market).Quote(ctx)
	if err != nil {
		logger.Warn("quote unavailable", zap.Error(err))
	} else {
		logger.Info("market quote",
			zap.String("symbol", schema.MarketSymbol(market)),
			zap.String("bid", quote.BestBid.String()),
			zap.String("ask", quote.BestAsk.String()),
			zap.String("mid", quote.Mid.String()))
	}
	orders, err := venue.ActiveOrders(ctx, market)
	if err != nil {
		return fmt.Errorf("list active orders: %w", err)
	}
	logger.Info("account active orders", zap.Int("count", len(orders)))
	for _, o := range orders {
		logger.Info("active order",
			zap.Int64("order_index", o.OrderIndex),
			zap.Int64("client_order_id", o.ClientOrderID),
			zap.String("side", o.Side.String()),
			zap.Int64("price_ticks", int64(o.Price)),
			zap.Int64("remaining", o.RemainingAmount))
	}
	return nil
}

type runStack struct {
	engine   *engine.Engine
	registry *prometheus.Registry
	store    *journal.Store
	recorder *journal.Recorder
}

func assemble(ctx context.Context, appCfg config.AppConfig, rt config.Runtime, venue venueHandle, provider *telemetry.Provider, logger *zap.Logger) (*runStack, error) {
	symbol := schema.MarketSymbol(rt.Engine.MarketID)
	tracker := slots.NewTracker(rt.FirstClientOrderID)
	gw := gateway.New(venue, tracker, gateway.Options{
		Venue:    venue.name(),
		MarketID: rt.Engine.MarketID,
		Spacing:  rt.SubmitSpacing,
	})

	opts := []engine.Option{engine.WithLogger(logger)}
	metrics, err := telemetry.NewEngineMetrics(provider.Meter(meterName), venue.name(), symbol)
	if err != nil {
		return nil, fmt.Errorf("initialise engine metrics: %w", err)
	}
	opts = append(opts, engine.WithObserver(metrics))

	stack := &runStack{registry: status.NewRegistry()}
	if appCfg.Journal.Enabled {
		if appCfg.Journal.RunMigrations {
			if err := journal.Migrate(ctx, appCfg.Journal.DSN, logger); err != nil {
				return nil, fmt.Errorf("journal migrations: %w", err)
			}
		}
		store, err := journal.Open(ctx, journal.Options{DSN: appCfg.Journal.DSN, MaxConns: appCfg.Journal.MaxConns}, rt.Engine.Scale)
		if err != nil {
			return nil, err
		}
		stack.store = store
		stack.recorder = journal.NewRecorder(store, appCfg.Journal.BufferSize, logger)
		opts = append(opts, engine.WithObserver(stack.recorder))
	}

	eng, err := engine.New(rt.Engine, engine.Deps{
		Quoter:  oracle.New(venue.name(), venue, rt.Engine.MarketID),
		Account: venue,
		Gateway: gw,
		Tracker: tracker,
		Ledger:  ledger.New(),
	}, opts...)
	if err != nil {
		stack.closeJournal()
		return nil, err
	}
	stack.engine = eng

	if stack.store != nil {
		var runCfg any = appCfg.Grid
		if rt.Engine.Mode == engine.ModePair {
			runCfg = appCfg.Pair
		}
		if err := stack.store.StartRun(ctx, journal.RunInfo{
			RunID:     eng.RunID(),
			Mode:      rt.Engine.Mode,
			Venue:     venue.name(),
			MarketID:  rt.Engine.MarketID,
			Config:    runCfg,
			StartedAt: time.Now(),
		}); err != nil {
			stack.closeJournal()
			return nil, err
		}
		logger.Info("journal enabled", zap.String("run_id", eng.RunID()))
	}
	return stack, nil
}

func (s *runStack) close(ctx context.Context, report engine.Report, logger *zap.Logger) {
	if s.store == nil {
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, journalShutdownTimeout)
	defer cancel()
	s.recorder.Close()
	if err := s.store.FinishRun(stepCtx, report); err != nil {
		logger.Warn("journal finish run", zap.Error(err))
	}
	s.store.Close()
}

func (s *runStack) closeJournal() {
	if s.recorder != nil {
		s.recorder.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}
