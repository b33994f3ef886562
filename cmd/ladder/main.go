// Command ladder runs the order ladder reconciliation engine against Lighter
// or an in-memory paper venue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/internal/config"
	"github.com/coachpo/ladder/internal/engine"
	"github.com/coachpo/ladder/internal/logging"
	"github.com/coachpo/ladder/internal/status"
	"github.com/coachpo/ladder/internal/telemetry"
)

const (
	defaultConfigPath        = "config/ladder.yaml"
	defaultEnvFile           = ".env"
	shutdownTimeout          = 30 * time.Second
	lifecycleShutdownTimeout = 15 * time.Second
	journalShutdownTimeout   = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	startupProbeMaxElapsed   = 2 * time.Minute
	startupProbeMaxInterval  = 15 * time.Second
	startupProbeInitialDelay = 500 * time.Millisecond
	meterName                = "github.com/coachpo/ladder"
)

type cliFlags struct {
	configPath string
	envFile    string
	mode       string
	paper      bool
	check      bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ladder: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	appCfg, err := config.LoadOrDefault(ctx, flags.configPath, flags.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.mode != "" {
		appCfg.Mode = flags.mode
	}

	logger, syncLogs, err := logging.New(logging.Config{
		Level:      appCfg.Logging.Level,
		Encoding:   appCfg.Logging.Encoding,
		File:       appCfg.Logging.File,
		MaxSizeMB:  appCfg.Logging.MaxSizeMB,
		MaxBackups: appCfg.Logging.MaxBackups,
		MaxAgeDays: appCfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("initialise logging: %w", err)
	}
	defer syncLogs()

	rt, err := appCfg.Runtime()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	logger.Info("configuration initialised",
		zap.String("env", string(appCfg.Environment)),
		zap.String("mode", string(rt.Engine.Mode)),
		zap.Int("market", rt.Engine.MarketID),
		zap.Bool("paper", flags.paper))

	venue := buildVenue(appCfg, flags.paper, logger)
	rt.Engine.Venue = venue.name()

	if err := probeVenue(ctx, venue, logger); err != nil {
		logger.Error("startup probe failed", zap.Error(err))
		return err
	}
	if flags.check {
		return checkAccount(ctx, venue, rt.Engine.MarketID, logger)
	}

	telemetryProvider, err := initTelemetry(ctx, appCfg, logger)
	if err != nil {
		return err
	}

	stack, err := assemble(ctx, appCfg, rt, venue, telemetryProvider, logger)
	if err != nil {
		shutdownTelemetry(logger, telemetryProvider)
		return err
	}

	var lifecycle conc.WaitGroup
	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if venue.paper != nil {
		lifecycle.Go(func() { venue.paper.Drift(runCtx) })
	}
	if appCfg.Status.Enabled {
		handler := status.NewHandler(stack.engine, stack.registry, logger)
		lifecycle.Go(func() {
			if err := status.Serve(runCtx, appCfg.Status.Addr, handler, logger); err != nil {
				logger.Warn("status server stopped", zap.Error(err))
			}
		})
	}

	engineDone := make(chan error, 1)
	lifecycle.Go(func() {
		// The engine runs on runCtx so a signal lets the in-flight tick finish.
		engineDone <- stack.engine.Run(runCtx)
	})

	logger.Info("ladder started; awaiting shutdown signal", zap.String("run_id", stack.engine.RunID()))
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		stack.engine.Stop()
		runErr = <-engineDone
	case runErr = <-engineDone:
		// Stopped over the status API or failed during seeding.
	case <-stack.engine.Done():
		runErr = <-engineDone
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("engine stopped with error", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	stopBackground()
	waitLifecycle(shutdownCtx, &lifecycle, logger)

	report := stack.engine.FinalReport()
	logReport(logger, report)
	stack.close(shutdownCtx, report, logger)
	shutdownTelemetry(logger, telemetryProvider)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", defaultConfigPath, "Path to the YAML configuration file")
	flag.StringVar(&f.envFile, "env", defaultEnvFile, "Path to a .env file with overrides")
	flag.StringVar(&f.mode, "mode", "", "Strategy variant: grid or pair (overrides config)")
	flag.BoolVar(&f.paper, "paper", false, "Trade against the in-memory paper venue")
	flag.BoolVar(&f.check, "check", false, "Probe venue connectivity, print account state and exit")
	flag.Parse()
	return f
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func initTelemetry(ctx context.Context, appCfg config.AppConfig, logger *zap.Logger) (*telemetry.Provider, error) {
	cfg := telemetry.Config{
		Enabled:      appCfg.Telemetry.EnableMetrics && appCfg.Telemetry.OTLPEndpoint != "",
		OTLPEndpoint: appCfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: appCfg.Telemetry.OTLPInsecure,
		ServiceName:  appCfg.Telemetry.ServiceName,
		Environment:  string(appCfg.Environment),
	}
	provider, err := telemetry.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise telemetry: %w", err)
	}
	if cfg.Enabled {
		logger.Info("telemetry initialised", zap.String("endpoint", cfg.OTLPEndpoint))
	} else {
		logger.Info("telemetry disabled")
	}
	return provider, nil
}

func shutdownTelemetry(logger *zap.Logger, provider *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
}

func waitLifecycle(ctx context.Context, lifecycle *conc.WaitGroup, logger *zap.Logger) {
	stepCtx, cancel := context.WithTimeout(ctx, lifecycleShutdownTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		lifecycle.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("shutdown: lifecycle goroutines stopped")
	case <-stepCtx.Done():
		logger.Warn("shutdown: timeout waiting for lifecycle goroutines", zap.Error(stepCtx.Err()))
	}
}

func logReport(logger *zap.Logger, report engine.Report) {
	logger.Info("final report",
		zap.String("run_id", report.RunID),
		zap.String("mode", string(report.Mode)),
		zap.String("symbol", report.Symbol),
		zap.String("state", report.State),
		zap.Uint64("ticks", report.Ticks),
		zap.Int64("tracked_slots", report.TrackedSlots),
		zap.Int64("trades", report.Ledger.TradeCount),
		zap.Int64("rounds", report.Ledger.Rounds),
		zap.String("volume", report.Ledger.TotalVolume.StringFixed(2)),
		zap.String("estimated_profit", report.Ledger.EstimatedProfit.StringFixed(4)),
		zap.Bool("profit_is_estimate", report.ProfitIsEstimate),
		zap.Duration("runtime", report.StoppedAt.Sub(report.StartedAt)))
}
