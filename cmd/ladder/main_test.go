package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/adapters/fake"
	"github.com/coachpo/ladder/internal/config"
	"github.com/coachpo/ladder/internal/engine"
	"github.com/coachpo/ladder/internal/telemetry"
)

type flakyVenue struct {
	*fake.Venue
	failures atomic.Int32
	err      error
	pings    atomic.Int32
}

func (f *flakyVenue) Ping(ctx context.Context) error {
	f.pings.Add(1)
	if f.failures.Add(-1) >= 0 {
		return f.err
	}
	return f.Venue.Ping(ctx)
}

func TestProbeVenueRetriesTransientFailures(t *testing.T) {
	v := &flakyVenue{Venue: fake.NewVenue(fake.Options{}), err: errs.Network("paper", "connection refused", nil)}
	v.failures.Store(1)
	err := probeVenue(context.Background(), venueHandle{venueClient: v, label: "paper"}, zap.NewNop())
	require.NoError(t, err)
	require.EqualValues(t, 2, v.pings.Load())
}

func TestProbeVenueStopsOnAuthFailure(t *testing.T) {
	v := &flakyVenue{Venue: fake.NewVenue(fake.Options{}), err: errs.AuthFailure("paper", "bad key", nil)}
	v.failures.Store(5)
	err := probeVenue(context.Background(), venueHandle{venueClient: v, label: "paper"}, zap.NewNop())
	require.Error(t, err)
	require.Equal(t, errs.CanonicalAuthFailure, errs.CanonicalOf(err))
	require.EqualValues(t, 1, v.pings.Load())
}

func TestProbeVenueHonoursCancellation(t *testing.T) {
	v := &flakyVenue{Venue: fake.NewVenue(fake.Options{}), err: errors.New("down")}
	v.failures.Store(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := probeVenue(ctx, venueHandle{venueClient: v, label: "paper"}, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAssemblePaperPairSeeds(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "pair"
	cfg.Market.PriceDecimals = 2
	cfg.Pair.SubmitSpacing = 0
	rt, err := cfg.Runtime()
	require.NoError(t, err)

	ctx := context.Background()
	venue := buildVenue(cfg, true, zap.NewNop())
	require.NotNil(t, venue.paper)
	rt.Engine.Venue = venue.name()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{})
	require.NoError(t, err)
	stack, err := assemble(ctx, cfg, rt, venue, provider, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, stack.store)

	require.NoError(t, stack.engine.Seed(ctx))
	report := stack.engine.FinalReport()
	require.Equal(t, engine.StateSeeded.String(), report.State)
	require.EqualValues(t, 2, report.TrackedSlots)
	require.Len(t, venue.paper.Submissions(), 2)
	require.NoError(t, checkAccount(ctx, venue, cfg.Market.Index, zap.NewNop()))

	stack.engine.Stop()
	require.Equal(t, engine.StateStopped, stack.engine.State())
	stack.close(ctx, stack.engine.FinalReport(), zap.NewNop())
}
