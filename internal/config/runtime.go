package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/internal/engine"
	"github.com/coachpo/ladder/internal/ledger"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

// Runtime is the parsed, mode-specific view of the configuration consumed by
// the engine and its collaborators.
type Runtime struct {
	Engine             engine.Config
	SubmitSpacing      time.Duration
	FirstClientOrderID int64
}

// Scale returns the market's fixed-point encoding.
func (c AppConfig) Scale() numeric.Scale {
	return numeric.Scale{PriceDecimals: c.Market.PriceDecimals, SizeDecimals: c.Market.SizeDecimals}
}

// Runtime parses the decimal knobs of the selected mode and returns a
// validated engine configuration.
func (c AppConfig) Runtime() (Runtime, error) {
	mode, err := engine.ParseMode(c.Mode)
	if err != nil {
		return Runtime{}, err
	}
	out := Runtime{
		Engine: engine.Config{
			Mode:     mode,
			Venue:    c.Venue.Name,
			MarketID: c.Market.Index,
			Scale:    c.Scale(),
		},
	}
	switch mode {
	case engine.ModeGrid:
		g := c.Grid
		dir, err := schema.ParseDirection(g.Direction)
		if err != nil {
			return Runtime{}, fmt.Errorf("grid: %w", err)
		}
		lev, err := parseAmount("grid leverage", g.Leverage, "")
		if err != nil {
			return Runtime{}, err
		}
		investment, err := parseAmount("grid investment", g.Investment, "")
		if err != nil {
			return Runtime{}, err
		}
		factor, err := parseAmount("grid profitFactor", g.ProfitFactor, ledger.DefaultProfitFactor.String())
		if err != nil {
			return Runtime{}, err
		}
		refill := engine.RefillPolicy(g.Refill)
		if refill == "" {
			refill = engine.RefillSameSide
		}
		out.Engine.Leverage = lev
		out.Engine.PollInterval = g.CheckInterval
		out.Engine.Grid = engine.GridConfig{
			Direction:       dir,
			LevelCount:      g.Count,
			Investment:      investment,
			ProfitFactor:    factor,
			Refill:          refill,
			InitialPosition: boolOr(g.InitialPosition, true),
			AdoptExisting:   boolOr(g.AdoptExisting, true),
		}
		out.SubmitSpacing = g.SubmitSpacing
		out.FirstClientOrderID = g.FirstClientOrderID
	case engine.ModePair:
		p := c.Pair
		lev, err := parseAmount("pair leverage", p.Leverage, "")
		if err != nil {
			return Runtime{}, err
		}
		spread, err := parseAmount("pair spreadPercent", p.SpreadPercent, "")
		if err != nil {
			return Runtime{}, err
		}
		size, err := parseAmount("pair orderSize", p.OrderSize, "")
		if err != nil {
			return Runtime{}, err
		}
		out.Engine.Leverage = lev
		out.Engine.PollInterval = p.CheckInterval
		out.Engine.Pair = engine.PairConfig{SpreadPercent: spread, OrderSize: size}
		out.SubmitSpacing = p.SubmitSpacing
		out.FirstClientOrderID = p.FirstClientOrderID
	}
	if err := out.Engine.Validate(); err != nil {
		return Runtime{}, err
	}
	return out, nil
}

func parseAmount(name, raw, fallback string) (decimal.Decimal, error) {
	if raw == "" {
		raw = fallback
	}
	amount, ok := numeric.ParseDecimal(raw)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", name, raw)
	}
	return amount, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
