package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/internal/ladder"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

// Mode selects the strategy variant the engine runs.
type Mode string

const (
	// ModeGrid maintains a full ladder of resting orders.
	ModeGrid Mode = "grid"
	// ModePair maintains a single bid/ask pair around the midpoint.
	ModePair Mode = "pair"
)

// ParseMode normalises a configured mode name.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeGrid, "":
		return ModeGrid, nil
	case ModePair:
		return ModePair, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// RefillPolicy chooses the side of a replacement order in grid mode.
type RefillPolicy string

const (
	// RefillSameSide re-places the filled order unchanged.
	RefillSameSide RefillPolicy = "same"
	// RefillOppositeSide flips the side of the replacement.
	RefillOppositeSide RefillPolicy = "opposite"
)

func (p RefillPolicy) side(filled schema.Side) schema.Side {
	if p == RefillOppositeSide {
		return filled.Opposite()
	}
	return filled
}

// GridConfig configures the ladder variant.
type GridConfig struct {
	Direction  schema.Direction
	LevelCount int
	// Investment is the un-leveraged quote amount spread across all levels.
	Investment      decimal.Decimal
	ProfitFactor    decimal.Decimal
	Refill          RefillPolicy
	InitialPosition bool
	AdoptExisting   bool
}

// PairConfig configures the pair variant.
type PairConfig struct {
	// SpreadPercent is the distance of each leg from the midpoint, in percent.
	SpreadPercent decimal.Decimal
	// OrderSize is the un-leveraged quote notional of each leg.
	OrderSize decimal.Decimal
}

// Config is the engine's static configuration.
type Config struct {
	Mode         Mode
	Venue        string
	MarketID     int
	Scale        numeric.Scale
	Leverage     decimal.Decimal
	PollInterval time.Duration

	Grid GridConfig
	Pair PairConfig
}

// Validate checks the configuration for the selected mode.
func (c Config) Validate() error {
	if err := c.Scale.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("engine: poll interval must be positive")
	}
	if !c.Leverage.IsPositive() {
		return fmt.Errorf("engine: leverage must be positive")
	}
	switch c.Mode {
	case ModeGrid:
		g := c.Grid
		if g.LevelCount < ladder.MinLevels {
			return fmt.Errorf("engine: grid level count must be at least %d", ladder.MinLevels)
		}
		if _, err := schema.ParseDirection(string(g.Direction)); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		if !g.Investment.IsPositive() {
			return fmt.Errorf("engine: grid investment must be positive")
		}
		if g.ProfitFactor.IsNegative() {
			return fmt.Errorf("engine: profit factor must not be negative")
		}
		switch g.Refill {
		case RefillSameSide, RefillOppositeSide:
		default:
			return fmt.Errorf("engine: unknown refill policy %q", g.Refill)
		}
	case ModePair:
		if !c.Pair.SpreadPercent.IsPositive() {
			return fmt.Errorf("engine: spread percent must be positive")
		}
		if !c.Pair.OrderSize.IsPositive() {
			return fmt.Errorf("engine: pair order size must be positive")
		}
	default:
		return fmt.Errorf("engine: unknown mode %q", c.Mode)
	}
	return nil
}
