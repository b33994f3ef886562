// Package ladder plans the price levels of a resting-order ladder around a midpoint.
package ladder

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

// MinLevels is the smallest ladder the planner accepts.
const MinLevels = 2

type boundFactors struct {
	lower decimal.Decimal
	upper decimal.Decimal
}

// Bound multipliers applied to the midpoint. The venue enforces a tight price
// band around the mark, so every range stays within ±0.5%.
var directionBounds = map[schema.Direction]boundFactors{
	schema.DirectionLong:    {lower: decimal.RequireFromString("0.995"), upper: decimal.RequireFromString("1.002")},
	schema.DirectionShort:   {lower: decimal.RequireFromString("0.998"), upper: decimal.RequireFromString("1.005")},
	schema.DirectionNeutral: {lower: decimal.RequireFromString("0.998"), upper: decimal.RequireFromString("1.002")},
}

var (
	fullPosition = decimal.NewFromInt(1)
	halfPosition = decimal.RequireFromString("0.5")
)

// Spec describes a ladder: its bias, level count and inclusive price bounds.
type Spec struct {
	Direction  schema.Direction
	LevelCount int
	Lower      decimal.Decimal
	Upper      decimal.Decimal
}

// Validate checks the structural invariants of the spec.
func (s Spec) Validate() error {
	if s.LevelCount < MinLevels {
		return errs.InvalidSpec(fmt.Sprintf("level count %d below minimum %d", s.LevelCount, MinLevels))
	}
	if !s.Lower.IsPositive() {
		return errs.InvalidSpec("lower bound must be positive")
	}
	if !s.Lower.LessThan(s.Upper) {
		return errs.InvalidSpec(fmt.Sprintf("lower bound %s must be below upper bound %s", s.Lower, s.Upper))
	}
	return nil
}

// Level is one planned price level and the side it rests on.
type Level struct {
	Price schema.Ticks
	Side  schema.Side
}

// Ladder is a planned set of levels anchored at a midpoint.
type Ladder struct {
	Spec       Spec
	Anchor     decimal.Decimal
	LowerTicks schema.Ticks
	UpperTicks schema.Ticks
	Levels     []Level

	// InitialSide and InitialFraction describe the recommended opening
	// position: side of the aggressive order and the share of the
	// leveraged investment it uses.
	InitialSide     schema.Side
	InitialFraction decimal.Decimal
}

// Count returns the number of levels on each side.
func (l Ladder) Count() (bids, asks int) {
	for _, lvl := range l.Levels {
		if lvl.Side == schema.SideAsk {
			asks++
		} else {
			bids++
		}
	}
	return bids, asks
}

// Planner turns a midpoint and direction into tick-aligned ladder levels.
type Planner struct {
	scale numeric.Scale
}

// NewPlanner constructs a planner for a market's fixed-point scale.
func NewPlanner(scale numeric.Scale) *Planner {
	return &Planner{scale: scale}
}

// Bounds returns the direction-biased price range around mid.
func Bounds(mid decimal.Decimal, direction schema.Direction) (decimal.Decimal, decimal.Decimal, error) {
	factors, ok := directionBounds[direction]
	if !ok {
		return decimal.Zero, decimal.Zero, errs.InvalidSpec(fmt.Sprintf("unknown direction %q", direction))
	}
	if !mid.IsPositive() {
		return decimal.Zero, decimal.Zero, errs.InvalidSpec("midpoint must be positive")
	}
	return mid.Mul(factors.lower), mid.Mul(factors.upper), nil
}

// Plan builds a ladder of levelCount levels around mid biased by direction.
func (p *Planner) Plan(mid decimal.Decimal, direction schema.Direction, levelCount int) (Ladder, error) {
	lower, upper, err := Bounds(mid, direction)
	if err != nil {
		return Ladder{}, err
	}
	return p.Build(Spec{
		Direction:  direction,
		LevelCount: levelCount,
		Lower:      lower,
		Upper:      upper,
	}, mid)
}

// Build lays out the levels of spec. Bounds are snapped to ticks first and the
// interior levels are spread evenly between them, so the first and last
// levels equal the snapped bounds exactly.
func (p *Planner) Build(spec Spec, anchor decimal.Decimal) (Ladder, error) {
	if err := spec.Validate(); err != nil {
		return Ladder{}, err
	}
	lowerTicks := p.scale.ToTicks(spec.Lower)
	upperTicks := p.scale.ToTicks(spec.Upper)
	span := int64(upperTicks - lowerTicks)
	steps := int64(spec.LevelCount - 1)
	if span < steps {
		return Ladder{}, errs.InvalidSpec(fmt.Sprintf(
			"range %s-%s spans %d ticks, too narrow for %d distinct levels",
			p.scale.FormatTicks(lowerTicks), p.scale.FormatTicks(upperTicks), span, spec.LevelCount))
	}

	levels := make([]Level, spec.LevelCount)
	for i := range levels {
		offset := roundDiv(int64(i)*span, steps)
		price := lowerTicks + schema.Ticks(offset)
		side := schema.SideBid
		if p.scale.FromTicks(price).GreaterThan(anchor) {
			side = schema.SideAsk
		}
		levels[i] = Level{Price: price, Side: side}
	}

	out := Ladder{
		Spec:            spec,
		Anchor:          anchor,
		LowerTicks:      lowerTicks,
		UpperTicks:      upperTicks,
		Levels:          levels,
		InitialSide:     schema.SideBid,
		InitialFraction: fullPosition,
	}
	switch spec.Direction {
	case schema.DirectionShort:
		out.InitialSide = schema.SideAsk
	case schema.DirectionNeutral:
		out.InitialFraction = halfPosition
	}
	return out, nil
}

// Spacing returns the nominal distance between adjacent levels.
func (l Ladder) Spacing() decimal.Decimal {
	if l.Spec.LevelCount < MinLevels {
		return decimal.Zero
	}
	return l.Spec.Upper.Sub(l.Spec.Lower).Div(decimal.NewFromInt(int64(l.Spec.LevelCount - 1)))
}

// roundDiv divides non-negative n by positive d, rounding half up.
func roundDiv(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}
