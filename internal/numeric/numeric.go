// Package numeric converts between display decimals and the venue's fixed-point integers.
package numeric

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/internal/schema"
)

// Scale describes a market's fixed-point encoding: prices carry PriceDecimals
// implied decimals and sizes carry SizeDecimals.
type Scale struct {
	PriceDecimals int32
	SizeDecimals  int32
}

// Validate rejects negative or implausible precisions.
func (s Scale) Validate() error {
	if s.PriceDecimals < 0 || s.PriceDecimals > 12 {
		return fmt.Errorf("price decimals %d out of range", s.PriceDecimals)
	}
	if s.SizeDecimals < 0 || s.SizeDecimals > 18 {
		return fmt.Errorf("size decimals %d out of range", s.SizeDecimals)
	}
	return nil
}

// ToTicks rounds price to the nearest tick, half away from zero.
func (s Scale) ToTicks(price decimal.Decimal) schema.Ticks {
	return schema.Ticks(price.Shift(s.PriceDecimals).Round(0).IntPart())
}

// FromTicks converts ticks back into a decimal price.
func (s Scale) FromTicks(t schema.Ticks) decimal.Decimal {
	return decimal.New(int64(t), -s.PriceDecimals)
}

// FormatTicks renders ticks as a fixed-precision display string.
func (s Scale) FormatTicks(t schema.Ticks) string {
	return s.FromTicks(t).StringFixed(s.PriceDecimals)
}

// ToBaseUnits converts a coin amount into integer base units, truncating
// toward zero.
func (s Scale) ToBaseUnits(size decimal.Decimal) int64 {
	return size.Shift(s.SizeDecimals).Truncate(0).IntPart()
}

// FromBaseUnits converts integer base units back into a coin amount.
func (s Scale) FromBaseUnits(units int64) decimal.Decimal {
	return decimal.New(units, -s.SizeDecimals)
}

// ParsePrice decodes a venue price string. Strings containing a decimal point
// are display prices and are converted with the market scale; bare integers
// are already ticks.
func (s Scale) ParsePrice(raw string) (schema.Ticks, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty price")
	}
	if strings.ContainsAny(raw, ".eE") {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return 0, fmt.Errorf("parse price %q: %w", raw, err)
		}
		return s.ToTicks(d), nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price ticks %q: %w", raw, err)
	}
	return schema.Ticks(v), nil
}

// ParseDecimal parses a decimal string, returning (zero, false) on failure.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
