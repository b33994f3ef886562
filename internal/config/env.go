package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(key string) (string, bool)

// applyEnv overrides file values with process environment variables. The
// variable names match the ones operators already use with the venue's
// tooling, so a single .env serves both.
func (c *AppConfig) applyEnv(lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.str("LADDER_ENV", func(v string) { c.Environment = Environment(v) })
	env.str("LADDER_MODE", func(v string) { c.Mode = v })
	env.str("BASE_URL", func(v string) { c.Venue.BaseURL = v })
	env.str("SIGNER_URL", func(v string) { c.Venue.SignerURL = v })
	env.integer("ACCOUNT_INDEX", func(v int64) { c.Venue.AccountIndex = v })
	env.integer("API_KEY_INDEX", func(v int64) { c.Venue.APIKeyIndex = int(v) })
	env.integer("MARKET_INDEX", func(v int64) { c.Market.Index = int(v) })
	env.integer("PRICE_DECIMALS", func(v int64) { c.Market.PriceDecimals = int32(v) })
	env.integer("SIZE_DECIMALS", func(v int64) { c.Market.SizeDecimals = int32(v) })

	env.str("LEVERAGE", func(v string) {
		c.Grid.Leverage = v
		c.Pair.Leverage = v
	})
	env.integer("GRID_COUNT", func(v int64) { c.Grid.Count = int(v) })
	env.str("INVESTMENT_USDC", func(v string) { c.Grid.Investment = v })
	env.str("INVESTMENT", func(v string) { c.Grid.Investment = v })
	env.str("DIRECTION", func(v string) { c.Grid.Direction = v })
	env.str("REFILL", func(v string) { c.Grid.Refill = v })
	env.str("SPREAD_PERCENT", func(v string) { c.Pair.SpreadPercent = v })
	env.str("ORDER_SIZE_USDC", func(v string) { c.Pair.OrderSize = v })
	env.str("ORDER_SIZE", func(v string) { c.Pair.OrderSize = v })
	env.duration("CHECK_INTERVAL", func(v time.Duration) {
		c.Grid.CheckInterval = v
		c.Pair.CheckInterval = v
	})

	env.str("LOG_LEVEL", func(v string) { c.Logging.Level = v })
	env.str("LOG_FILE", func(v string) { c.Logging.File = v })
	env.str("STATUS_ADDR", func(v string) { c.Status.Addr = v })
	env.str("OTLP_ENDPOINT", func(v string) {
		c.Telemetry.OTLPEndpoint = v
		c.Telemetry.EnableMetrics = true
	})
	env.str("JOURNAL_DSN", func(v string) {
		c.Journal.DSN = v
		c.Journal.Enabled = true
	})
	return env.err
}

type envReader struct {
	lookup lookupFunc
	err    error
}

func (r *envReader) get(key string) (string, bool) {
	if r.err != nil || r.lookup == nil {
		return "", false
	}
	raw, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (r *envReader) str(key string, set func(string)) {
	if v, ok := r.get(key); ok {
		set(v)
	}
}

func (r *envReader) integer(key string, set func(int64)) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("env %s: invalid integer %q", key, v)
		return
	}
	set(n)
}

// duration accepts Go duration syntax or a bare number of seconds.
func (r *envReader) duration(key string, set func(time.Duration)) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		set(d)
		return
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = fmt.Errorf("env %s: invalid duration %q", key, v)
		return
	}
	set(time.Duration(secs * float64(time.Second)))
}
