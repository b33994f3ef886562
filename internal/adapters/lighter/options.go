package lighter

import (
	"strings"
	"time"

	"github.com/coachpo/ladder/internal/numeric"
)

const (
	defaultBaseURL      = "https://mainnet.zklighter.elliot.ai"
	defaultVenue        = "lighter"
	defaultHTTPTimeout  = 10 * time.Second
	defaultAuthTokenTTL = 10 * time.Minute
	defaultUserAgent    = "ladder/1.0"

	// tokenRefreshSlack renews a cached auth token this long before it expires.
	tokenRefreshSlack = 30 * time.Second
)

const (
	pathStatus       = "/"
	pathOrderBook    = "/api/v1/orderBookOrders"
	pathActiveOrders = "/api/v1/accountActiveOrders"
	pathSendTx       = "/api/v1/sendTx"
)

// Venue transaction and order enumerations.
const (
	txTypeCreateOrder = 14
	txTypeCancelOrder = 15

	orderTypeLimit  = 0
	orderTypeMarket = 1

	timeInForceIOC      = 0
	timeInForceGTT      = 1
	timeInForcePostOnly = 2
)

// Options configures the Lighter REST client.
type Options struct {
	BaseURL      string
	Venue        string
	AccountIndex int64
	APIKeyIndex  int
	Scale        numeric.Scale
	HTTPTimeout  time.Duration
	AuthTokenTTL time.Duration
	UserAgent    string
	Clock        func() time.Time
}

func withDefaults(in Options) Options {
	in.BaseURL = strings.TrimRight(strings.TrimSpace(in.BaseURL), "/")
	if in.BaseURL == "" {
		in.BaseURL = defaultBaseURL
	}
	if in.Venue == "" {
		in.Venue = defaultVenue
	}
	if in.HTTPTimeout <= 0 {
		in.HTTPTimeout = defaultHTTPTimeout
	}
	if in.AuthTokenTTL <= 0 {
		in.AuthTokenTTL = defaultAuthTokenTTL
	}
	if in.UserAgent == "" {
		in.UserAgent = defaultUserAgent
	}
	if in.Scale == (numeric.Scale{}) {
		in.Scale = numeric.Scale{PriceDecimals: 1, SizeDecimals: 8}
	}
	if in.Clock == nil {
		in.Clock = time.Now
	}
	return in
}
