// Package lighter adapts the Lighter exchange REST API to the engine's market
// data, account query and order entry interfaces.
package lighter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/numeric"
)

// Client is a REST client bound to one account.
type Client struct {
	opts   Options
	http   *resty.Client
	signer Signer
	logger *zap.Logger

	tokenMu      sync.Mutex
	token        string
	tokenExpires time.Time
}

// apiStatus is embedded in every venue response.
type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s apiStatus) ok() bool { return s.Code == 0 || s.Code == http.StatusOK }

// NewClient constructs a client. A nil logger disables logging.
func NewClient(opts Options, signer Signer, logger *zap.Logger) *Client {
	opts = withDefaults(opts)
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.HTTPTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", opts.UserAgent).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(0)
	return &Client{
		opts:   opts,
		http:   httpClient,
		signer: signer,
		logger: logger.Named("lighter"),
	}
}

// Venue returns the venue name stamped on errors.
func (c *Client) Venue() string { return c.opts.Venue }

// Scale returns the fixed-point scale used to decode prices and sizes.
func (c *Client) Scale() numeric.Scale { return c.opts.Scale }

// Ping checks that the venue answers and the signer is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(pathStatus)
	if err != nil {
		return errs.Network(c.opts.Venue, "status", err)
	}
	if resp.IsError() {
		return c.statusError("status", resp, errs.CanonicalNetworkError)
	}
	if c.signer != nil {
		if err := c.signer.Check(ctx); err != nil {
			return errs.AuthFailure(c.opts.Venue, "signer check", err)
		}
	}
	return nil
}

// authToken returns a cached auth token, minting a new one through the signer
// shortly before the cached one expires.
func (c *Client) authToken(ctx context.Context) (string, error) {
	if c.signer == nil {
		return "", errs.AuthFailure(c.opts.Venue, "no signer configured", nil)
	}
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	now := c.opts.Clock()
	if c.token != "" && now.Add(tokenRefreshSlack).Before(c.tokenExpires) {
		return c.token, nil
	}
	token, expires, err := c.signer.AuthToken(ctx, c.opts.AuthTokenTTL)
	if err != nil {
		c.token = ""
		return "", errs.AuthFailure(c.opts.Venue, "create auth token", err)
	}
	c.token, c.tokenExpires = token, expires
	return token, nil
}

// get issues a GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, op, path string, query map[string]string, headers map[string]string, fallback errs.CanonicalCode, out any) error {
	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	resp, err := req.Get(path)
	if err != nil {
		return errs.Network(c.opts.Venue, op, err)
	}
	if resp.IsError() {
		return c.statusError(op, resp, fallback)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errs.New(c.opts.Venue, errs.CodeUnavailable,
			errs.WithMessage(op+": decode response"),
			errs.WithHTTP(resp.StatusCode()),
			errs.WithCause(err),
			errs.WithCanonicalCode(fallback))
	}
	return nil
}

// statusError maps an HTTP failure onto the error taxonomy. Authentication
// failures, throttling and server errors are classified by status; other
// client errors take the caller's fallback.
func (c *Client) statusError(op string, resp *resty.Response, fallback errs.CanonicalCode) error {
	status := resp.StatusCode()
	var body apiStatus
	_ = json.Unmarshal(resp.Body(), &body)
	opts := []errs.Option{
		errs.WithMessage(op),
		errs.WithHTTP(status),
		errs.WithRawMessage(body.Message),
	}
	if body.Code != 0 {
		opts = append(opts, errs.WithRawCode(strconv.Itoa(body.Code)))
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.invalidateToken()
		return errs.New(c.opts.Venue, errs.CodeAuth, append(opts, errs.WithCanonicalCode(errs.CanonicalAuthFailure))...)
	case status == http.StatusTooManyRequests:
		return errs.New(c.opts.Venue, errs.CodeRateLimited, append(opts, errs.WithCanonicalCode(errs.CanonicalNetworkError))...)
	case status >= http.StatusInternalServerError:
		return errs.New(c.opts.Venue, errs.CodeNetwork, append(opts, errs.WithCanonicalCode(errs.CanonicalNetworkError))...)
	default:
		return errs.New(c.opts.Venue, errs.CodeExchange, append(opts, errs.WithCanonicalCode(fallback))...)
	}
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

func marketQuery(market int) string { return strconv.Itoa(market) }

func accountQuery(account int64) string { return fmt.Sprint(account) }
