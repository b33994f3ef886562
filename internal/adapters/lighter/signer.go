package lighter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
)

// CreateOrderTx is the unsigned payload of a create-order transaction.
type CreateOrderTx struct {
	AccountIndex     int64 `json:"account_index"`
	APIKeyIndex      int   `json:"api_key_index"`
	MarketIndex      int   `json:"market_index"`
	ClientOrderIndex int64 `json:"client_order_index"`
	BaseAmount       int64 `json:"base_amount"`
	Price            int64 `json:"price"`
	IsAsk            bool  `json:"is_ask"`
	OrderType        int   `json:"order_type"`
	TimeInForce      int   `json:"time_in_force"`
	ReduceOnly       bool  `json:"reduce_only"`
	TriggerPrice     int64 `json:"trigger_price"`
}

// CancelOrderTx is the unsigned payload of a cancel-order transaction.
type CancelOrderTx struct {
	AccountIndex int64 `json:"account_index"`
	APIKeyIndex  int   `json:"api_key_index"`
	MarketIndex  int   `json:"market_index"`
	OrderIndex   int64 `json:"order_index"`
}

// SignedTx is a transaction ready for sendTx.
type SignedTx struct {
	TxType int    `json:"tx_type"`
	TxInfo string `json:"tx_info"`
	TxHash string `json:"tx_hash,omitempty"`
}

// Signer produces signed transactions and short-lived auth tokens for an API key.
type Signer interface {
	SignCreateOrder(ctx context.Context, tx CreateOrderTx) (SignedTx, error)
	SignCancelOrder(ctx context.Context, tx CancelOrderTx) (SignedTx, error)
	AuthToken(ctx context.Context, ttl time.Duration) (string, time.Time, error)
	Check(ctx context.Context) error
}

// BridgeSigner delegates signing to a local sidecar process holding the API
// private key. The sidecar speaks JSON over HTTP.
type BridgeSigner struct {
	http         *resty.Client
	accountIndex int64
	apiKeyIndex  int
	clock        func() time.Time
}

// BridgeOptions configures a BridgeSigner.
type BridgeOptions struct {
	URL          string
	AccountIndex int64
	APIKeyIndex  int
	Timeout      time.Duration
	Clock        func() time.Time
}

type bridgeError struct {
	Error string `json:"error"`
}

type tokenRequest struct {
	AccountIndex  int64 `json:"account_index"`
	APIKeyIndex   int   `json:"api_key_index"`
	ExpirySeconds int64 `json:"expiry_seconds"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewBridgeSigner constructs a signer backed by the sidecar at opts.URL.
func NewBridgeSigner(opts BridgeOptions) *BridgeSigner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &BridgeSigner{
		http:         client,
		accountIndex: opts.AccountIndex,
		apiKeyIndex:  opts.APIKeyIndex,
		clock:        clock,
	}
}

// SignCreateOrder implements Signer.
func (b *BridgeSigner) SignCreateOrder(ctx context.Context, tx CreateOrderTx) (SignedTx, error) {
	tx.AccountIndex = b.accountIndex
	tx.APIKeyIndex = b.apiKeyIndex
	var out SignedTx
	if err := b.post(ctx, "/v1/sign/create-order", tx, &out); err != nil {
		return SignedTx{}, err
	}
	if out.TxType == 0 {
		out.TxType = txTypeCreateOrder
	}
	return out, nil
}

// SignCancelOrder implements Signer.
func (b *BridgeSigner) SignCancelOrder(ctx context.Context, tx CancelOrderTx) (SignedTx, error) {
	tx.AccountIndex = b.accountIndex
	tx.APIKeyIndex = b.apiKeyIndex
	var out SignedTx
	if err := b.post(ctx, "/v1/sign/cancel-order", tx, &out); err != nil {
		return SignedTx{}, err
	}
	if out.TxType == 0 {
		out.TxType = txTypeCancelOrder
	}
	return out, nil
}

// AuthToken implements Signer.
func (b *BridgeSigner) AuthToken(ctx context.Context, ttl time.Duration) (string, time.Time, error) {
	req := tokenRequest{
		AccountIndex:  b.accountIndex,
		APIKeyIndex:   b.apiKeyIndex,
		ExpirySeconds: int64(ttl / time.Second),
	}
	var out tokenResponse
	if err := b.post(ctx, "/v1/auth/token", req, &out); err != nil {
		return "", time.Time{}, err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", time.Time{}, fmt.Errorf("signer returned empty token")
	}
	expires := b.clock().Add(ttl)
	if out.ExpiresAt > 0 {
		expires = time.Unix(out.ExpiresAt, 0)
	}
	return out.Token, expires, nil
}

// Check verifies the sidecar is reachable and holds a key for the account.
func (b *BridgeSigner) Check(ctx context.Context) error {
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParam("account_index", fmt.Sprint(b.accountIndex)).
		SetQueryParam("api_key_index", fmt.Sprint(b.apiKeyIndex)).
		Get("/v1/health")
	if err != nil {
		return fmt.Errorf("signer health: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("signer health: status %d: %s", resp.StatusCode(), bridgeMessage(resp.Body()))
	}
	return nil
}

func (b *BridgeSigner) post(ctx context.Context, path string, body, out any) error {
	resp, err := b.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return fmt.Errorf("signer %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("signer %s: status %d: %s", path, resp.StatusCode(), bridgeMessage(resp.Body()))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("signer %s: decode: %w", path, err)
	}
	return nil
}

func bridgeMessage(body []byte) string {
	var e bridgeError
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
