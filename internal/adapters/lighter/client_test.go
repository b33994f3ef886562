package lighter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/numeric"
	"github.com/coachpo/ladder/internal/schema"
)

type stubSigner struct {
	mu        sync.Mutex
	creates   []CreateOrderTx
	cancels   []CancelOrderTx
	tokens    int
	tokenErr  error
	checkErr  error
	expiresIn time.Duration
}

func (s *stubSigner) SignCreateOrder(_ context.Context, tx CreateOrderTx) (SignedTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, tx)
	return SignedTx{TxType: txTypeCreateOrder, TxInfo: `{"signed":"create"}`, TxHash: "0xlocal"}, nil
}

func (s *stubSigner) SignCancelOrder(_ context.Context, tx CancelOrderTx) (SignedTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, tx)
	return SignedTx{TxType: txTypeCancelOrder, TxInfo: `{"signed":"cancel"}`}, nil
}

func (s *stubSigner) AuthToken(context.Context, time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenErr != nil {
		return "", time.Time{}, s.tokenErr
	}
	s.tokens++
	ttl := s.expiresIn
	if ttl == 0 {
		ttl = time.Hour
	}
	return "token-1", time.Now().Add(ttl), nil
}

func (s *stubSigner) Check(context.Context) error { return s.checkErr }

func newTestClient(t *testing.T, handler http.HandlerFunc, signer Signer) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:      srv.URL,
		AccountIndex: 7,
		Scale:        numeric.Scale{PriceDecimals: 2, SizeDecimals: 4},
	}, signer, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTopOfBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathOrderBook || r.URL.Query().Get("market_id") != "3" {
			t.Errorf("unexpected request %s", r.URL)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"code": 200,
			"bids": []map[string]any{{"price": "99.99"}},
			"asks": []map[string]any{{"price": "100.01"}},
		})
	}, nil)
	top, err := c.TopOfBook(context.Background(), 3)
	if err != nil {
		t.Fatalf("top of book: %v", err)
	}
	if !top.BestBid.Equal(decimal.RequireFromString("99.99")) || !top.BestAsk.Equal(decimal.RequireFromString("100.01")) {
		t.Fatalf("top = %+v", top)
	}
}

func TestTopOfBookEmptySideAndErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("market_id") {
		case "1":
			writeJSON(w, http.StatusOK, map[string]any{"code": 200, "bids": []any{}, "asks": []map[string]any{{"price": "5"}}})
		case "2":
			_, _ = w.Write([]byte("not json"))
		case "3":
			writeJSON(w, http.StatusBadGateway, map[string]any{"code": 502, "message": "upstream"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"code": 21100, "message": "market not found"})
		}
	}, nil)
	ctx := context.Background()

	top, err := c.TopOfBook(ctx, 1)
	if err != nil || !top.BestBid.IsZero() || !top.BestAsk.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("one-sided book = %+v err %v", top, err)
	}
	if _, err := c.TopOfBook(ctx, 2); !errs.Is(err, errs.CanonicalQuoteUnavailable) {
		t.Fatalf("decode err = %v", err)
	}
	if _, err := c.TopOfBook(ctx, 3); !errs.Is(err, errs.CanonicalNetworkError) {
		t.Fatalf("5xx err = %v", err)
	}
	if _, err := c.TopOfBook(ctx, 4); !errs.Is(err, errs.CanonicalQuoteUnavailable) {
		t.Fatalf("venue code err = %v", err)
	}
}

func TestActiveOrdersUsesCachedToken(t *testing.T) {
	signer := &stubSigner{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token-1" {
			t.Errorf("authorization = %q", got)
		}
		if r.URL.Query().Get("account_index") != "7" {
			t.Errorf("account index = %q", r.URL.Query().Get("account_index"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"code": 200,
			"orders": []map[string]any{
				{"order_index": 11, "client_order_index": 30001, "price": "99.80", "is_ask": false, "remaining_base_amount": "0.2000"},
				{"order_index": 12, "client_order_index": 30002, "price": "100.20", "is_ask": true, "remaining_base_amount": "0.2"},
			},
		})
	}, signer)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		orders, err := c.ActiveOrders(ctx, 0)
		if err != nil {
			t.Fatalf("active orders: %v", err)
		}
		want := []schema.ActiveOrder{
			{Price: 9980, Side: schema.SideBid, ClientOrderID: 30001, OrderIndex: 11, RemainingAmount: 2000},
			{Price: 10020, Side: schema.SideAsk, ClientOrderID: 30002, OrderIndex: 12, RemainingAmount: 2000},
		}
		if len(orders) != len(want) {
			t.Fatalf("orders = %+v", orders)
		}
		for j := range want {
			if orders[j] != want[j] {
				t.Fatalf("order %d = %+v want %+v", j, orders[j], want[j])
			}
		}
	}
	if signer.tokens != 1 {
		t.Fatalf("tokens minted = %d, want 1", signer.tokens)
	}
}

func TestActiveOrdersFailures(t *testing.T) {
	ctx := context.Background()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request sent without token")
	}, &stubSigner{tokenErr: errors.New("no key")})
	if _, err := c.ActiveOrders(ctx, 0); !errs.Is(err, errs.CanonicalAuthFailure) {
		t.Fatalf("token err = %v", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 20001, "message": "invalid auth"})
	}, &stubSigner{})
	if _, err := c.ActiveOrders(ctx, 0); !errs.Is(err, errs.CanonicalAuthFailure) {
		t.Fatalf("401 err = %v", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 200})
	}, &stubSigner{})
	if _, err := c.ActiveOrders(ctx, 0); !errs.Is(err, errs.CanonicalNetworkError) {
		t.Fatalf("missing orders err = %v", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "orders": []any{}})
	}, &stubSigner{})
	orders, err := c.ActiveOrders(ctx, 0)
	if err != nil || len(orders) != 0 {
		t.Fatalf("empty list = %+v err %v", orders, err)
	}
}

func TestSubmitOrderSendsSignedTx(t *testing.T) {
	signer := &stubSigner{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathSendTx {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("tx_type") != "14" || r.PostForm.Get("tx_info") != `{"signed":"create"}` {
			t.Errorf("form = %v", r.PostForm)
		}
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "tx_hash": "0xabc"})
	}, signer)

	receipt, err := c.SubmitOrder(context.Background(), schema.SubmitRequest{
		MarketID:      2,
		ClientOrderID: 30000,
		BaseAmount:    2000,
		Price:         9980,
		Type:          schema.OrderTypeLimit,
		TimeInForce:   schema.TIFPostOnly,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.TxHash != "0xabc" {
		t.Fatalf("receipt = %+v", receipt)
	}
	got := signer.creates[0]
	if got.MarketIndex != 2 || got.ClientOrderIndex != 30000 || got.Price != 9980 || got.TimeInForce != timeInForcePostOnly || got.OrderType != orderTypeLimit {
		t.Fatalf("signed tx = %+v", got)
	}
}

func TestSubmitOrderRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 21733, "message": "post only order would cross"})
	}, &stubSigner{})
	_, err := c.SubmitOrder(context.Background(), schema.SubmitRequest{ClientOrderID: 1, BaseAmount: 1, Price: 1, TimeInForce: schema.TIFPostOnly})
	if !errs.Is(err, errs.CanonicalSubmissionRejected) {
		t.Fatalf("err = %v", err)
	}
	var e *errs.E
	if !errors.As(err, &e) || e.RawCode != "21733" {
		t.Fatalf("raw code missing: %v", err)
	}

	if _, err := c.SubmitOrder(context.Background(), schema.SubmitRequest{TimeInForce: "FOK"}); !errs.Is(err, errs.CanonicalSubmissionRejected) {
		t.Fatalf("unsupported tif err = %v", err)
	}
}

func TestCancelOrderUsesClientIndex(t *testing.T) {
	signer := &stubSigner{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 200})
	}, signer)
	if err := c.CancelOrder(context.Background(), schema.CancelRequest{MarketID: 2, ClientOrderID: 40001}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(signer.cancels) != 1 || signer.cancels[0].OrderIndex != 40001 || signer.cancels[0].MarketIndex != 2 {
		t.Fatalf("cancels = %+v", signer.cancels)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": 200})
	}, &stubSigner{checkErr: errors.New("no key loaded")})
	if err := c.Ping(context.Background()); !errs.Is(err, errs.CanonicalAuthFailure) {
		t.Fatalf("ping err = %v", err)
	}
}

func TestBridgeSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/sign/create-order":
			var tx CreateOrderTx
			if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
				t.Errorf("decode: %v", err)
			}
			if tx.AccountIndex != 7 || tx.APIKeyIndex != 3 || tx.ClientOrderIndex != 5 {
				t.Errorf("tx = %+v", tx)
			}
			writeJSON(w, http.StatusOK, map[string]any{"tx_info": "signed"})
		case "/v1/auth/token":
			writeJSON(w, http.StatusOK, map[string]any{"token": "abc", "expires_at": 1700000000})
		case "/v1/health":
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "key not loaded"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := NewBridgeSigner(BridgeOptions{URL: srv.URL, AccountIndex: 7, APIKeyIndex: 3})
	ctx := context.Background()
	tx, err := b.SignCreateOrder(ctx, CreateOrderTx{ClientOrderIndex: 5})
	if err != nil || tx.TxInfo != "signed" || tx.TxType != txTypeCreateOrder {
		t.Fatalf("sign = %+v err %v", tx, err)
	}
	token, expires, err := b.AuthToken(ctx, time.Minute)
	if err != nil || token != "abc" || expires.Unix() != 1700000000 {
		t.Fatalf("token = %q %v err %v", token, expires, err)
	}
	if err := b.Check(ctx); err == nil {
		t.Fatalf("health check passed against unhealthy sidecar")
	}
	if _, err := b.SignCancelOrder(ctx, CancelOrderTx{}); err == nil {
		t.Fatalf("unknown route succeeded")
	}
}
