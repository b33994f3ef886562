package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesCanonicalAndVenue(t *testing.T) {
	err := New(
		"lighter",
		CodeExchange,
		WithHTTP(400),
		WithMessage("order rejected"),
		WithRawCode("21706"),
		WithRawMessage("post only order would cross"),
		WithCanonicalCode(CanonicalSubmissionRejected),
		WithVenueField("market_id", "1"),
		WithVenueField("client_order_index", "30001"),
		WithCause(errors.New("sendTx status 400")),
	)

	out := err.Error()
	for _, want := range []string{
		"venue=lighter",
		"code=exchange_error",
		"canonical=submission_rejected",
		"http=400",
		`raw_code="21706"`,
		`venue_meta=client_order_index="30001",market_id="1"`,
		`cause="sendTx status 400"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in error string: %s", want, out)
		}
	}
}

func TestWithCanonicalCodeEmptyDefaultsToUnknown(t *testing.T) {
	err := New("lighter", CodeInvalid, WithCanonicalCode("   "))
	if err.Canonical != CanonicalUnknown {
		t.Fatalf("expected canonical code to default to unknown, got %q", err.Canonical)
	}
	if strings.Contains(err.Error(), "canonical=") {
		t.Fatalf("canonical marker should be omitted when code is unknown: %s", err.Error())
	}
}

func TestIsFollowsWrappedChain(t *testing.T) {
	base := Network("lighter", "active orders", errors.New("connection reset"))
	wrapped := fmt.Errorf("tick 4: %w", base)

	if !Is(wrapped, CanonicalNetworkError) {
		t.Fatalf("expected wrapped error to classify as network error")
	}
	if Is(wrapped, CanonicalAuthFailure) {
		t.Fatalf("network error must not classify as auth failure")
	}
	if Is(nil, CanonicalNetworkError) {
		t.Fatalf("nil error must not classify")
	}
	if got := CanonicalOf(errors.New("plain")); got != CanonicalUnknown {
		t.Fatalf("plain error canonical = %q, want unknown", got)
	}
}

func TestConstructorsSetCanonicalCodes(t *testing.T) {
	cases := map[CanonicalCode]*E{
		CanonicalInvalidSpec:      InvalidSpec("level count must be >= 2"),
		CanonicalQuoteUnavailable: QuoteUnavailable("lighter", "one-sided book", nil),
		CanonicalNetworkError:     Network("lighter", "timeout", nil),
		CanonicalAuthFailure:      AuthFailure("lighter", "token", nil),
	}
	for want, err := range cases {
		if err.Canonical != want {
			t.Fatalf("constructor produced %q, want %q", err.Canonical, want)
		}
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}
