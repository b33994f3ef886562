// Package errs provides the structured error envelope shared by the ladder engine and its venue adapters.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies the transport-level category of a failure.
type Code string

const (
	// CodeRateLimited indicates that the request exceeded venue rate limits.
	CodeRateLimited Code = "rate_limited"
	// CodeAuth indicates authentication or token issuance errors.
	CodeAuth Code = "auth"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeExchange indicates the venue declined or failed the request.
	CodeExchange Code = "exchange_error"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeUnavailable indicates the venue returned unusable data.
	CodeUnavailable Code = "unavailable"
)

// CanonicalCode captures the engine-level error taxonomy.
type CanonicalCode string

const (
	// CanonicalUnknown captures uncategorized failures.
	CanonicalUnknown CanonicalCode = "unknown"
	// CanonicalQuoteUnavailable means market data was malformed or the book was one-sided.
	CanonicalQuoteUnavailable CanonicalCode = "quote_unavailable"
	// CanonicalSubmissionRejected means the venue declined an order.
	CanonicalSubmissionRejected CanonicalCode = "submission_rejected"
	// CanonicalAuthFailure means a short-lived auth token could not be issued.
	CanonicalAuthFailure CanonicalCode = "auth_failure"
	// CanonicalNetworkError means a transport failure; callers retry on the next tick.
	CanonicalNetworkError CanonicalCode = "network_error"
	// CanonicalInvalidSpec means a ladder planning invariant was violated.
	CanonicalInvalidSpec CanonicalCode = "invalid_spec"
)

// E captures structured error information produced across the engine.
type E struct {
	Venue         string
	Code          Code
	HTTP          int
	RawCode       string
	RawMsg        string
	Message       string
	Canonical     CanonicalCode
	VenueMetadata map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the venue and error code.
func New(venue string, code Code, opts ...Option) *E {
	e := &E{
		Venue:     strings.TrimSpace(venue),
		Code:      code,
		Canonical: CanonicalUnknown,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw venue error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithRawMessage captures the raw venue error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithCanonicalCode sets the canonical code describing the failure category.
func WithCanonicalCode(code CanonicalCode) Option {
	trimmed := strings.TrimSpace(string(code))
	return func(e *E) {
		if trimmed == "" {
			e.Canonical = CanonicalUnknown
			return
		}
		e.Canonical = CanonicalCode(trimmed)
	}
}

// WithVenueField appends a single venue metadata key/value pair.
func WithVenueField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.VenueMetadata == nil {
			e.VenueMetadata = make(map[string]string, 1)
		}
		e.VenueMetadata[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	venue := e.Venue
	if venue == "" {
		venue = "unknown"
	}
	parts = append(parts, "venue="+venue)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if cc := string(e.Canonical); cc != "" && e.Canonical != CanonicalUnknown {
		parts = append(parts, "canonical="+cc)
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if len(e.VenueMetadata) > 0 {
		keys := make([]string, 0, len(e.VenueMetadata))
		for k := range e.VenueMetadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.VenueMetadata[k]))
		}
		parts = append(parts, "venue_meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CanonicalOf returns the canonical code of the first envelope in err's chain.
func CanonicalOf(err error) CanonicalCode {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Canonical
	}
	return CanonicalUnknown
}

// Is reports whether err carries the canonical code.
func Is(err error, code CanonicalCode) bool {
	if err == nil {
		return false
	}
	return CanonicalOf(err) == code
}

// InvalidSpec returns a ladder planning violation.
func InvalidSpec(msg string) *E {
	return New("", CodeInvalid, WithMessage(msg), WithCanonicalCode(CanonicalInvalidSpec))
}

// QuoteUnavailable returns a market data failure for the venue.
func QuoteUnavailable(venue, msg string, cause error) *E {
	return New(venue, CodeUnavailable, WithMessage(msg), WithCause(cause), WithCanonicalCode(CanonicalQuoteUnavailable))
}

// Network wraps a transport failure for the venue.
func Network(venue, msg string, cause error) *E {
	return New(venue, CodeNetwork, WithMessage(msg), WithCause(cause), WithCanonicalCode(CanonicalNetworkError))
}

// AuthFailure wraps a token issuance failure for the venue.
func AuthFailure(venue, msg string, cause error) *E {
	return New(venue, CodeAuth, WithMessage(msg), WithCause(cause), WithCanonicalCode(CanonicalAuthFailure))
}

// SubmissionRejected returns a declined order for the venue.
func SubmissionRejected(venue, msg string, cause error) *E {
	return New(venue, CodeExchange, WithMessage(msg), WithCause(cause), WithCanonicalCode(CanonicalSubmissionRejected))
}
