package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError reports missing or unusable credentials and
// configuration. It is fatal: callers must not retry and must not proceed
// with an unsigned authenticated call.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is missing or empty", e.Field)
}

// UpstreamError reports a non success HTTP status or a malformed response
// body from the exchange. The raw body is preserved for diagnostics.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error in %s: status %d - %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream error in %s: %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError reports one malformed record. It is absorbed at the
// normalizer boundary: the record is dropped and logged, never propagated
// past a chain fetch.
type ParseError struct {
	Symbol string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %q: %v", e.Symbol, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// OrderError reports a failed order placement or cancellation. The
// exchange's error body is carried verbatim for operator diagnosis.
type OrderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error in %s: status %d - %s", e.Operation, e.StatusCode, e.Body)
}

// IsTerminal classifies a failure for the retry executor. Terminal
// failures abort immediately: missing configuration and 4xx client errors
// other than rate limiting. Network errors, 5xx and rate-limit responses
// are retryable.
func IsTerminal(err error) bool {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return true
	}

	status := 0
	var upErr *UpstreamError
	var ordErr *OrderError
	switch {
	case errors.As(err, &upErr):
		status = upErr.StatusCode
	case errors.As(err, &ordErr):
		status = ordErr.StatusCode
	default:
		// Transport failures carry no status and stay retryable.
		return false
	}

	if status >= 400 && status < 500 {
		// 429 and the exchange's teapot ban code are rate limiting.
		return status != http.StatusTooManyRequests && status != http.StatusTeapot
	}
	return false
}
