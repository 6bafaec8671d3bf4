// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// TransportError reports a failure to complete the HTTP exchange: the
// service was unreachable, the request timed out, or the reply body could
// not be decoded.
type TransportError struct {
	Op    string
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return e.Op + " " + e.URL + ": transport failure"
	}
	return e.Op + " " + e.URL + ": " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// Decode reports whether the exchange succeeded but the body was not JSON.
func (e *TransportError) Decode() bool {
	var invalid *InvalidJSONError
	return errors.As(e.Cause, &invalid)
}

// InvalidJSONError marks a response body that is not valid JSON.
type InvalidJSONError struct {
	Snippet string
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("invalid JSON in response: %q", e.Snippet)
}

// HTTPError reports a non-200 status from the service. Message carries the
// service's own "error" string when the body had one.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d - %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsTimeout checks if an error is a transport timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}

// IsNotRunning checks if an error means the service could not be reached.
func IsNotRunning(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) || te.Timeout() || te.Decode() {
		return false
	}
	return true
}

// IsModelNotFound checks if the service rejected the request for an unknown model.
func IsModelNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
