package xrplsale

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadRequest is matched by API errors for 4xx responses not covered by a more specific kind.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized is matched by API errors for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is matched by API errors for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is matched by API errors for 429 responses.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrServer is matched by API errors for 5xx responses.
	ErrServer = errors.New("server error")
	// ErrNetwork is matched by transport level failures.
	ErrNetwork = errors.New("network error")
	// ErrRetriesExhausted is matched when every permitted attempt failed.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrConfiguration is returned when the client configuration is invalid.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvalidEnvironment is returned for an unknown environment name.
	ErrInvalidEnvironment = errors.New("invalid environment")
	// ErrNoWebhookSecret is returned when a webhook secret is required but not set.
	ErrNoWebhookSecret = errors.New("webhook secret not configured")
)

// APIError is an unsuccessful response from the XRPL.Sale API.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
	// RetryAfter is the server requested delay on 429 responses, zero if absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("xrplsale: %s: %d", e.kind(), e.StatusCode)
	if e.Message != "" {
		msg += " - " + e.Message
	}
	if e.URL != "" {
		msg += " at " + e.URL
	}
	return msg
}

// Is reports whether target is the sentinel for this error's kind.
func (e *APIError) Is(target error) bool {
	return target == e.kind()
}

func (e *APIError) kind() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return ErrBadRequest
	}
}

// NetworkError is a failure below HTTP: DNS, connection reset, TLS, timeouts.
type NetworkError struct {
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("xrplsale: network error: %v", e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// RetriesExhaustedError wraps the last failure after all attempts were used.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("xrplsale: giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// Is matches ErrRetriesExhausted.
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// errorBody is the JSON error shape returned by the API.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// newAPIError converts an unsuccessful response into an *APIError.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		apiErr.URL = resp.Request.URL.String()
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return apiErr
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// maxRetryAfterSeconds is the largest delay-seconds value representable as a Duration.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// parseRetryAfter accepts delay-seconds or an HTTP date. Invalid or past values yield zero.
func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		if int64(secs) > maxRetryAfterSeconds {
			return time.Duration(maxRetryAfterSeconds) * time.Second
		}
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}
