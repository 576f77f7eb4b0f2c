package xrplsale

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAPIError_Is(t *testing.T) {
	sentinels := []error{ErrBadRequest, ErrUnauthorized, ErrNotFound, ErrRateLimited, ErrServer}

	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusBadRequest, want: ErrBadRequest},
		{status: http.StatusConflict, want: ErrBadRequest},
		{status: http.StatusUnprocessableEntity, want: ErrBadRequest},
		{status: http.StatusUnauthorized, want: ErrUnauthorized},
		{status: http.StatusForbidden, want: ErrUnauthorized},
		{status: http.StatusNotFound, want: ErrNotFound},
		{status: http.StatusTooManyRequests, want: ErrRateLimited},
		{status: http.StatusInternalServerError, want: ErrServer},
		{status: http.StatusGatewayTimeout, want: ErrServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("get project: %w", &APIError{StatusCode: tt.status})

			for _, s := range sentinels {
				if got := errors.Is(err, s); got != (s == tt.want) {
					t.Errorf("errors.Is(%d, %v) = %v", tt.status, s, got)
				}
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "project not found", URL: "https://api.xrpl.sale/v1/projects/x"}

	msg := err.Error()
	for _, want := range []string{"404", "project not found", "/projects/x", "not found"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, should contain %q", msg, want)
		}
	}
}

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := fmt.Errorf("wrapped: %w", &NetworkError{Err: cause})

	if !errors.Is(err, ErrNetwork) {
		t.Error("should match ErrNetwork")
	}
	if !errors.Is(err, cause) {
		t.Error("should unwrap to the transport error")
	}
	if errors.Is(err, ErrServer) {
		t.Error("should not match ErrServer")
	}
}

func TestRetriesExhaustedError(t *testing.T) {
	last := &APIError{StatusCode: 503}
	err := &RetriesExhaustedError{Attempts: 4, Err: last}

	if !errors.Is(err, ErrRetriesExhausted) {
		t.Error("should match ErrRetriesExhausted")
	}
	if !errors.Is(err, ErrServer) {
		t.Error("should match the kind of the wrapped error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr != last {
		t.Error("errors.As should find the last APIError")
	}
	if !strings.Contains(err.Error(), "4 attempts") {
		t.Errorf("Error() = %q, should report attempts", err.Error())
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{body: `{"message":"bad tier"}`, want: "bad tier"},
		{body: `{"error":"invalid_token"}`, want: "invalid_token"},
		{body: `{"error":"x","message":"preferred"}`, want: "preferred"},
		{body: "  plain text  ", want: "plain text"},
		{body: "", want: ""},
	}

	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
