package xrplsale

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_holdUntil_OnlyMovesForward(t *testing.T) {
	c := &Client{}

	future := time.Now().Add(2 * time.Hour)
	c.holdUntil(future)
	c.holdUntil(time.Now().Add(1 * time.Hour))

	if !c.retryAfter.Equal(future) {
		t.Errorf("retryAfter should not move back, got %v, want %v", c.retryAfter, future)
	}

	later := future.Add(time.Minute)
	c.holdUntil(later)
	if !c.retryAfter.Equal(later) {
		t.Errorf("retryAfter = %v, want %v", c.retryAfter, later)
	}
}

func TestClient_wait_NoWaiting(t *testing.T) {
	c := &Client{}
	c.retryAfter = time.Now().Add(-1 * time.Second)

	start := time.Now()
	err := c.wait(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Errorf("wait() error = %v, want nil", err)
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("wait() took %v, should be nearly instant", elapsed)
	}
}

func TestClient_wait_WaitsUntilTime(t *testing.T) {
	c := &Client{}

	waitDuration := 200 * time.Millisecond
	c.retryAfter = time.Now().Add(waitDuration)

	start := time.Now()
	err := c.wait(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Errorf("wait() error = %v, want nil", err)
	}
	if elapsed < waitDuration-50*time.Millisecond {
		t.Errorf("wait() took %v, expected at least %v", elapsed, waitDuration-50*time.Millisecond)
	}
	if elapsed > waitDuration+150*time.Millisecond {
		t.Errorf("wait() took %v, expected no more than %v", elapsed, waitDuration+150*time.Millisecond)
	}
}

func TestClient_wait_ContextCancellation(t *testing.T) {
	c := &Client{}
	c.retryAfter = time.Now().Add(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := c.wait(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("wait() error = %v, want context.Canceled", err)
	}
	if elapsed > 1*time.Second {
		t.Errorf("wait() took %v, should return quickly after cancellation", elapsed)
	}
}

func TestClient_wait_ZeroTime(t *testing.T) {
	c := &Client{}

	start := time.Now()
	err := c.wait(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Errorf("wait() error = %v, want nil", err)
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("wait() took %v, should be nearly instant for zero time", elapsed)
	}
}

func TestClient_rewindBody_NoBody(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name string
		body io.ReadCloser
	}{
		{name: "nil body", body: nil},
		{name: "http.NoBody", body: http.NoBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "http://example.com", tt.body)

			if err := c.rewindBody(req); err != nil {
				t.Errorf("rewindBody() error = %v, want nil for %s", err, tt.name)
			}
		})
	}
}

func TestClient_rewindBody_WithGetBody(t *testing.T) {
	c := &Client{}

	bodyContent := []byte("test request body")
	req, err := http.NewRequest(http.MethodPost, "http://example.com", bytes.NewReader(bodyContent))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if _, err := io.ReadAll(req.Body); err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	if err := c.rewindBody(req); err != nil {
		t.Fatalf("rewindBody() error = %v", err)
	}

	rewound, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("failed to read rewound body: %v", err)
	}
	if !bytes.Equal(rewound, bodyContent) {
		t.Errorf("rewound body = %q, want %q", rewound, bodyContent)
	}
}

func TestClient_rewindBody_NoGetBody(t *testing.T) {
	c := &Client{}

	req, err := http.NewRequest(http.MethodPost, "http://example.com", io.NopCloser(strings.NewReader("test")))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.GetBody = nil

	err = c.rewindBody(req)
	if err == nil {
		t.Fatal("rewindBody() should return error when GetBody is nil")
	}
	if !strings.Contains(err.Error(), "GetBody is nil") {
		t.Errorf("rewindBody() error = %v, should mention GetBody is nil", err)
	}
}

func TestEncodeParams(t *testing.T) {
	tests := []struct {
		name   string
		params any
		want   string
	}{
		{name: "nil", params: nil, want: ""},
		{name: "values", params: url.Values{"a": {"1"}}, want: "a=1"},
		{
			name:   "page params omit zero",
			params: PageParams{Page: 2},
			want:   "page=2",
		},
		{
			name: "embedded structs",
			params: ListInvestmentsParams{
				PageParams: PageParams{Page: 1, PerPage: 25},
				ProjectID:  "p1",
				DateRange:  DateRange{Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
			},
			want: "page=1&per_page=25&project_id=p1&start_date=2024-01-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := encodeParams(tt.params)
			if err != nil {
				t.Fatalf("encodeParams() error = %v", err)
			}
			if got := v.Encode(); got != tt.want {
				t.Errorf("encodeParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_call_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
		wantMsg  string
		retried  bool
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"message":"name is required"}`, wantKind: ErrBadRequest, wantMsg: "name is required"},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: `{"error":"invalid tiers"}`, wantKind: ErrBadRequest, wantMsg: "invalid tiers"},
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantKind: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, body: "no such project", wantKind: ErrNotFound, wantMsg: "no such project"},
		{name: "server error", status: http.StatusBadGateway, wantKind: ErrServer, retried: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			c := newTestClient(t, handler)
			p, err := c.Projects.Get(context.Background(), "p1")

			if p != nil {
				t.Errorf("Get() returned %+v alongside an error", p)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Get() error = %v, want kind %v", err, tt.wantKind)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Get() error = %T, want *APIError in chain", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if tt.wantMsg != "" && apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}

			wantCalls := int32(1)
			if tt.retried {
				wantCalls = defaultMaxRetries + 1
			}
			if got := calls.Load(); got != wantCalls {
				t.Errorf("server saw %d calls, want %d", got, wantCalls)
			}
			if errors.Is(err, ErrRetriesExhausted) != tt.retried {
				t.Errorf("errors.Is(err, ErrRetriesExhausted) = %v, want %v", !tt.retried, tt.retried)
			}
		})
	}
}

func TestClient_call_RateLimitedHoldsClient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := newTestClient(t, handler)
	c.retry.MaxRetries = 0

	before := time.Now()
	_, err := c.Projects.Get(context.Background(), "p1")

	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Get() error = %v, want ErrRateLimited", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Get() error = %T, want *APIError in chain", err)
	}
	if apiErr.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", apiErr.RetryAfter)
	}

	if c.retryAfter.Before(before.Add(29 * time.Second)) {
		t.Errorf("client should hold further requests for the Retry-After delay, retryAfter = %v", c.retryAfter)
	}
}

func TestClient_call_NetworkError(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	c.baseURL, _ = url.Parse("http://127.0.0.1:1/v1/")

	_, err := c.Projects.Get(context.Background(), "p1")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Get() error = %v, want ErrNetwork", err)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("Get() error = %v, want ErrRetriesExhausted after retrying", err)
	}

	var exhausted *RetriesExhaustedError
	if errors.As(err, &exhausted) && exhausted.Attempts != defaultMaxRetries+1 {
		t.Errorf("Attempts = %d, want %d", exhausted.Attempts, defaultMaxRetries+1)
	}
}

func TestClient_call_EmptyBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, handler)
	if err := c.Webhooks.Delete(context.Background(), "wh1"); err != nil {
		t.Errorf("Delete() error = %v, want nil", err)
	}
}

func TestClient_call_DecodeError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 12`)
	})

	c := newTestClient(t, handler)
	_, err := c.Projects.Get(context.Background(), "p1")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Errorf("Get() error = %v, want decode error", err)
	}
}

func TestClient_call_EscapesPath(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/v1/projects/a%2Fb" {
			t.Errorf("escaped path = %q, want /v1/projects/a%%2Fb", r.URL.EscapedPath())
		}
		writeJSON(t, w, http.StatusOK, Project{ID: "a/b"})
	})

	c := newTestClient(t, handler)
	p, err := c.Projects.Get(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.ID != "a/b" {
		t.Errorf("ID = %q, want a/b", p.ID)
	}
}

func TestClient_call_IdempotencyKeyStableAcrossRetries(t *testing.T) {
	var keys []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))

		var body CreateInvestmentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.AmountXRP != "100" {
			t.Errorf("retried body lost its content: %+v", body)
		}

		if len(keys) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, http.StatusCreated, Investment{ID: "inv1"})
	})

	c := newTestClient(t, handler)
	inv, err := c.Investments.Create(context.Background(), CreateInvestmentRequest{
		ProjectID:       "p1",
		InvestorAccount: "rInvestor",
		AmountXRP:       "100",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inv.ID != "inv1" {
		t.Errorf("ID = %q, want inv1", inv.ID)
	}
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Errorf("Idempotency-Key should be set and stable across retries, got %q", keys)
	}
}

func TestClient_call_ContextCancelled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := newTestClient(t, handler)
	ctx, cancel := context.WithCancel(context.Background())
	c.retry.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Projects.Get(ctx, "p1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}

func TestPathSegment(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "p1", want: "p1"},
		{id: "a/b", want: "a%2Fb"},
		{id: "../stats", want: "..%2Fstats"},
		{id: "...", want: "..."},
		{id: "", wantErr: true},
		{id: ".", wantErr: true},
		{id: "..", wantErr: true},
	}

	for _, tt := range tests {
		got, err := pathSegment("project id", tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("pathSegment(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("pathSegment(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
