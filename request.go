package xrplsale

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
)

// maxErrorBodySize bounds how much of an error response is kept in APIError.Message.
const maxErrorBodySize = 64 << 10

// authMode selects the credentials attached to a request.
type authMode int

const (
	// authSession sends the wallet session token when one is held, the API key otherwise.
	authSession authMode = iota
	// authAPIKey always sends the API key. Used by the authentication endpoints themselves.
	authAPIKey
)

// request describes one logical API call. It is sent at most MaxRetries+1 times.
type request struct {
	method string
	path   string
	// params is a url.Values or a struct with `url` tags.
	params any
	body   any
	auth   authMode
	// idempotencyKey is sent as Idempotency-Key so retried creates are applied once.
	idempotencyKey string
}

// encodeParams turns request parameters into query values.
func encodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	default:
		v, err := query.Values(params)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		return v, nil
	}
}

// pathSegment escapes id as a single path segment. Dot segments are rejected because
// reference resolution would turn them into a different endpoint.
func pathSegment(name, id string) (string, error) {
	switch id {
	case "":
		return "", fmt.Errorf("%s is required", name)
	case ".", "..":
		return "", fmt.Errorf("invalid %s %q", name, id)
	}
	return url.PathEscape(id), nil
}

// newRequest creates a new HTTP request.
func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	params url.Values,
	body any,
) (*http.Request, error) {
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	u := c.baseURL.ResolveReference(rel)
	u.RawQuery = params.Encode()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	return req, nil
}

// call sends r with retries and decodes a successful JSON response into v.
// A nil v or an empty body skips decoding.
func (c *Client) call(ctx context.Context, r request, v any) error {
	params, err := encodeParams(r.params)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, r.method, r.path, params, r.body)
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	logger := c.logger.With("method", r.method, "path", req.URL.Path, "request_id", requestID)

	policy := c.retry
	hook := policy.OnRetry
	policy.OnRetry = func(state RetryState, wait time.Duration) {
		logger.Warn("retrying request",
			"attempt", state.Attempt+1,
			"wait", wait,
			"error", state.LastErr,
		)
		if hook != nil {
			hook(state, wait)
		}
	}

	attempt := 0
	err = policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if err := c.rewindBody(req); err != nil {
			return err
		}
		return c.do(ctx, req, r.auth, v, logger.With("attempt", attempt))
	})
	if err != nil {
		logger.Debug("request failed", "attempts", attempt, "error", err)
	}

	return err
}

// do executes a single attempt: it waits out rate limits, resolves credentials,
// sends the request and decodes the response.
func (c *Client) do(ctx context.Context, req *http.Request, mode authMode, v any, logger *slog.Logger) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("local rate limit wait interrupted: %w", err)
	}

	bearer, err := c.authorize(ctx, req, mode)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("http response", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		apiErr := newAPIError(resp, body)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && apiErr.RetryAfter > 0:
			c.holdUntil(time.Now().Add(apiErr.RetryAfter))
		case resp.StatusCode == http.StatusUnauthorized && bearer != "":
			c.auth.expire(bearer)
		}

		return apiErr
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// authorize sets the credential headers for one attempt and returns the bearer token used, if any.
func (c *Client) authorize(ctx context.Context, req *http.Request, mode authMode) (string, error) {
	req.Header.Del("Authorization")
	req.Header.Del("X-API-Key")

	if mode == authSession {
		token, err := c.auth.Token(ctx)
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+token)
			return token, nil
		case !errors.Is(err, ErrNotAuthenticated):
			return "", err
		}
	}

	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: no credentials available", ErrConfiguration)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	return "", nil
}

// rewindBody attempts to reset the request body for a retry.
func (c *Client) rewindBody(req *http.Request) error {
	// If there is no body, there is nothing to rewind.
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}

	// If GetBody is nil, we cannot recreate the reader.
	// This happens with io.Pipe or raw io.Reader inputs.
	if req.GetBody == nil {
		return fmt.Errorf("cannot rewind body: GetBody is nil")
	}

	freshBody, err := req.GetBody()
	if err != nil {
		return err
	}

	req.Body = freshBody
	return nil
}
