package xrplsale

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const modulePath = "github.com/xrplsale/xrplsale-go"

// Client holds configuration needed to call the XRPL.Sale API.
// Use [New] to create a new client. A Client is safe for concurrent use.
type Client struct {
	cfg     Config
	baseURL *url.URL

	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger

	retry   RetryPolicy
	limiter *rateLimiter
	auth    *Auth

	retryAfterMu sync.Mutex
	retryAfter   time.Time

	Projects    *ProjectsService
	Investments *InvestmentsService
	Analytics   *AnalyticsService
	Webhooks    *WebhooksService
}

// ClientOption configures collaborators of a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. Its Timeout is left untouched.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets a custom User-Agent header for API requests.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger sets the logger. Without it, Config.Debug decides between a debug
// text logger on stderr and a discarding one.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSigner enables automatic wallet re-authentication when the session token expires.
func WithSigner(signer Signer) ClientOption {
	return func(c *Client) {
		c.auth.signer = signer
	}
}

// WithJWTParser configures how session tokens are parsed for their expiry.
// keyFunc may be nil to read claims without verifying the signature.
func WithJWTParser(parser *jwt.Parser, keyFunc jwt.Keyfunc) ClientOption {
	return func(c *Client) {
		c.auth.parser = parser
		c.auth.keyFunc = keyFunc
	}
}

// WithRateLimit enables a client-side limit of perMinute requests with the given burst.
func WithRateLimit(perMinute float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = newRateLimiter(perMinute, burst)
	}
}

// WithRetryHook registers a callback invoked before each retry wait.
func WithRetryHook(hook func(RetryState, time.Duration)) ClientOption {
	return func(c *Client) {
		c.retry.OnRetry = hook
	}
}

// New validates cfg and creates a client. The returned Client's configuration is fixed.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	baseURL, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: newRetryPolicy(cfg),
	}
	c.auth = newAuth(c)

	for _, opt := range opts {
		opt(c)
	}

	if c.userAgent == "" {
		c.userAgent = userAgent()
	}
	if c.logger == nil {
		c.logger = defaultLogger(cfg.Debug)
	}
	c.logger = c.logger.With("component", "xrplsale")

	c.Projects = &ProjectsService{client: c}
	c.Investments = &InvestmentsService{client: c}
	c.Analytics = &AnalyticsService{client: c}
	c.Webhooks = &WebhooksService{client: c}

	return c, nil
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	cfg := c.cfg
	cfg.RetryableStatuses = append([]int(nil), c.cfg.RetryableStatuses...)
	return cfg
}

// BaseURL returns the API root every request path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Auth returns the wallet authentication manager shared by all services.
func (c *Client) Auth() *Auth {
	return c.auth
}

// WebhookVerifier returns a verifier bound to Config.WebhookSecret.
func (c *Client) WebhookVerifier() (*WebhookVerifier, error) {
	return NewWebhookVerifier(c.cfg.WebhookSecret)
}

// String keeps credentials out of formatted output.
func (c *Client) String() string {
	return fmt.Sprintf("xrplsale.Client{baseURL:%s apiKey:<REDACTED>}", c.baseURL)
}

// GoString implements fmt.GoStringer with the same redaction as String.
func (c *Client) GoString() string {
	return c.String()
}

func defaultLogger(debug bool) *slog.Logger {
	if !debug {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// version returns the module version of the xrplsale package.
// It returns "devel" if built without module version information.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Version == "(devel)" {
				return "devel"
			}

			return dep.Version
		}
	}

	if info.Main.Path == modulePath && info.Main.Version != "(devel)" && info.Main.Version != "" {
		return info.Main.Version
	}

	return "devel"
}

// userAgent returns the default User-Agent string for this package.
func userAgent() string {
	return fmt.Sprintf("xrplsale-go/%s (%s; %s/%s)", version(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
