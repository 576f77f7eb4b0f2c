package xrplsale

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProductionURL is the production API endpoint.
	ProductionURL = "https://api.xrpl.sale/v1"
	// TestnetURL is the testnet API endpoint.
	TestnetURL = "https://api-testnet.xrpl.sale/v1"

	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Environment selects the API endpoint.
type Environment string

const (
	Production Environment = "production"
	Testnet    Environment = "testnet"
	// Custom requires Config.BaseURL.
	Custom Environment = "custom"
)

// ParseEnvironment accepts "production"/"prod", "testnet"/"test" and "custom", case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod", "":
		return Production, nil
	case "testnet", "test":
		return Testnet, nil
	case "custom":
		return Custom, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidEnvironment)
	}
}

// URL returns the base URL of a predefined environment.
func (e Environment) URL() string {
	switch e {
	case Testnet:
		return TestnetURL
	case Production, "":
		return ProductionURL
	default:
		return ""
	}
}

// UnmarshalYAML lets config files use any spelling accepted by ParseEnvironment.
func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	env, err := ParseEnvironment(value.Value)
	if err != nil {
		return err
	}
	*e = env
	return nil
}

// Jitter selects how backoff delays are randomised.
type Jitter string

const (
	// JitterNone waits exactly base*2^attempt (capped).
	JitterNone Jitter = "none"
	// JitterFull waits a uniform random duration in [0, base*2^attempt].
	JitterFull Jitter = "full"
	// JitterEqual waits half the backoff plus a random share of the other half.
	JitterEqual Jitter = "equal"
)

// Config holds the recognised client settings. The zero value of every field except
// APIKey falls back to a default in New.
type Config struct {
	APIKey      string      `yaml:"api_key"`
	Environment Environment `yaml:"environment"`
	// BaseURL overrides the environment URL. Required for the Custom environment.
	BaseURL string `yaml:"base_url"`

	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is the number of retries after the first attempt. Zero selects the default;
	// NoRetries disables retrying. In a YAML file or XRPLSALE_MAX_RETRIES an explicit 0
	// disables retrying as well.
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	Jitter         Jitter        `yaml:"jitter"`
	// RetryableStatuses are retried in addition to 429 and 5xx.
	RetryableStatuses []int `yaml:"retryable_statuses"`

	WebhookSecret string `yaml:"webhook_secret"`
	Debug         bool   `yaml:"debug"`
}

// NoRetries is the MaxRetries value that sends every request exactly once.
const NoRetries = -1

// withDefaults fills unset fields. Negative MaxRetries disables retries.
func (c Config) withDefaults() Config {
	if c.Environment == "" {
		c.Environment = Production
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	} else if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.Jitter == "" {
		c.Jitter = JitterNone
	}
	c.RetryableStatuses = append([]int(nil), c.RetryableStatuses...)
	return c
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, errors.New("api key is required"))
	}

	switch c.Environment {
	case Production, Testnet, "":
	case Custom:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("custom environment requires a base url"))
		}
	default:
		errs = append(errs, fmt.Errorf("%q: %w", c.Environment, ErrInvalidEnvironment))
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid base url %q", c.BaseURL))
		}
	}

	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if c.RetryBaseDelay > 0 && c.RetryMaxDelay > 0 && c.RetryMaxDelay < c.RetryBaseDelay {
		errs = append(errs, errors.New("retry max delay is below the base delay"))
	}

	switch c.Jitter {
	case "", JitterNone, JitterFull, JitterEqual:
	default:
		errs = append(errs, fmt.Errorf("unknown jitter %q", c.Jitter))
	}

	for _, code := range c.RetryableStatuses {
		if code < 400 || code > 599 {
			errs = append(errs, fmt.Errorf("retryable status %d is not an error status", code))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
}

// baseURL resolves the endpoint with a trailing slash so relative paths join under it.
func (c Config) baseURL() (*url.URL, error) {
	raw := c.BaseURL
	if raw == "" {
		raw = c.Environment.URL()
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %w", ErrConfiguration, err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u, nil
}

// Environment variable names read by ConfigFromEnv.
const (
	EnvAPIKey        = "XRPLSALE_API_KEY"
	EnvEnvironment   = "XRPLSALE_ENVIRONMENT"
	EnvBaseURL       = "XRPLSALE_BASE_URL"
	EnvTimeout       = "XRPLSALE_TIMEOUT"
	EnvMaxRetries    = "XRPLSALE_MAX_RETRIES"
	EnvRetryDelay    = "XRPLSALE_RETRY_DELAY"
	EnvWebhookSecret = "XRPLSALE_WEBHOOK_SECRET"
	EnvDebug         = "XRPLSALE_DEBUG"
)

// ConfigFromEnv builds a Config from XRPLSALE_* variables. Any envFiles are loaded first
// without overriding variables already set; with no arguments ".env" is tried.
func ConfigFromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("loading env file: %w", err)
		}
	}

	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfigFile reads a YAML config file. XRPLSALE_* variables override file values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	// A written max_retries: 0 means no retries, not the default.
	var explicit struct {
		MaxRetries *int `yaml:"max_retries"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.MaxRetries != nil && *explicit.MaxRetries == 0 {
		cfg.MaxRetries = NoRetries
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		env, err := ParseEnvironment(v)
		if err != nil {
			return err
		}
		cfg.Environment = env
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
		if cfg.Environment == "" {
			cfg.Environment = Custom
		}
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxRetries, err)
		}
		if n == 0 {
			n = NoRetries
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv(EnvRetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRetryDelay, err)
		}
		cfg.RetryBaseDelay = d
	}
	if v := os.Getenv(EnvWebhookSecret); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}

	return nil
}
