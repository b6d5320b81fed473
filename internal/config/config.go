// Package config loads the CLI configuration from MIKTOS_* environment
// variables.
package config

import (
	"cmp"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/picatz/miktos"
)

// Prefix is the environment variable prefix, e.g. MIKTOS_API_KEY.
const Prefix = "MIKTOS"

// Config is the CLI configuration.
type Config struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL" default:"https://api.miktos.ai/v1"`
	Model   string `envconfig:"MODEL" default:"openai/gpt-4o"`
	Debug   bool   `envconfig:"DEBUG"`

	// Timeout bounds the wait for response headers. Bodies, streamed
	// generations included, are read for as long as the server sends them.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"60s"`

	// RateLimit is the maximum number of requests per second, 0 disables it.
	RateLimit float64 `envconfig:"RATE_LIMIT"`

	// HistoryPath is the pebble directory storing generation history.
	HistoryPath string `envconfig:"HISTORY_PATH"`
}

// DefaultHistoryPath is used when MIKTOS_HISTORY_PATH is not set.
var DefaultHistoryPath = filepath.Join(cmp.Or(os.Getenv("HOME"), os.Getenv("USERPROFILE")), ".miktos-history")

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.HistoryPath == "" {
		c.HistoryPath = DefaultHistoryPath
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("%s_TIMEOUT must be > 0", Prefix)
	}
	if c.RateLimit < 0 {
		return nil, fmt.Errorf("%s_RATE_LIMIT must not be negative", Prefix)
	}
	return &c, nil
}

// ClientOptions translates the configuration into client options.
func (c *Config) ClientOptions() []miktos.ClientOption {
	opts := []miktos.ClientOption{
		miktos.WithBaseURL(c.BaseURL),
		miktos.WithHTTPClient(&http.Client{Transport: miktos.NewResponseHeaderTransport(c.Timeout)}),
		miktos.WithDebugLogging(c.Debug),
	}
	if limiter := miktos.NewRateLimiter(c.RateLimit, 1); limiter != nil {
		opts = append(opts, miktos.WithRateLimiter(limiter))
	}
	return opts
}
