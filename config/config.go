// Package config holds the process configuration for the relay endpoint,
// the relay client, the try-on worker and the development proxy.
package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultProviderURL  = "https://ark.ap-southeast.bytepluses.com/api/v3/images/generations"
	DefaultModelID      = "seedream-4-0-250828"
	DefaultUserAgent    = "Virtual-TryOn-Proxy/1.0"
	DefaultDevServerURL = "http://localhost:3000"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Relay    RelayConfig    `mapstructure:"relay"`
	DevProxy DevProxyConfig `mapstructure:"devproxy"`
	Client   ClientConfig   `mapstructure:"client"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Kiosk    KioskConfig    `mapstructure:"kiosk"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

// RelayConfig is consumed by the relay endpoint (cmd/api).
type RelayConfig struct {
	Port           int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	UpstreamURL    string   `mapstructure:"upstream_url" validate:"required,url"`
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	UserAgent      string   `mapstructure:"user_agent" validate:"required"`
	BodyLimit      string   `mapstructure:"body_limit" validate:"required"`
	// requests per second per client IP, 0 disables the limiter
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`
}

// Address returns the listen address for the relay endpoint.
func (r RelayConfig) Address() string {
	return fmt.Sprintf(":%d", r.Port)
}

// DevProxyConfig is consumed by the development forwarding server (cmd/devproxy).
type DevProxyConfig struct {
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

func (d DevProxyConfig) Address() string {
	return fmt.Sprintf(":%d", d.Port)
}

// ClientConfig is consumed by the relay client (package tryon).
type ClientConfig struct {
	APIKey       string `mapstructure:"api_key"`
	ModelID      string `mapstructure:"model_id" validate:"required"`
	RelayURL     string `mapstructure:"relay_url" validate:"omitempty,url"`
	DevMode      bool   `mapstructure:"dev_mode"`
	DevServerURL string `mapstructure:"dev_server_url" validate:"omitempty,url"`
	ProviderURL  string `mapstructure:"provider_url" validate:"required,url"`
}

// QueueConfig configures the asynq broker used for try-on jobs.
type QueueConfig struct {
	RedisAddress string `mapstructure:"redis_address"`
	Name         string `mapstructure:"name" validate:"required"`
	Concurrency  int    `mapstructure:"concurrency" validate:"min=1"`
}

// Enabled reports whether a broker address was configured.
func (q QueueConfig) Enabled() bool {
	return q.RedisAddress != ""
}

type KioskConfig struct {
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout" validate:"required"`
	ResultRetention   time.Duration `mapstructure:"result_retention" validate:"required"`
	MaxRetry          int           `mapstructure:"max_retry" validate:"min=0"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"min=0,max=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// UpstreamOrigin splits the upstream URL into scheme+host and path, used by
// the development forwarding rule.
func (r RelayConfig) UpstreamOrigin() (*url.URL, string, error) {
	u, err := url.Parse(r.UpstreamURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid upstream url %q: %w", r.UpstreamURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, "", fmt.Errorf("upstream url %q must be absolute", r.UpstreamURL)
	}
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return origin, u.Path, nil
}
