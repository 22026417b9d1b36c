package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that feed them.
// The first variable listed wins when several are set.
var envBindings = map[string][]string{
	"app.name":                  {"APP_NAME"},
	"app.environment":           {"ENV"},
	"app.release":               {"APP_RELEASE"},
	"relay.port":                {"PORT"},
	"relay.upstream_url":        {"SEEDREAM_API_URL"},
	"relay.api_key":             {"SEEDREAM_API_KEY"},
	"relay.allowed_origins":     {"ALLOWED_ORIGINS"},
	"relay.user_agent":          {"RELAY_USER_AGENT"},
	"relay.body_limit":          {"RELAY_BODY_LIMIT"},
	"relay.rate_limit":          {"RELAY_RATE_LIMIT"},
	"devproxy.port":             {"DEV_PROXY_PORT"},
	"client.api_key":            {"SEEDREAM_CLIENT_API_KEY", "VITE_SEEDREAM_API_KEY"},
	"client.model_id":           {"SEEDREAM_MODEL_ID", "VITE_SEEDREAM_MODEL_ID"},
	"client.relay_url":          {"SEEDREAM_RELAY_URL", "VITE_SEEDREAM_API_URL"},
	"client.dev_mode":           {"SEEDREAM_DEV_MODE"},
	"client.dev_server_url":     {"SEEDREAM_DEV_SERVER_URL"},
	"client.provider_url":       {"SEEDREAM_PROVIDER_URL"},
	"queue.redis_address":       {"ASYNC_BROKER_ADDRESS"},
	"queue.name":                {"TRYON_QUEUE"},
	"queue.concurrency":         {"WORKER_CONCURRENCY"},
	"kiosk.processing_timeout":  {"KIOSK_PROCESSING_TIMEOUT"},
	"kiosk.result_retention":    {"KIOSK_RESULT_RETENTION"},
	"kiosk.max_retry":           {"KIOSK_MAX_RETRY"},
	"sentry.dsn":                {"SENTRY_DSN"},
	"sentry.environment":        {"SENTRY_ENVIRONMENT", "ENV"},
	"sentry.traces_sample_rate": {"SENTRY_TRACES_SAMPLE_RATE"},
	"logging.level":             {"LOG_LEVEL"},
	"logging.format":            {"LOG_FORMAT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tryonapi")
	v.SetDefault("app.environment", "local")
	v.SetDefault("app.release", "tryonapi@1.0.0")

	v.SetDefault("relay.port", 3001)
	v.SetDefault("relay.upstream_url", DefaultProviderURL)
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("relay.user_agent", DefaultUserAgent)
	v.SetDefault("relay.body_limit", "10M")
	v.SetDefault("relay.rate_limit", 0)

	v.SetDefault("devproxy.port", 3000)

	v.SetDefault("client.api_key", "")
	v.SetDefault("client.model_id", DefaultModelID)
	v.SetDefault("client.relay_url", "")
	v.SetDefault("client.dev_mode", false)
	v.SetDefault("client.dev_server_url", DefaultDevServerURL)
	v.SetDefault("client.provider_url", DefaultProviderURL)

	v.SetDefault("queue.redis_address", "")
	v.SetDefault("queue.name", "generate")
	v.SetDefault("queue.concurrency", 10)

	v.SetDefault("kiosk.processing_timeout", 30*time.Second)
	v.SetDefault("kiosk.result_retention", time.Hour)
	v.SetDefault("kiosk.max_retry", 0)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "local")
	v.SetDefault("sentry.traces_sample_rate", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads .env (if present), an optional config.yaml and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path. Environment
// variables still override file values.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Relay.AllowedOrigins = cleanList(cfg.Relay.AllowedOrigins)
	cfg.Relay.UpstreamURL = strings.TrimSpace(cfg.Relay.UpstreamURL)
	cfg.Client.RelayURL = strings.TrimSpace(cfg.Client.RelayURL)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the struct tags of the whole configuration tree.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
