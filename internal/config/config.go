// Package config loads process configuration from environment variables.
// Validation accumulates every missing or malformed knob instead of
// failing on the first one found.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived knob for the service.
type Config struct {
	// HTTP server.
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logging.
	LogLevel  string // debug|info|warn|error
	LogFormat string // json|text

	// Retrieval.
	SearchBudgetMS float64

	// Retention.
	RetentionConfigPath string
	SweepInterval       time.Duration

	// Egress (C9).
	EgressPolicyPath string

	// Blob store side-car (§6).
	BlobStorePath        string
	BlobStoreJanitorSecs int

	// System signals (§6).
	SystemSignalsSource string

	// External-collaborator knobs, loaded and validated but not acted on
	// beyond being passed through to the narrow interfaces in
	// internal/policy (§6 of the expanded spec).
	LimitsFilePath    string
	ModelsFilePath    string
	RoutingPolicyPath string
	EventsBearerToken string
	ChatUpstreamURL   string
	ChatUpstreamModel string

	// Telemetry.
	OTLPEndpoint string
	ServiceName  string
}

// Load reads Config from the environment, accumulating every validation
// error instead of stopping at the first one.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		HTTPAddr:             envStr("INDEXD_HTTP_ADDR", ":8080"),
		ReadTimeout:          collectDuration(&errs, "INDEXD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:         collectDuration(&errs, "INDEXD_WRITE_TIMEOUT", 15*time.Second),
		LogLevel:             envStr("INDEXD_LOG_LEVEL", "info"),
		LogFormat:            envStr("INDEXD_LOG_FORMAT", "json"),
		SearchBudgetMS:       collectFloat(&errs, "INDEXD_SEARCH_BUDGET_MS", 250),
		RetentionConfigPath:  envStr("INDEXD_RETENTION_CONFIG_PATH", ""),
		SweepInterval:        collectDuration(&errs, "INDEXD_SWEEP_INTERVAL", 5*time.Minute),
		EgressPolicyPath:     envStr("INDEXD_EGRESS_POLICY_PATH", ""),
		BlobStorePath:        envStr("INDEXD_BLOBSTORE_PATH", "indexd-blobs.db"),
		BlobStoreJanitorSecs: collectInt(&errs, "INDEXD_BLOBSTORE_JANITOR_SECS", 60),
		SystemSignalsSource:  envStr("INDEXD_SYSSIGNALS_SOURCE", "indexd"),
		LimitsFilePath:       envStr("INDEXD_LIMITS_FILE", ""),
		ModelsFilePath:       envStr("INDEXD_MODELS_FILE", ""),
		RoutingPolicyPath:    envStr("INDEXD_ROUTING_POLICY_FILE", ""),
		EventsBearerToken:    envStr("INDEXD_EVENTS_BEARER_TOKEN", ""),
		ChatUpstreamURL:      envStr("INDEXD_CHAT_UPSTREAM_URL", ""),
		ChatUpstreamModel:    envStr("INDEXD_CHAT_UPSTREAM_MODEL", ""),
		OTLPEndpoint:         envStr("INDEXD_OTLP_ENDPOINT", ""),
		ServiceName:          envStr("INDEXD_SERVICE_NAME", "indexd"),
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks cross-field and range constraints not expressible by a
// single env lookup.
func (c Config) Validate() error {
	var errs []error
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read timeout must be positive"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write timeout must be positive"))
	}
	if c.SearchBudgetMS <= 0 {
		errs = append(errs, fmt.Errorf("search budget ms must be positive"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be json or text", c.LogFormat))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func collectInt(errs *[]error, key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func collectFloat(errs *[]error, key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func collectDuration(errs *[]error, key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
