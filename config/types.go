package config

import (
	"os"
	"strings"
	"time"

	"excelsior/observability/logging"
	"excelsior/observability/otel"
)

// RPC configures the JSON-RPC listener and caller authentication.
type RPC struct {
	JWTSecretEnv       string  `toml:"JWTSecretEnv"`
	JWTIssuer          string  `toml:"JWTIssuer"`
	JWTAudience        string  `toml:"JWTAudience"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	ReadTimeoutSecs    int     `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs   int     `toml:"WriteTimeoutSecs"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes"`
	// TrustedProxies lists the peers whose X-Forwarded-For header is
	// honoured when keying the rate limiter.
	TrustedProxies []string `toml:"TrustedProxies,omitempty"`
}

// JWTSecret reads the HMAC secret from the configured environment variable.
func (r RPC) JWTSecret() []byte {
	return []byte(strings.TrimSpace(os.Getenv(r.JWTSecretEnv)))
}

// ReadTimeout returns the HTTP read timeout.
func (r RPC) ReadTimeout() time.Duration { return time.Duration(r.ReadTimeoutSecs) * time.Second }

// WriteTimeout returns the HTTP write timeout.
func (r RPC) WriteTimeout() time.Duration { return time.Duration(r.WriteTimeoutSecs) * time.Second }

// Telemetry controls the OTLP exporters.
type Telemetry struct {
	Endpoint    string `toml:"Endpoint"`
	Insecure    bool   `toml:"Insecure"`
	Headers     string `toml:"Headers"`
	Environment string `toml:"Environment"`
	Metrics     bool   `toml:"Metrics"`
	Traces      bool   `toml:"Traces"`
}

// OtelConfig converts the section into exporter settings for service.
func (t Telemetry) OtelConfig(service string) otel.Config {
	return otel.Config{
		ServiceName: service,
		Environment: t.Environment,
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
		Headers:     otel.ParseHeaders(t.Headers),
		Metrics:     t.Metrics,
		Traces:      t.Traces,
	}
}

// History configures the committed event index.
type History struct {
	Enabled bool   `toml:"Enabled"`
	Path    string `toml:"Path"`
}

// Log configures the structured logger.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Options converts the section into logger options.
func (l Log) Options() logging.Options {
	return logging.Options{
		Level:      l.Level,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}
