package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate checks the loaded configuration, reporting every problem at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	var errs []error
	switch cfg.Backend {
	case BackendLevelDB, BackendBolt:
		if strings.TrimSpace(cfg.DataDir) == "" {
			errs = append(errs, fmt.Errorf("DataDir required for the %s backend", cfg.Backend))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("Backend %q must be %q, %q or %q", cfg.Backend, BackendLevelDB, BackendBolt, BackendMemory))
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		errs = append(errs, fmt.Errorf("RPCAddress required"))
	}
	if cfg.RPC.RateLimitPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rpc.RateLimitPerSecond must not be negative"))
	}
	if cfg.RPC.RateLimitPerSecond > 0 && cfg.RPC.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("rpc.RateLimitBurst must be at least 1 when rate limiting"))
	}
	if cfg.RPC.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("rpc.MaxBodyBytes must not be negative"))
	}
	for _, proxy := range cfg.RPC.TrustedProxies {
		if net.ParseIP(strings.TrimSpace(proxy)) == nil {
			errs = append(errs, fmt.Errorf("rpc.TrustedProxies entry %q is not an IP address", proxy))
		}
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		errs = append(errs, fmt.Errorf("history.Path required when history is enabled"))
	}
	if (cfg.Telemetry.Metrics || cfg.Telemetry.Traces) && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		errs = append(errs, fmt.Errorf("telemetry.Endpoint required when exporting"))
	}
	if err := cfg.Economics.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}
