package config

import (
	"fmt"
	"math/big"
	"strings"
)

var knownEnvironments = map[string]bool{"dev": true, "test": true, "staging": true, "prod": true}

// ValidateConfig checks the loaded configuration before it is handed to the
// ledger.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if !knownEnvironments[cfg.Environment] {
		return fmt.Errorf("config: unknown environment %q", cfg.Environment)
	}
	if cfg.Gateway.RequestsPerMinute < 0 || cfg.Gateway.Burst < 0 {
		return fmt.Errorf("config: gateway rate limits must not be negative")
	}
	if index, ok := new(big.Int).SetString(cfg.Gateway.FallbackIndex, 10); !ok || index.Sign() <= 0 {
		return fmt.Errorf("config: gateway FallbackIndex %q must be a positive integer", cfg.Gateway.FallbackIndex)
	}
	if strings.Contains(cfg.Telemetry.Endpoint, "://") {
		return fmt.Errorf("config: telemetry Endpoint %q must be host:port without a scheme", cfg.Telemetry.Endpoint)
	}
	if err := cfg.Leverage.Validate(); err != nil {
		return err
	}
	return nil
}
