package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind: custom",
		})
	}

	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode),
		})
	}

	// Discovery validation
	if cfg.Discovery.MaxTurns < 1 || cfg.Discovery.MaxTurns > 200 {
		issues = append(issues, ValidationIssue{
			Path:    "discovery.maxTurns",
			Message: fmt.Sprintf("must be 1-200, got %d", cfg.Discovery.MaxTurns),
		})
	}
	if cfg.Discovery.TailWindow < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "discovery.tailWindow",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Discovery.TailWindow),
		})
	}

	// Enrichment validation
	if cfg.Enrichment.Cadence < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "enrichment.cadence",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Enrichment.Cadence),
		})
	}
	if cfg.Enrichment.TimeoutSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "enrichment.timeoutSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Enrichment.TimeoutSeconds),
		})
	}

	// Pricing validation
	if cfg.Pricing.Currency != "" && len(cfg.Pricing.Currency) != 3 {
		issues = append(issues, ValidationIssue{
			Path:    "pricing.currency",
			Message: fmt.Sprintf("must be a 3-letter code, got %q", cfg.Pricing.Currency),
		})
	}

	// Provider validation
	if cfg.Provider.BaseURL != "" &&
		!strings.HasPrefix(cfg.Provider.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Provider.BaseURL, "https://") {
		issues = append(issues, ValidationIssue{
			Path:    "provider.baseUrl",
			Message: fmt.Sprintf("must start with http:// or https://, got %q", cfg.Provider.BaseURL),
		})
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
