package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Providers: the primary is mandatory, the secondary optional
	if c.Providers.Gemini.APIKey == "" {
		errs = append(errs, "PROVIDERS_GEMINI_API_KEY is required")
	}
	if c.Providers.OpenAI.APIKey == "" {
		slog.Warn("PROVIDERS_OPENAI_API_KEY is empty; no fallback provider, text analysis uses the primary")
	}

	// Admission limits
	if c.Limits.DailyCallLimit < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_DAILY_CALLS must be positive, got %d", c.Limits.DailyCallLimit))
	}
	if !c.Limits.MonthlyCeiling.IsPositive() {
		errs = append(errs, fmt.Sprintf("LIMITS_MONTHLY_CEILING must be positive, got %s", c.Limits.MonthlyCeiling))
	}
	for name, p := range map[string]ProviderConfig{
		"GEMINI": c.Providers.Gemini,
		"OPENAI": c.Providers.OpenAI,
	} {
		if p.Cost.IsNegative() {
			errs = append(errs, fmt.Sprintf("PROVIDERS_%s_COST must not be negative, got %s", name, p.Cost))
		}
		if p.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("PROVIDERS_%s_TIMEOUT must be positive", name))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
