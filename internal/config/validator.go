package config

import (
	"fmt"
	"strings"
)

// Validator performs advisory checks beyond Config.Validate.
// It reports every problem it finds instead of stopping at the first.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateRateLimit validates the per-client request limits
func (v *Validator) ValidateRateLimit(perMinute, maxConcurrent int) error {
	if perMinute < 0 {
		return fmt.Errorf("rate_limit_per_min must be >= 0, got %d", perMinute)
	}
	if maxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be >= 0, got %d", maxConcurrent)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	if cfg.Model.Type == "openai" || cfg.Model.Type == "anthropic" {
		// A custom base URL usually means a compatible gateway with its own key format.
		if cfg.Model.BaseURL == "" {
			if err := v.ValidateAPIKey(cfg.Model.APIKey, cfg.Model.Type); err != nil {
				errs = append(errs, fmt.Errorf("model: %w", err))
			}
		}
		if err := v.ValidateTemperature(cfg.Model.Temperature); err != nil {
			errs = append(errs, fmt.Errorf("model: %w", err))
		}
		if err := v.ValidateMaxTokens(cfg.Model.MaxTokens); err != nil {
			errs = append(errs, fmt.Errorf("model: %w", err))
		}
	}

	if err := v.ValidateRateLimit(cfg.Server.RateLimitPerMin, cfg.Server.MaxConcurrent); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}
