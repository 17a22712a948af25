package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "stage.max_pool_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log output formats
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateStage()...)
	errors = append(errors, c.validateAdjust()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateDemo()...)
	errors = append(errors, c.validateNATS()...)

	return errors
}

// validateStage validates the StageDefaults
func (c *Config) validateStage() []ValidationError {
	var errors []ValidationError

	if c.Stage.MinPoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "stage.min_pool_size",
			Value:   c.Stage.MinPoolSize,
			Message: "must be at least 1",
		})
	}

	if c.Stage.MaxPoolSize < c.Stage.MinPoolSize {
		errors = append(errors, ValidationError{
			Field:   "stage.max_pool_size",
			Value:   c.Stage.MaxPoolSize,
			Message: fmt.Sprintf("must be at least min_pool_size (%d)", c.Stage.MinPoolSize),
		})
	}

	if c.Stage.MaxTolerableDelayMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stage.max_tolerable_delay_ms",
			Value:   c.Stage.MaxTolerableDelayMs,
			Message: "must be positive",
		})
	}

	return errors
}

// validateAdjust validates the AdjustConfig
func (c *Config) validateAdjust() []ValidationError {
	var errors []ValidationError

	// Zero selects the adjuster's default interval
	if c.Adjust.IntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "adjust.interval_ms",
			Value:   c.Adjust.IntervalMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}

// validateDemo validates the DemoConfig
func (c *Config) validateDemo() []ValidationError {
	var errors []ValidationError

	nonNegative := []struct {
		field string
		value int
	}{
		{"demo.messages", c.Demo.Messages},
		{"demo.rate", c.Demo.Rate},
		{"demo.work_ms", c.Demo.WorkMs},
		{"demo.fail_every", c.Demo.FailEvery},
		{"demo.duration_sec", c.Demo.DurationSec},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "must be non-negative",
			})
		}
	}

	// An unbounded producer needs something to stop it
	if c.Demo.Messages == 0 && c.Demo.DurationSec == 0 {
		errors = append(errors, ValidationError{
			Field:   "demo.messages",
			Value:   c.Demo.Messages,
			Message: "must be positive when demo.duration_sec is 0",
		})
	}

	return errors
}

// validateNATS validates the NATSConfig
func (c *Config) validateNATS() []ValidationError {
	var errors []ValidationError

	if !c.NATS.Enabled() {
		return errors
	}

	if strings.TrimSpace(c.NATS.Subject) == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.subject",
			Value:   c.NATS.Subject,
			Message: "cannot be empty when nats.url is set",
		})
	}

	for _, f := range []struct{ field, value string }{
		{"nats.subject", c.NATS.Subject},
		{"nats.reject_subject", c.NATS.RejectSubject},
	} {
		if strings.ContainsAny(f.value, " \t\r\n") {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "cannot contain whitespace",
			})
		}
	}

	return errors
}
