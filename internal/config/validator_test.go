package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

// hasFieldError reports whether errs contains an error for field.
func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		field    string
		hasError bool
	}{
		{"min pool zero", func(c *Config) { c.Stage.MinPoolSize = 0 }, "stage.min_pool_size", true},
		{"min pool one", func(c *Config) { c.Stage.MinPoolSize = 1 }, "stage.min_pool_size", false},
		{"max below min", func(c *Config) { c.Stage.MinPoolSize, c.Stage.MaxPoolSize = 4, 3 }, "stage.max_pool_size", true},
		{"max equals min", func(c *Config) { c.Stage.MinPoolSize, c.Stage.MaxPoolSize = 4, 4 }, "stage.max_pool_size", false},
		{"zero delay", func(c *Config) { c.Stage.MaxTolerableDelayMs = 0 }, "stage.max_tolerable_delay_ms", true},
		{"negative interval", func(c *Config) { c.Adjust.IntervalMs = -1 }, "adjust.interval_ms", true},
		{"zero interval uses default", func(c *Config) { c.Adjust.IntervalMs = 0 }, "adjust.interval_ms", false},
		{"valid level", func(c *Config) { c.Logging.Level = "warn" }, "logging.level", false},
		{"upper case level", func(c *Config) { c.Logging.Level = "DEBUG" }, "logging.level", false},
		{"invalid level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level", true},
		{"json format", func(c *Config) { c.Logging.Format = "json" }, "logging.format", false},
		{"invalid format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format", true},
		{"negative rate", func(c *Config) { c.Demo.Rate = -5 }, "demo.rate", true},
		{"negative fail every", func(c *Config) { c.Demo.FailEvery = -1 }, "demo.fail_every", true},
		{"unbounded demo", func(c *Config) { c.Demo.Messages, c.Demo.DurationSec = 0, 0 }, "demo.messages", true},
		{"duration bounded demo", func(c *Config) { c.Demo.Messages, c.Demo.DurationSec = 0, 30 }, "demo.messages", false},
		{"nats disabled ignores subject", func(c *Config) { c.NATS.Subject = "" }, "nats.subject", false},
		{"nats empty subject", func(c *Config) { c.NATS.URL, c.NATS.Subject = "nats://localhost:4222", "" }, "nats.subject", true},
		{"nats subject whitespace", func(c *Config) { c.NATS.URL, c.NATS.Subject = "nats://localhost:4222", "a b" }, "nats.subject", true},
		{"nats reject subject whitespace", func(c *Config) { c.NATS.URL, c.NATS.RejectSubject = "nats://localhost:4222", "x\ty" }, "nats.reject_subject", true},
		{"nats empty reject subject", func(c *Config) { c.NATS.URL, c.NATS.RejectSubject = "nats://localhost:4222", "" }, "nats.reject_subject", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()

			if got := hasFieldError(errs, tt.field); got != tt.hasError {
				t.Errorf("Validate() error for %s = %v, want %v (errors: %v)", tt.field, got, tt.hasError, errs)
			}
		})
	}
}

func TestConfig_Validate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Stage.MinPoolSize = 0
	cfg.Logging.Format = "xml"
	cfg.Demo.WorkMs = -1

	errs := cfg.Validate()
	for _, field := range []string{"stage.min_pool_size", "logging.format", "demo.work_ms"} {
		if !hasFieldError(errs, field) {
			t.Errorf("Validate() missing error for %s: %v", field, errs)
		}
	}
}
