package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "poll_interval_ms")
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

// backendNameRegex validates backend names. Names start with a letter
// and may contain letters, digits, hyphen and underscore.
var backendNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBackends()...)
	errors = append(errors, c.validateIntervals()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateBackends validates the enabled backend list
func (c *Config) validateBackends() []ValidationError {
	var errors []ValidationError

	backends := c.EnabledBackends()
	if len(backends) == 0 {
		errors = append(errors, ValidationError{
			Field:   "backends",
			Value:   c.Backends,
			Message: "at least one backend must be enabled",
		})
		return errors
	}

	for _, name := range backends {
		if !backendNameRegex.MatchString(name) {
			errors = append(errors, ValidationError{
				Field:   "backends",
				Value:   name,
				Message: "must start with a letter and contain only letters, digits, hyphen or underscore",
			})
		}
	}

	return errors
}

// validateIntervals validates the timing knobs
func (c *Config) validateIntervals() []ValidationError {
	var errors []ValidationError

	if c.PollIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll_interval_ms",
			Value:   c.PollIntervalMs,
			Message: "must be positive",
		})
	}

	// Sub-100ms polling hammers the filesystem across every watcher
	const minPollIntervalMs = 100
	if c.PollIntervalMs > 0 && c.PollIntervalMs < minPollIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "poll_interval_ms",
			Value:   c.PollIntervalMs,
			Message: fmt.Sprintf("must be at least %d", minPollIntervalMs),
		})
	}

	if c.LockTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lock_timeout_ms",
			Value:   c.LockTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig and log level
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.LogLevel != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.LogLevel)) {
		errors = append(errors, ValidationError{
			Field:   "log_level",
			Value:   c.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
