package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects every problem so they can be reported together.
type Validator struct {
	errors []ValidationError
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// AddError records a problem with field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any problem was recorded.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the recorded problems in the order they were found.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorString returns a numbered list of all errors.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateRequired rejects an empty or whitespace-only value.
func (v *Validator) ValidateRequired(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required setting not set")
	}
}

// ValidateOrigin accepts "*" or an http(s) origin without a path.
func (v *Validator) ValidateOrigin(field, value string) {
	if value == "*" {
		return
	}
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid origin %q: %v", value, err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(field, fmt.Sprintf("origin %q must use http or https scheme", value))
		return
	}
	if parsed.Host == "" {
		v.AddError(field, fmt.Sprintf("origin %q has no host", value))
		return
	}
	if parsed.Path != "" && parsed.Path != "/" {
		v.AddError(field, fmt.Sprintf("origin %q must not contain a path", value))
	}
}

// ValidatePort rejects ports outside 1-65535.
func (v *Validator) ValidatePort(field string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

// ValidatePositive rejects zero and negative values.
func (v *Validator) ValidatePositive(field string, value int64) {
	if value <= 0 {
		v.AddError(field, "must be a positive integer")
	}
}

// ValidateMax rejects values above limit.
func (v *Validator) ValidateMax(field string, value, limit int64) {
	if value > limit {
		v.AddError(field, fmt.Sprintf("must not exceed %d (got: %d)", limit, value))
	}
}

// ValidateEnum rejects a value not listed in allowed.
func (v *Validator) ValidateEnum(field, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}
