package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches any *ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a missing credential, an invalid setting or
// a missing external tool.
type ConfigurationError struct {
	// Field names the setting or resource at fault, e.g. "api_key".
	Field string
	// Hint tells the user how to fix it.
	Hint string
	Err  error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s", e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError is a shorthand for building a *ConfigurationError.
func NewConfigurationError(field, hint string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Hint: hint, Err: err}
}
