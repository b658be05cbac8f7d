package slicesync

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeNoConnector means neither the slice nor the registry has a connector.
	ErrCodeNoConnector ConfigErrorCode = "NO_CONNECTOR"

	// ErrCodeDuplicateSlice means two wrapped reducers share a slice name
	// within one registry.
	ErrCodeDuplicateSlice ConfigErrorCode = "DUPLICATE_SLICE"

	// ErrCodeUnknownSlice means a reinit named a slice that is not registered.
	ErrCodeUnknownSlice ConfigErrorCode = "UNKNOWN_SLICE"

	// ErrCodeAlreadyBound means a registry or wrapper is already attached to
	// a different store.
	ErrCodeAlreadyBound ConfigErrorCode = "ALREADY_BOUND"
)

// ConfigError reports misuse that cannot be recovered from at runtime.
type ConfigError struct {
	Code    ConfigErrorCode
	Slice   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Slice != "" {
		return fmt.Sprintf("slicesync: %s: %s (slice=%s)", e.Code, e.Message, e.Slice)
	}
	return fmt.Sprintf("slicesync: %s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is, or wraps, a *ConfigError with one
// of the given codes. With no codes any ConfigError matches.
func IsConfigError(err error, codes ...ConfigErrorCode) bool {
	var ce *ConfigError
	if !errors.As(err, &ce) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if ce.Code == c {
			return true
		}
	}
	return false
}

func errNoConnector(slice string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNoConnector,
		Slice:   slice,
		Message: "no connector provided; set one on the registry or the slice",
	}
}

func errDuplicateSlice(slice string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeDuplicateSlice,
		Slice:   slice,
		Message: "slice name registered twice in one store",
	}
}

func errUnknownSlice(slice string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownSlice,
		Slice:   slice,
		Message: "invalid slice to reinit",
	}
}

func errAlreadyBound(slice, what string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeAlreadyBound,
		Slice:   slice,
		Message: what + " is already attached to another store",
	}
}
