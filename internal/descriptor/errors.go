package descriptor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMode indicates the build mode is not development or production
	ErrInvalidMode = errors.New("invalid build mode")
	// ErrEntryNotFound indicates the entry module does not exist on disk
	ErrEntryNotFound = errors.New("entry module not found")
	// ErrUnresolvablePath indicates a path could not be resolved to an absolute path
	ErrUnresolvablePath = errors.New("path cannot be resolved")
	// ErrInvalidFilename indicates the output filename is empty or escapes the output directory
	ErrInvalidFilename = errors.New("invalid output filename")
	// ErrUnsafeClean indicates a clean output directory would remove the entry module
	ErrUnsafeClean = errors.New("output directory contains the entry module and clean is enabled")
	// ErrInvalidPattern indicates a rule test pattern is empty or does not compile
	ErrInvalidPattern = errors.New("invalid rule pattern")
	// ErrEmptyChain indicates a rule has no transform steps
	ErrEmptyChain = errors.New("rule has no transform steps")
	// ErrUnknownStep indicates a rule references a step identifier missing from the catalog
	ErrUnknownStep = errors.New("unknown transform step")
	// ErrChainMismatch indicates adjacent steps disagree on the asset kind they exchange
	ErrChainMismatch = errors.New("transform chain is not composable")
	// ErrUnknownField indicates a descriptor key that maps to no option
	ErrUnknownField = errors.New("unknown field")
	// ErrUnsupportedFormat indicates a descriptor file extension that cannot be read or written
	ErrUnsupportedFormat = errors.New("unsupported descriptor format")
)

// ConfigError ties a validation failure to the descriptor field that caused it.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func fieldError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}
