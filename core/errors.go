package core

import (
	"errors"
	"fmt"
)

// ConfigurationErrorKind classifies a rejected run request.
type ConfigurationErrorKind string

const (
	MissingCredential    ConfigurationErrorKind = "MissingCredential"
	UnknownProvider      ConfigurationErrorKind = "UnknownProvider"
	UninitializedSession ConfigurationErrorKind = "UninitializedSession"
	InvalidRequest       ConfigurationErrorKind = "InvalidRequest"
)

// Error kinds reported on error events and summaries.
const (
	KindProviderError       = "ProviderError"
	KindToolResolutionError = "ToolResolutionError"
	KindToolExecutionError  = "ToolExecutionError"
	KindInternal            = "InternalError"
)

// ConfigurationError is returned before a run starts. It is never retried.
type ConfigurationError struct {
	Kind    ConfigurationErrorKind
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any ConfigurationError of the same kind, so the sentinels below
// work with errors.Is regardless of message.
func (e *ConfigurationError) Is(target error) bool {
	var t *ConfigurationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingCredential    = &ConfigurationError{Kind: MissingCredential}
	ErrUnknownProvider      = &ConfigurationError{Kind: UnknownProvider}
	ErrUninitializedSession = &ConfigurationError{Kind: UninitializedSession}
	ErrInvalidRequest       = &ConfigurationError{Kind: InvalidRequest}

	// ErrRunNotFound is returned when cancelling or looking up an unknown run.
	ErrRunNotFound = errors.New("run not found")
	// ErrTooManyRuns is returned when the run pool is saturated.
	ErrTooManyRuns = errors.New("too many concurrent runs")
)

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(kind ConfigurationErrorKind, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failed vendor call. Message carries the vendor's raw
// error text.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a ProviderError.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

// ToolResolutionError is produced when the model asks for a tool that is not
// in the active set.
type ToolResolutionError struct {
	Name string
}

func (e *ToolResolutionError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// ToolExecutionError is produced when rendering or executing a tool fails.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("error: %v", e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ErrorKind maps an error to the kind string used on error events.
func ErrorKind(err error) string {
	var (
		cfgErr  *ConfigurationError
		provErr *ProviderError
		resErr  *ToolResolutionError
		execErr *ToolExecutionError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return string(cfgErr.Kind)
	case errors.As(err, &provErr):
		return KindProviderError
	case errors.As(err, &resErr):
		return KindToolResolutionError
	case errors.As(err, &execErr):
		return KindToolExecutionError
	default:
		return KindInternal
	}
}
