package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAPIKey    = errors.New("api key is required")
	ErrEmptyPrompt      = errors.New("prompt is required")
	ErrPromptTooShort   = errors.New("prompt is too short")
	ErrPromptTooLong    = errors.New("prompt is too long")
	ErrDuplicatePrompt  = errors.New("prompt file already exists")
	ErrPromptNotFound   = errors.New("prompt file not found")
	ErrUnknownCategory  = errors.New("unknown prompt category")
	ErrNoPredictions    = errors.New("operation finished without predictions")
	ErrOperationTimeout = errors.New("operation deadline exceeded")
)

// FailureReason classifies why an operation did not fully succeed. Every
// error surfaced by a command maps to exactly one reason.
type FailureReason string

const (
	ReasonConfig        FailureReason = "config"
	ReasonTransient     FailureReason = "transient"
	ReasonPermanent     FailureReason = "permanent"
	ReasonDownload      FailureReason = "download"
	ReasonTimeout       FailureReason = "timeout"
	ReasonCancelled     FailureReason = "cancelled"
	ReasonUnresolvedVar FailureReason = "unresolved_var"
	ReasonDuplicate     FailureReason = "duplicate"
)

// ConfigError marks an invalid or missing configuration or request field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// NewConfigError builds a ConfigError for the named field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProviderError carries an HTTP-level failure from the remote provider.
// Retryable is true for failures that a later attempt may survive.
type ProviderError struct {
	Status    int
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider: status %d: %s", e.Status, e.Message)
	}
	return "provider: " + e.Message
}

// NewProviderError classifies an HTTP status into a retryable or permanent
// provider failure. 429 and every 5xx count as retryable.
func NewProviderError(status int, message string) *ProviderError {
	retryable := status == 429 || status >= 500
	return &ProviderError{Status: status, Message: message, Retryable: retryable}
}

// DownloadError marks an artifact fetch or write that failed after the
// remote operation itself succeeded.
type DownloadError struct {
	Index int
	Cause error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download artifact %d: %v", e.Index, e.Cause)
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// UnresolvedVarsError reports template placeholders that no variable filled.
type UnresolvedVarsError struct {
	Names []string
}

func (e *UnresolvedVarsError) Error() string {
	return "unresolved placeholders: " + strings.Join(e.Names, ", ")
}

// IsRetryable reports whether a retry of the failed call may help.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// ReasonOf maps any error onto the failure taxonomy. Unknown errors are
// treated as permanent so they are never retried blindly.
func ReasonOf(err error) FailureReason {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	case errors.Is(err, ErrOperationTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrDuplicatePrompt):
		return ReasonDuplicate
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ReasonConfig
	}
	var ue *UnresolvedVarsError
	if errors.As(err, &ue) {
		return ReasonUnresolvedVar
	}
	var de *DownloadError
	if errors.As(err, &de) {
		return ReasonDownload
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Retryable {
			return ReasonTransient
		}
		return ReasonPermanent
	}
	switch {
	case errors.Is(err, ErrMissingAPIKey),
		errors.Is(err, ErrEmptyPrompt),
		errors.Is(err, ErrPromptTooShort),
		errors.Is(err, ErrPromptTooLong),
		errors.Is(err, ErrUnknownCategory):
		return ReasonConfig
	case errors.Is(err, ErrPromptNotFound):
		return ReasonConfig
	}
	return ReasonPermanent
}
