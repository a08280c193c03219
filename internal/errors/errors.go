package errors

import (
	"errors"
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeStore      = "E200"
	CodeSend       = "E300"
	CodeUnhandled  = "E400"
	CodeRateLimit  = "E500"
)

// Sentinels for errors.Is; any *AppError with the same code matches.
var (
	ErrStoreFailure   = &AppError{Code: CodeStore, Message: "dialogue store failure"}
	ErrSendFailure    = &AppError{Code: CodeSend, Message: "reply delivery failure"}
	ErrUnhandledEvent = &AppError{Code: CodeUnhandled, Message: "event not handled in current state"}
	ErrRateLimited    = &AppError{Code: CodeRateLimit, Message: "rate limit exceeded"}
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	RetryAfter  time.Duration
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// Is matches another AppError by code.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}

	return e.Code != "" && e.Code == other.Code
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Code == code
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewStoreError wraps a dialogue store failure. No reply is sent for the event.
func NewStoreError(cause error) *AppError {
	return &AppError{
		Code:        CodeStore,
		Message:     "dialogue store failure",
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewSendError wraps a reply delivery failure that should not be retried.
func NewSendError(cause error) *AppError {
	return &AppError{
		Code:      CodeSend,
		Message:   "reply delivery failure",
		Severity:  SeverityMedium,
		Retryable: false,
		cause:     cause,
	}
}

// NewTransientSendError wraps a delivery failure worth retrying after retryAfter.
func NewTransientSendError(cause error, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       CodeSend,
		Message:    "reply delivery failure",
		Severity:   SeverityMedium,
		Retryable:  true,
		RetryAfter: retryAfter,
		cause:      cause,
	}
}

func NewUnhandledEventError(state, event string) *AppError {
	return &AppError{
		Code:     CodeUnhandled,
		Message:  fmt.Sprintf("event %s not handled in state %s", event, state),
		Severity: SeverityLow,
	}
}

func NewRateLimitError(retryAfter time.Duration) *AppError {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", seconds),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Severity:    SeverityLow,
		Retryable:   false,
		RetryAfter:  retryAfter,
	}
}
