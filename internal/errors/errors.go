package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeMalformedPayload      = "E100"
	CodeNotFound              = "E104"
	CodeStorageUnavailable    = "E200"
	CodeAmbiguousTokenMapping = "E210"
	CodeExternalAPI           = "E300"
	CodeRateLimited           = "E500"
	CodeEligibilityDenied     = "E510"
)

// Sentinels for errors.Is matching. Two AppErrors match when their codes are equal.
var (
	ErrMalformedPayload      = &AppError{Code: CodeMalformedPayload, Message: "malformed payload"}
	ErrNotFound              = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrStorageUnavailable    = &AppError{Code: CodeStorageUnavailable, Message: "storage unavailable"}
	ErrAmbiguousTokenMapping = &AppError{Code: CodeAmbiguousTokenMapping, Message: "ambiguous token mapping"}
	ErrExternalAPI           = &AppError{Code: CodeExternalAPI, Message: "external api error"}
	ErrRateLimited           = &AppError{Code: CodeRateLimited, Message: "rate limited"}
	ErrEligibilityDenied     = &AppError{Code: CodeEligibilityDenied, Message: "eligibility denied"}
)

type AppError struct {
	Code      string
	Message   string
	Severity  Severity
	Retryable bool
	cause     error
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

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}

	t, ok := target.(*AppError)
	if !ok || t == nil {
		return false
	}

	return t.Code == e.Code
}

func NewMalformedPayloadError(msg string) *AppError {
	return &AppError{
		Code:      CodeMalformedPayload,
		Message:   fmt.Sprintf("malformed payload: %s", msg),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:      CodeNotFound,
		Message:   fmt.Sprintf("%s not found", what),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Code:      CodeStorageUnavailable,
		Message:   fmt.Sprintf("storage unavailable during %s", op),
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

func NewAmbiguousTokenError(matches int) *AppError {
	return &AppError{
		Code:      CodeAmbiguousTokenMapping,
		Message:   fmt.Sprintf("token maps to %d registrations", matches),
		Severity:  SeverityCritical,
		Retryable: false,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:      CodeExternalAPI,
		Message:   fmt.Sprintf("external api error: %s", apiName),
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:      CodeRateLimited,
		Message:   fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewEligibilityError(kind string) *AppError {
	return &AppError{
		Code:      CodeEligibilityDenied,
		Message:   fmt.Sprintf("context %q is not eligible", kind),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

// IsAbsorbed reports whether err belongs to the abuse-prevention gates whose
// denials are never surfaced to the caller.
func IsAbsorbed(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		return false
	}

	return appErr.Code == CodeRateLimited || appErr.Code == CodeEligibilityDenied
}
