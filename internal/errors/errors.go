package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrScanTimeout indicates the scan did not resolve within the polling budget.
	// It is terminal: the run gives up rather than retrying.
	ErrScanTimeout = errors.New("scan did not complete within the timeout")

	// ErrArtifactMissing indicates the SBOM generator produced no usable artifact
	ErrArtifactMissing = errors.New("sbom artifact missing")

	// ErrUnauthorized indicates the scan service rejected the API token
	ErrUnauthorized = errors.New("unauthorized")
)

// TransientError wraps an error to mark it as transient (retryable).
// Transport failures (timeouts, refused connections) are transient.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %v", e.Cause)
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a new transient error
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf creates a new transient error with formatting
func NewTransientf(format string, args ...interface{}) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// PermanentError wraps an error to mark it as permanent (not retryable).
// Local precondition failures such as invalid configuration are permanent.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent error: %v", e.Cause)
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// NewPermanent creates a new permanent error
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf creates a new permanent error with formatting
func NewPermanentf(format string, args ...interface{}) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// APIError is the normalized failure of a scan service call. StatusCode is
// zero when no HTTP response was ever received.
type APIError struct {
	StatusCode int    `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api error: %s", e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Is reports 401 responses as ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// RemoteScanError carries the errors the scan service reported for a scan.
type RemoteScanError struct {
	ScanID string
	Errors []string
}

func (e *RemoteScanError) Error() string {
	return fmt.Sprintf("Errors encountered during SBOM scan, %s", strings.Join(e.Errors, ", "))
}

// IsTransient checks if an error is transient using errors.As
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check if explicitly marked as transient
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	// Check if explicitly marked as permanent
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	// A resolved API error already went through the retry budget
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}

	// Default to non-transient for safety (don't retry unknown errors)
	return false
}

// IsPermanent checks if an error is permanent (not retryable)
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// AsAPIError extracts an *APIError from err, if any
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// requestPatterns are failures of building the request itself; retrying
// them can never succeed.
var requestPatterns = []string{
	"unsupported protocol scheme",
	"missing protocol scheme",
	"invalid url",
	"invalid control character in url",
	"invalid method",
}

// ClassifyTransportError classifies a request attempt that produced no HTTP
// response. Cancellation by the caller and malformed requests are permanent,
// everything else (timeouts, refused or reset connections, DNS failures) is
// transient.
func ClassifyTransportError(err error, canceled bool) error {
	if err == nil {
		return nil
	}
	if canceled {
		return NewPermanent(err)
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range requestPatterns {
		if strings.Contains(errStr, pattern) {
			return NewPermanent(err)
		}
	}

	return NewTransient(err)
}
