package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy.
var (
	// ErrPrincipalNotFound indicates an unknown principal id. Treated as a
	// validation failure, never retried.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPolicyNotFound indicates an unknown policy name.
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrEmptyPrompt indicates a request with no prompt content.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrDocumentRejected indicates an attempt to persist a document that
	// failed ingestion screening.
	ErrDocumentRejected = errors.New("document rejected by screening")
)

// ValidationError marks malformed input. Surfaced immediately to the
// caller; never retried and never recorded as a pipeline failure.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation wraps err as a ValidationError for the named field.
func Validation(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is a validation failure, including the
// NotFound variants.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// UpstreamError marks a model-client failure. The pipeline records a
// terminal failed decision and does not retry; retrying a non-idempotent
// generative call risks duplicate side effects.
type UpstreamError struct {
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream timeout: %v", e.Err)
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstreamTimeout reports whether err is an upstream timeout.
func IsUpstreamTimeout(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u) && u.Timeout
}

// IsUpstream reports whether err originated from the model client.
func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

// ConfigError marks a malformed pattern catalogue or policy payload. Fatal
// at startup; never encountered mid-request.
type ConfigError struct {
	Section string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("config: %s: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
