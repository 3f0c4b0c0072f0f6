package types

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for result validation
var (
	ErrInvalidNoteID   = errors.New("invalid note ID")
	ErrInvalidScore    = errors.New("score out of range")
	ErrSelfLink        = errors.New("linked context references its own note")
	ErrLinkedRelevance = errors.New("linked relevance exceeds parent score")
)

// Provider error classes. Callers match them with errors.Is.
var (
	// ErrAuth means the provider rejected the credentials. Not retryable.
	ErrAuth = errors.New("provider authentication failed")
	// ErrRateLimited means the provider throttled the request. Retryable.
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrProviderUnavailable covers transport failures and 5xx responses.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ProviderError carries the HTTP status and classification of a failed
// provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration // Zero when the provider sent no hint
	Message    string
	Kind       error // One of ErrAuth, ErrRateLimited, ErrProviderUnavailable or nil
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap exposes the classification to errors.Is.
func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// ClassifyStatus maps an HTTP status code to a provider error class.
func ClassifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrProviderUnavailable
	default:
		return nil
	}
}

// IsRetryable reports whether err is worth retrying after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}
