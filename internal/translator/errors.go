package translator

import (
	"errors"
	"fmt"
)

// Precondition failures on the synchronous translate path. Each maps to a
// distinct HTTP status in the API layer.
var (
	ErrFeatureDisabled = errors.New("translation is disabled")
	ErrAuthRequired    = errors.New("authentication required for translation")
	ErrRateLimited     = errors.New("translation rate limit exceeded")
	ErrPostNotFound    = errors.New("post not found")
	ErrForbidden       = errors.New("post is not visible to the viewer")
	ErrContentTooLong  = errors.New("post exceeds the configured translation length limit")
	ErrUnknownProvider = errors.New("translation provider is not registered")
)

// ProviderErrorKind classifies external provider failures.
type ProviderErrorKind string

const (
	// ProviderUnavailable covers network and authentication failures.
	ProviderUnavailable ProviderErrorKind = "unavailable"
	// ProviderQuotaExceeded covers quota and throttling responses.
	ProviderQuotaExceeded ProviderErrorKind = "quota_exceeded"
	// ProviderBadResponse covers malformed or empty payloads.
	ProviderBadResponse ProviderErrorKind = "bad_response"
)

// ProviderError is a failure reported by one translation provider.
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %s (%s): %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %s (%s): %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AsProviderError unwraps err into a *ProviderError when possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}
