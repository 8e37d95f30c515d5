package providers

import "errors"

var (
	// ErrRateLimited signals a provider quota rejection (HTTP 403/429).
	// Retryable with backoff.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrTransient signals a provider-side fault (HTTP 5xx, network error).
	// Retryable with backoff.
	ErrTransient = errors.New("transient provider error")

	// ErrInvalidConfiguration signals missing or malformed provider
	// settings. Not retryable.
	ErrInvalidConfiguration = errors.New("invalid provider configuration")
)
