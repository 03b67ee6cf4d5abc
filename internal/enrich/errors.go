package enrich

import (
	"errors"
	"fmt"
)

// Common errors returned by the metadata client.
var (
	// ErrNotFound indicates no matching work exists upstream.
	ErrNotFound = errors.New("not found in metadata source")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("metadata source rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with metadata source")

	// ErrInvalidResponse indicates an unexpected upstream response.
	ErrInvalidResponse = errors.New("invalid response from metadata source")
)

// APIError represents an error response from the metadata API.
type APIError struct {
	StatusCode int
	Message    string
	DOI        string // For context in DOI lookups
}

func (e *APIError) Error() string {
	if e.DOI != "" {
		return fmt.Sprintf("metadata API error (status %d): %s (doi: %s)", e.StatusCode, e.Message, e.DOI)
	}
	return fmt.Sprintf("metadata API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a missing work.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
