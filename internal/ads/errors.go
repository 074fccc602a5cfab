package ads

import (
	"errors"
	"fmt"
)

// Common errors returned by the ADS client.
var (
	// ErrAuthError indicates a missing or rejected API token.
	ErrAuthError = errors.New("ADS authentication error")

	// ErrRateLimited indicates the daily or per-second quota has been exceeded.
	ErrRateLimited = errors.New("ADS rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with ADS")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from ADS")
)

// APIError represents a non-success HTTP response from the ADS API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ADS API error (status %d, %s): %s", e.StatusCode, e.Endpoint, e.Message)
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
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
