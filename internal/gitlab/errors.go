package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by the GitLab client.
var (
	// ErrRefNotFound indicates the ref (tag or branch) does not exist.
	ErrRefNotFound = errors.New("ref not found (404)")

	// ErrUnauthorized indicates the access token was rejected.
	ErrUnauthorized = errors.New("GitLab authentication failed")

	// ErrRateLimited indicates the host throttled the request.
	ErrRateLimited = errors.New("GitLab API rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with GitLab")

	// ErrInvalidResponse indicates an unexpected response body.
	ErrInvalidResponse = errors.New("invalid response from GitLab")
)

// APIError represents an unexpected HTTP status from the GitLab API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GitLab API error (status %d) on %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("GitLab API error (status %d) on %s", e.StatusCode, e.Endpoint)
}

// IsNotFound returns true if the error indicates the ref does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrRefNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsAuthError returns true if the error indicates the credential was rejected.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsTransient returns true if retrying the same call may succeed:
// timeouts, network failures, throttling and 5xx responses.
func IsTransient(err error) bool {
	if err == nil || IsNotFound(err) || IsAuthError(err) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetworkError) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}
