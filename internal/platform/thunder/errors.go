package thunder

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfirmationRequired is returned by Delete when confirm is false.
	// No request is sent.
	ErrConfirmationRequired = errors.New("delete requires explicit confirmation")

	// ErrInstanceNotFound is returned when the instance list has no such id.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrNoAddress is returned by Address when the instance has no IP,
	// typically because it is not running.
	ErrNoAddress = errors.New("instance has no IP address")
)

const maxErrorBody = 512

// APIError is a non-2xx response from the lifecycle API.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, body)
}

// IsNotFound checks if an error is an API 404 or an unknown instance.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrInstanceNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if an error indicates a rejected API token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}
