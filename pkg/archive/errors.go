package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("archive resource not found")
	ErrEmptyResponse = errors.New("archive returned an empty response")
)

// APIError is the structured error body returned by the archive.
type APIError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data,omitempty"`
	Service    string          `json:"-"`
	Method     string          `json:"-"`
}

func (e *APIError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("archive %s.%s %d: %s", e.Service, e.Method, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("archive %d: %s", e.StatusCode, e.Message)
}

// Is reports a 404 APIError as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.IsNotFound()
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
