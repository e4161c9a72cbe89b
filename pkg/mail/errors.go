package mail

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("message not found")
	ErrNoRecipients  = errors.New("recipients cannot be empty")
	ErrInvalidID     = errors.New("invalid message id")
	ErrNotAttachment = errors.New("attachment is not a file attachment")
)

// MapHTTPStatus maps mail errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrNoRecipients) || errors.Is(err, ErrInvalidID) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
