package outcomes

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("outcome not found")
	ErrDuplicate     = errors.New("outcome already exists")
	ErrInvalidStatus = errors.New("invalid outcome status")
)

// MapHTTPStatus maps outcome errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
