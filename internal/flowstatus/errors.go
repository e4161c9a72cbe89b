package flowstatus

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/postmottak/pkg/storage"
)

var (
	ErrAlreadySet       = errors.New("archive field already set")
	ErrEmptyValue       = errors.New("archive field value is empty")
	ErrNotFound         = errors.New("flow status not found")
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// MapHTTPStatus maps flow status errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidNamespace) {
		return http.StatusBadRequest
	}
	return storage.MapHTTPStatus(err)
}
