// Package middleware holds the HTTP middleware the API module stacks in front
// of its handlers: CORS, request logging and caller authentication.
package middleware

import (
	"net/http"
	"slices"
)

// System is an ordered middleware stack. The first middleware added is the
// outermost wrapper.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(h http.Handler) http.Handler
}

type stack []func(http.Handler) http.Handler

func New() System { return &stack{} }

func (s *stack) Use(mw func(http.Handler) http.Handler) { *s = append(*s, mw) }

func (s *stack) Apply(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(*s) {
		h = mw(h)
	}
	return h
}
