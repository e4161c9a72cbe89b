// Package module mounts self-contained HTTP surfaces under single-segment
// prefixes. Each module owns its middleware stack; the Router picks the module
// by first path segment and falls back to a plain ServeMux for probes.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/JaimeStill/postmottak/pkg/middleware"
)

type Module struct {
	prefix string
	inner  http.Handler
	stack  middleware.System

	once    sync.Once
	handler http.Handler
}

// New panics unless prefix is a single segment such as "/api".
func New(prefix string, inner http.Handler) *Module {
	if err := checkPrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{prefix: prefix, inner: inner, stack: middleware.New()}
}

func (m *Module) Prefix() string { return m.prefix }

// Use appends middleware. The stack is assembled on the first request, so
// middleware must be added before the module serves.
func (m *Module) Use(mw func(http.Handler) http.Handler) { m.stack.Use(mw) }

// Handler returns the inner handler wrapped in the module's middleware.
func (m *Module) Handler() http.Handler {
	m.once.Do(func() { m.handler = m.stack.Apply(m.inner) })
	return m.handler
}

// Serve strips the prefix and dispatches. A request for the bare prefix is
// served as "/".
func (m *Module) Serve(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, m.prefix)
	if rest == "" {
		rest = "/"
	}

	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = rest
	r2.URL.RawPath = ""

	m.Handler().ServeHTTP(w, r2)
}

func checkPrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module: empty prefix")
	case prefix[0] != '/':
		return fmt.Errorf("module: prefix %q must start with /", prefix)
	case strings.Contains(prefix[1:], "/"), len(prefix) == 1:
		return fmt.Errorf("module: prefix %q must be a single path segment", prefix)
	}
	return nil
}
