package module

import (
	"net/http"
	"strings"
)

type Router struct {
	modules map[string]*Module
	native  *http.ServeMux
}

func NewRouter() *Router {
	return &Router{modules: map[string]*Module{}, native: http.NewServeMux()}
}

// HandleNative registers pattern on the fallback mux.
func (r *Router) HandleNative(pattern string, h http.HandlerFunc) {
	r.native.HandleFunc(pattern, h)
}

func (r *Router) Mount(m *Module) { r.modules[m.prefix] = m }

// ServeHTTP trims one trailing slash, then routes by the first path segment.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if p := req.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		req.URL.Path = strings.TrimSuffix(p, "/")
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if m, ok := r.modules["/"+segment]; ok {
		m.Serve(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}
