// Package routes declares HTTP endpoints as data so each domain handler can
// publish its own table and the module registers them in one place.
package routes

import "net/http"

// Route is one endpoint. Pattern is relative to the enclosing group and may
// use http.ServeMux wildcards.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group nests routes under Prefix. Children inherit the accumulated prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Patterns returns the ServeMux patterns of every route in g, depth first.
func (g Group) Patterns() []string {
	var out []string
	g.walk("", func(pattern string, _ http.HandlerFunc) {
		out = append(out, pattern)
	})
	return out
}

func (g Group) walk(parent string, visit func(string, http.HandlerFunc)) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		visit(r.Method+" "+prefix+r.Pattern, r.Handler)
	}
	for _, child := range g.Children {
		child.walk(prefix, visit)
	}
}

// Register adds every route of groups to mux. ServeMux panics on conflicting
// patterns, so a duplicate route fails at startup.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, g := range groups {
		g.walk("", func(pattern string, h http.HandlerFunc) { mux.HandleFunc(pattern, h) })
	}
}
