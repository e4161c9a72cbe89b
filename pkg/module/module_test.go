package module_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/postmottak/pkg/module"
)

// echo replies with the path the inner handler saw.
func echo(tag string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, tag+":"+r.URL.Path)
	})
}

func TestNewPrefixValidation(t *testing.T) {
	tests := []struct {
		prefix    string
		wantPanic bool
	}{
		{"/api", false},
		{"/v1", false},
		{"", true},
		{"/", true},
		{"api", true},
		{"/api/v1", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			defer func() {
				if got := recover() != nil; got != tt.wantPanic {
					t.Errorf("panic = %v, want %v", got, tt.wantPanic)
				}
			}()
			if m := module.New(tt.prefix, echo("x")); m.Prefix() != tt.prefix {
				t.Errorf("Prefix() = %q", m.Prefix())
			}
		})
	}
}

func TestModuleServe(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	m := module.New("/api", echo("api"))
	m.Use(mark("cors"))
	m.Use(mark("auth"))

	tests := []struct {
		path string
		want string
	}{
		{"/api/flows", "api:/flows"},
		{"/api", "api:/"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		m.Serve(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Body.String() != tt.want {
			t.Errorf("%s: body = %q, want %q", tt.path, rec.Body.String(), tt.want)
		}
	}

	if len(order) != 4 || order[0] != "cors" || order[1] != "auth" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestRouter(t *testing.T) {
	router := module.NewRouter()
	router.Mount(module.New("/api", echo("api")))
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	tests := []struct {
		path string
		want string
		code int
	}{
		{"/api/outcomes", "api:/outcomes", http.StatusOK},
		{"/api/outcomes/", "api:/outcomes", http.StatusOK},
		{"/api", "api:/", http.StatusOK},
		{"/healthz", "ok", http.StatusOK},
		{"/healthz/", "ok", http.StatusOK},
		{"/apix", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.want != "" && rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}
