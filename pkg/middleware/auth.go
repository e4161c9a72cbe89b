package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// FunctionKeyHeader carries a shared key for callers without a token, such
// as timers and scripts.
const FunctionKeyHeader = "x-functions-key"

// AuthConfig holds bearer token and function key settings.
type AuthConfig struct {
	Enabled     bool   `toml:"enabled"`
	Issuer      string `toml:"issuer"`
	Audience    string `toml:"audience"`
	FunctionKey string `toml:"function_key"`
}

// AuthEnv maps auth config fields to environment variable names.
type AuthEnv struct {
	Enabled     string
	Issuer      string
	Audience    string
	FunctionKey string
}

// Finalize applies environment variable overrides and validation.
func (c *AuthConfig) Finalize(env *AuthEnv) error {
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields from overlay. Enabled always applies.
func (c *AuthConfig) Merge(overlay *AuthConfig) {
	c.Enabled = overlay.Enabled
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.Audience != "" {
		c.Audience = overlay.Audience
	}
	if overlay.FunctionKey != "" {
		c.FunctionKey = overlay.FunctionKey
	}
}

func (c *AuthConfig) loadEnv(env *AuthEnv) {
	envBool(env.Enabled, &c.Enabled)
	for dst, name := range map[*string]string{
		&c.Issuer:      env.Issuer,
		&c.Audience:    env.Audience,
		&c.FunctionKey: env.FunctionKey,
	} {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *AuthConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Issuer == "" && c.FunctionKey == "" {
		return fmt.Errorf("issuer or function_key required when auth is enabled")
	}
	if c.Issuer != "" && c.Audience == "" {
		return fmt.Errorf("audience required with issuer")
	}
	return nil
}

// TokenVerifier checks a raw bearer token. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// NewVerifier discovers the issuer and returns a verifier for tokens issued to
// cfg.Audience. It returns nil when no issuer is configured.
func NewVerifier(ctx context.Context, cfg *AuthConfig) (TokenVerifier, error) {
	if cfg.Issuer == "" {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", cfg.Issuer, err)
	}
	return provider.Verifier(&oidc.Config{ClientID: cfg.Audience}), nil
}

// Auth returns middleware that admits requests carrying the configured
// function key or a bearer token accepted by verifier. Passes through when
// auth is disabled.
func Auth(cfg *AuthConfig, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get(FunctionKeyHeader); key != "" && cfg.FunctionKey != "" {
				if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.FunctionKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if raw, ok := bearerToken(r); ok && verifier != nil {
				token, err := verifier.Verify(r.Context(), raw)
				if err == nil {
					logger.Debug("token accepted", "subject", token.Subject)
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn("token rejected", "error", err)
			}

			unauthorized(w)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
