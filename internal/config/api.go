package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/postmottak/pkg/formatting"
	"github.com/JaimeStill/postmottak/pkg/middleware"
	"github.com/JaimeStill/postmottak/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "POSTMOTTAK_CORS_ENABLED",
	Origins:          "POSTMOTTAK_CORS_ORIGINS",
	AllowedMethods:   "POSTMOTTAK_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "POSTMOTTAK_CORS_ALLOWED_HEADERS",
	AllowCredentials: "POSTMOTTAK_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "POSTMOTTAK_CORS_MAX_AGE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:     "POSTMOTTAK_AUTH_ENABLED",
	Issuer:      "POSTMOTTAK_AUTH_ISSUER",
	Audience:    "POSTMOTTAK_AUTH_AUDIENCE",
	FunctionKey: "POSTMOTTAK_AUTH_FUNCTION_KEY",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "POSTMOTTAK_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "POSTMOTTAK_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, auth, and pagination settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Auth        middleware.AuthConfig `toml:"auth"`
	Pagination  pagination.Config     `toml:"pagination"`
}

// MaxBodySizeBytes bounds JSON request bodies.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil {
		return 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS, auth, and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Auth.Merge(&overlay.Auth)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("POSTMOTTAK_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("POSTMOTTAK_API_MAX_BODY_SIZE"); v != "" {
		c.MaxBodySize = v
	}
}
