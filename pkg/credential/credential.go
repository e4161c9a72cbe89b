// Package credential builds the Azure token credential shared by the Graph
// mail transport and the archive client.
package credential

import (
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Env maps credential fields to environment variable names.
type Env struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Config selects a client secret credential when all three fields are set and
// falls back to the default Azure credential chain otherwise.
type Config struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Finalize applies environment overrides and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.TenantID != "" {
		c.TenantID = overlay.TenantID
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.ClientSecret != "" {
		c.ClientSecret = overlay.ClientSecret
	}
}

// UsesClientSecret reports whether the client secret credential is configured.
func (c *Config) UsesClientSecret() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

func (c *Config) loadEnv(env *Env) {
	if v := os.Getenv(env.TenantID); env.TenantID != "" && v != "" {
		c.TenantID = v
	}
	if v := os.Getenv(env.ClientID); env.ClientID != "" && v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(env.ClientSecret); env.ClientSecret != "" && v != "" {
		c.ClientSecret = v
	}
}

func (c *Config) validate() error {
	if c.ClientSecret != "" && (c.TenantID == "" || c.ClientID == "") {
		return fmt.Errorf("client_secret requires tenant_id and client_id")
	}
	return nil
}

// New creates the token credential described by cfg.
func New(cfg Config) (azcore.TokenCredential, error) {
	if cfg.UsesClientSecret() {
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("client secret credential: %w", err)
		}
		return cred, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default azure credential: %w", err)
	}
	return cred, nil
}
