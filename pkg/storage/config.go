package storage

import (
	"fmt"
	"os"
)

const (
	ProviderAzure  = "azure"
	ProviderMemory = "memory"
)

// Config selects and configures the blob store.
type Config struct {
	Provider         string `toml:"provider"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
}

type Env struct {
	Provider         string
	ContainerName    string
	ConnectionString string
}

func (c *Config) Finalize(env *Env) error {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.ContainerName == "" {
		c.ContainerName = "postmottak"
	}
	if env != nil {
		for dst, name := range map[*string]string{
			&c.Provider:         env.Provider,
			&c.ContainerName:    env.ContainerName,
			&c.ConnectionString: env.ConnectionString,
		} {
			if v := os.Getenv(name); name != "" && v != "" {
				*dst = v
			}
		}
	}

	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" {
			return fmt.Errorf("connection_string required for provider %q", c.Provider)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown storage provider %q", c.Provider)
	}
	return nil
}

func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
}
