package config

import (
	"errors"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentProviderName = "POSTMOTTAK_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "POSTMOTTAK_AGENT_BASE_URL"
	EnvAgentModelName    = "POSTMOTTAK_AGENT_MODEL_NAME"
	EnvAgentToken        = "POSTMOTTAK_AGENT_TOKEN"
	EnvAgentDeployment   = "POSTMOTTAK_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "POSTMOTTAK_AGENT_API_VERSION"
	EnvAgentAuthType     = "POSTMOTTAK_AGENT_AUTH_TYPE"
)

// agentOptions maps environment variables to provider option keys.
var agentOptions = map[string]string{
	EnvAgentToken:      "token",
	EnvAgentDeployment: "deployment",
	EnvAgentAPIVersion: "api_version",
	EnvAgentAuthType:   "auth_type",
}

// FinalizeAgent layers the file settings over the go-agents defaults, then
// applies environment overrides. Every Arnt Ivan agent is derived from the
// result, so a missing provider fails startup.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	merged := gaconfig.DefaultAgentConfig()
	merged.Merge(c)
	*c = merged

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = map[string]any{}
	}

	for dst, name := range map[*string]string{
		&c.Provider.Name:    EnvAgentProviderName,
		&c.Provider.BaseURL: EnvAgentBaseURL,
		&c.Model.Name:       EnvAgentModelName,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	for name, key := range agentOptions {
		if v := os.Getenv(name); v != "" {
			c.Provider.Options[key] = v
		}
	}

	switch {
	case c.Name == "":
		return errors.New("name required")
	case c.Provider.Name == "":
		return errors.New("provider name required")
	}
	return nil
}
