package config

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultGenerationTimeout = 180 * time.Second
	DefaultCommandTimeout    = 30 * time.Second
	DefaultGodotURL          = "ws://localhost:9080"
	DefaultPersonaDirectory  = "./prompts"
)

// providerDefaults are the base URL and model used when the config file
// leaves them empty.
var providerDefaults = map[string]ProviderConfig{
	"openai":     {Model: "gpt-4-turbo"},
	"groq":       {Model: "llama3-70b-8192", BaseURL: "https://api.groq.com/openai/v1"},
	"openrouter": {Model: "anthropic/claude-3-haiku", BaseURL: "https://openrouter.ai/api/v1"},
	"ollama":     {Model: "llama3", BaseURL: "http://localhost:11434"},
	"gemini":     {Model: "gemini-1.5-pro-latest"},
}

// applyEnv overlays environment variables. An API key found in the
// environment enables its provider.
func (c *Config) applyEnv(getenv func(string) string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}

	for name := range providerDefaults {
		prefix := strings.ToUpper(name)
		p := c.Providers[name]
		touched := false
		if v := getenv(prefix + "_API_KEY"); v != "" {
			p.APIKey = v
			p.Enabled = true
			touched = true
		}
		if v := getenv(prefix + "_MODEL"); v != "" {
			p.Model = v
			touched = true
		}
		if v := getenv(prefix + "_BASE_URL"); v != "" {
			p.BaseURL = v
			touched = true
		}
		if touched {
			c.Providers[name] = p
		}
	}

	if v := getenv("GDFORGE_PROVIDER"); v != "" {
		c.DefaultProvider = v
	}
	if v := getenv("GODOT_PATH"); v != "" {
		c.Godot.Executable = v
	}
	if v := getenv("GODOT_URL"); v != "" {
		c.Godot.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "gdforge"
	}

	// Ollama needs no key, so it is always available as the fallback.
	if _, ok := c.Providers["ollama"]; !ok {
		c.Providers["ollama"] = ProviderConfig{}
	}
	for name, p := range c.Providers {
		d, ok := providerDefaults[name]
		if !ok {
			continue
		}
		if p.Model == "" {
			p.Model = d.Model
		}
		if p.BaseURL == "" {
			p.BaseURL = d.BaseURL
		}
		c.Providers[name] = p
	}
	if c.DefaultProvider == "" && !c.anyEnabled() {
		c.DefaultProvider = "ollama"
	}

	if c.Personas.Directory == "" {
		c.Personas.Directory = DefaultPersonaDirectory
	}
	if c.Personas.Analyst == "" {
		c.Personas.Analyst = "game-analyst.md"
	}
	if c.Personas.Architect == "" {
		c.Personas.Architect = "game-architect.md"
	}
	if c.Personas.Developer == "" {
		c.Personas.Developer = "godot-developer.md"
	}

	if c.Godot.URL == "" {
		c.Godot.URL = DefaultGodotURL
	}
	if c.Godot.Executable == "" {
		c.Godot.Executable = "godot"
	}

	if c.Timeouts.Generation == 0 {
		c.Timeouts.Generation = Duration(DefaultGenerationTimeout)
	}
	if c.Timeouts.Command == 0 {
		c.Timeouts.Command = Duration(DefaultCommandTimeout)
	}

	if c.Journal.Path == "" {
		c.Journal.Path = ":memory:"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) anyEnabled() bool {
	for _, p := range c.Providers {
		if p.Enabled {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]ProviderConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
