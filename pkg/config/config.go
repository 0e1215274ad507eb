package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	App             AppConfig                 `json:"app"`
	DefaultProvider string                    `json:"default_provider"`
	Providers       map[string]ProviderConfig `json:"providers"`
	Personas        PersonaConfig             `json:"personas"`
	Godot           GodotConfig               `json:"godot"`
	Timeouts        TimeoutConfig             `json:"timeouts"`
	Policy          PolicyConfig              `json:"policy"`
	Journal         JournalConfig             `json:"journal"`
	Gateways        map[string]GatewayConfig  `json:"gateways"`
	Logging         LoggingConfig             `json:"logging"`
}

type AppConfig struct {
	Name string `json:"name"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type PersonaConfig struct {
	Directory string `json:"directory"`
	Analyst   string `json:"analyst"`
	Architect string `json:"architect"`
	Developer string `json:"developer"`
}

type GodotConfig struct {
	URL         string `json:"url"`
	Executable  string `json:"executable"`
	ProjectPath string `json:"project_path"`
}

// TimeoutConfig holds per-call deadlines. Values in the file are Go
// duration strings ("90s", "2m").
type TimeoutConfig struct {
	Generation Duration `json:"generation"`
	Command    Duration `json:"command"`
}

type PolicyConfig struct {
	DeniedCommands  []string `json:"denied_commands"`
	DeniedArguments []string `json:"denied_arguments"`
}

// JournalConfig locates the run journal. The default ":memory:" keeps run
// history for the life of the process only. A file path is for debugging
// a session and makes history outlive restarts.
type JournalConfig struct {
	Path string `json:"path"`
}

type GatewayConfig struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	LLMLogPath string `json:"llm_log_path"`
}

// Duration is a time.Duration that decodes from a JSON string.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadConfig reads a JSON config file, applies environment overrides and
// defaults. A missing file is not an error; the defaults plus the
// environment are used instead.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetProvider resolves the named provider, or the default one when name
// is empty. The default is DefaultProvider if set, otherwise the first
// enabled provider in alphabetical order.
func (c *Config) GetProvider(name string) (string, ProviderConfig, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	if name == "" {
		for _, n := range sortedKeys(c.Providers) {
			if c.Providers[n].Enabled {
				name = n
				break
			}
		}
	}
	if name == "" {
		return "", ProviderConfig{}, fmt.Errorf("no enabled provider found in config")
	}
	p, ok := c.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("provider %q is not configured", name)
	}
	return name, p, nil
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Timeouts.Generation <= 0 {
		return fmt.Errorf("timeouts.generation must be positive")
	}
	if c.Timeouts.Command <= 0 {
		return fmt.Errorf("timeouts.command must be positive")
	}
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			return fmt.Errorf("default_provider %q is not configured", c.DefaultProvider)
		}
	}
	if c.Personas.Directory == "" {
		return fmt.Errorf("personas.directory is required")
	}
	return nil
}
