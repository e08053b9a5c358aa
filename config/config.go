// Package config loads taskchat settings from defaults, an optional YAML
// file and TASKCHAT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TASKCHAT_SERVER_ADDR.
const EnvPrefix = "TASKCHAT"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// BackendConfig locates the task backend the tools call.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMConfig selects the reasoning provider. An empty Provider is detected
// from the API key environment variables.
type LLMConfig struct {
	Provider         string `mapstructure:"provider" yaml:"provider"`
	Model            string `mapstructure:"model" yaml:"model"`
	APIKey           string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL          string `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens        int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	SystemPromptPath string `mapstructure:"system_prompt_path" yaml:"system_prompt_path"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AuthConfig holds the secret the auth service signs user tokens with.
type AuthConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Providers lists the accepted llm.provider values.
var Providers = []string{"anthropic", "gemini", "openai"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.turn_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "10s")

	// Empty values still need registering so that env overrides reach
	// Unmarshal.
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.system_prompt_path", "")

	v.SetDefault("database.path", "taskchat.db")

	v.SetDefault("auth.secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the configuration. With an empty path, taskchat.yaml is looked
// up in the working directory and its absence is not an error; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The auth service's own variable name is honoured too.
	if err := v.BindEnv("auth.secret", EnvPrefix+"_AUTH_SECRET", "BETTER_AUTH_SECRET"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("taskchat")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("config: server.addr is required")
	case c.Server.TurnTimeout <= 0:
		return fmt.Errorf("config: server.turn_timeout must be positive, got %s", c.Server.TurnTimeout)
	case c.Backend.BaseURL == "":
		return errors.New("config: backend.base_url is required")
	case c.Backend.Timeout <= 0:
		return fmt.Errorf("config: backend.timeout must be positive, got %s", c.Backend.Timeout)
	case c.LLM.MaxTokens < 0:
		return fmt.Errorf("config: llm.max_tokens must not be negative, got %d", c.LLM.MaxTokens)
	case c.Database.Path == "":
		return errors.New("config: database.path is required")
	case c.Auth.Secret == "":
		return errors.New("config: auth.secret is required (TASKCHAT_AUTH_SECRET or BETTER_AUTH_SECRET)")
	}
	if c.LLM.Provider != "" && !isProvider(c.LLM.Provider) {
		return fmt.Errorf("config: unknown llm.provider %q: must be one of %s", c.LLM.Provider, strings.Join(Providers, ", "))
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}

// ZerologLevel parses Level.
func (c LogConfig) ZerologLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// Dump renders the effective configuration as YAML with secrets redacted.
func (c Config) Dump() ([]byte, error) {
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = "<redacted>"
	}
	if c.Auth.Secret != "" {
		c.Auth.Secret = "<redacted>"
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: dump: %w", err)
	}
	return out, nil
}
