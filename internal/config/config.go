// Package config loads service configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/vasa-labs/vasa/internal/models"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Voice    VoiceConfig    `mapstructure:"voice"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig holds persistence settings. DSN may be a file path
// (SQLite) or a PostgreSQL connection string.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// OpenAIConfig holds LLM completion settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// MemoryConfig holds semantic memory service settings.
type MemoryConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	ChatTimeoutSeconds int    `mapstructure:"chat_timeout_seconds"`
}

// VoiceConfig holds voice vendor settings and the configured agents.
type VoiceConfig struct {
	APIKey        string               `mapstructure:"api_key"`
	BaseURL       string               `mapstructure:"base_url"`
	WebhookSecret string               `mapstructure:"webhook_secret"`
	Agents        []models.AgentConfig `mapstructure:"agents"`
}

// LoadConfig reads configuration from the given file path, layering
// VASA_-prefixed environment variables on top. When no path is given and no
// config file is discovered, env-only configuration is used; an explicitly
// named or discovered file that cannot be read is an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("memory.chat_timeout_seconds", 10)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vasa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vasa")
	}

	v.SetEnvPrefix("VASA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Only a missing file is tolerable; a malformed one must surface.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// DefaultAgent returns the agent matching id, or the first configured agent
// when id is empty, or nil when no agents are configured.
func (c *Config) DefaultAgent(id string) *models.AgentConfig {
	if len(c.Voice.Agents) == 0 {
		return nil
	}
	if id == "" {
		agent := c.Voice.Agents[0]
		return &agent
	}
	for _, a := range c.Voice.Agents {
		if a.ID == id {
			agent := a
			return &agent
		}
	}
	return nil
}
