package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// fallbackAPIKeyEnv is the variable the OpenAI tooling reads by default.
const fallbackAPIKeyEnv = "OPENAI_API_KEY"

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Mood    MoodConfig
	Log     LogConfig
	MCP     MCPConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LLMConfig struct {
	BaseURL      string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
	SystemPrompt string
	Referer      string
	Title        string
	APIKey       string
}

type StorageConfig struct {
	Backend    string
	DSN        string
	MaxRecords int
}

type MoodConfig struct {
	Window time.Duration
}

type LogConfig struct {
	Level string
}

type MCPConfig struct {
	Enabled bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4",
			MaxTokens:    200,
			Timeout:      30 * time.Second,
			SystemPrompt: "You are a helpful and engaging AI chatbot.",
		},
		Storage: StorageConfig{
			Backend: "memory",
			DSN:     ":memory:",
		},
		Mood: MoodConfig{
			Window: 10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from, in increasing precedence: built-in
// defaults, the YAML file at $XDG_CONFIG_HOME/moodrelay/config.yaml, a .env
// file in the working directory and MOODRELAY_* environment variables.
//
// The API key is a secret and never read from the YAML file. It comes from
// MOODRELAY_OPENAI_API_KEY, then OPENAI_API_KEY, then the platform secret
// store. A missing key is not an error here; see Config.RequireAPIKey.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), newSecretStore(), ".env")
}

func loadWith(b ConfigBackend, secrets secretStore, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	// Variables already present in the environment win over the .env file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(fallbackAPIKeyEnv)
	}
	if cfg.LLM.APIKey == "" {
		if key, err := secrets.Get(); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid storage.backend %q: want memory or sqlite", c.Storage.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Storage.MaxRecords < 0 {
		return fmt.Errorf("invalid storage.max_records %d: must not be negative", c.Storage.MaxRecords)
	}
	return nil
}

// RequireAPIKey reports a descriptive error when no API key was found.
func (c Config) RequireAPIKey() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	return fmt.Errorf("missing required config: OpenAI API key. "+
		"Set it via environment variable MOODRELAY_OPENAI_API_KEY, %s or %s", fallbackAPIKeyEnv, newSecretStore().Location())
}
