package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config collects every tunable of the server process.
type Config struct {
	Database *DatabaseConfig `json:"database"`
	HTTP     *HTTPConfig     `json:"http"`
	Director *DirectorConfig `json:"director"`
	Auth     *AuthConfig     `json:"auth"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	HealthPort   int           `json:"health_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DirectorConfig points at the content-generation endpoint. An empty APIKey
// selects the scripted generator instead.
type DirectorConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig configures bearer-token verification for protected actions.
// An empty secret disables verification.
type AuthConfig struct {
	Secret string `json:"secret"`
	Issuer string `json:"issuer"`
}

// DefaultConfig returns settings suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path: "./ensemble.db",
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			HealthPort:   8081,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Director: &DirectorConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-3.5-turbo",
			Timeout: 30 * time.Second,
		},
		Auth: &AuthConfig{},
	}
}

// LoadFromEnv returns the defaults with ENSEMBLE_* environment overrides
// applied.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("ENSEMBLE_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("ENSEMBLE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if port := os.Getenv("ENSEMBLE_HEALTH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.HealthPort = p
		}
	}
	if path := os.Getenv("ENSEMBLE_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}
	if url := os.Getenv("ENSEMBLE_DIRECTOR_URL"); url != "" {
		config.Director.BaseURL = url
	}
	if key := os.Getenv("ENSEMBLE_DIRECTOR_API_KEY"); key != "" {
		config.Director.APIKey = key
	}
	if model := os.Getenv("ENSEMBLE_DIRECTOR_MODEL"); model != "" {
		config.Director.Model = model
	}
	if secret := os.Getenv("ENSEMBLE_AUTH_SECRET"); secret != "" {
		config.Auth.Secret = secret
	}
	if issuer := os.Getenv("ENSEMBLE_AUTH_ISSUER"); issuer != "" {
		config.Auth.Issuer = issuer
	}

	return config
}

// LoadFromFile reads a JSON config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.HealthPort <= 0 || c.HTTP.HealthPort > 65535 {
		return fmt.Errorf("health port must be between 1 and 65535")
	}
	if c.HTTP.HealthPort == c.HTTP.Port {
		return fmt.Errorf("health port must differ from HTTP port")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.Director == nil {
		return fmt.Errorf("director configuration is required")
	}
	if c.Director.APIKey != "" {
		if c.Director.BaseURL == "" {
			return fmt.Errorf("director base URL cannot be empty")
		}
		if c.Director.Model == "" {
			return fmt.Errorf("director model cannot be empty")
		}
		if c.Director.Timeout <= 0 {
			return fmt.Errorf("director timeout must be positive")
		}
	}
	return nil
}
