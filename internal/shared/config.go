package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Translator TranslatorConfig `toml:"translator"`
	Jobs       JobsConfig       `toml:"jobs"`
	Server     ServerConfig     `toml:"server"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// TranslatorConfig contains translation provider settings.
//
// The provider is any OpenAI-compatible chat completions endpoint. When
// OAuthTokenURL is set, requests authenticate via the OAuth2 client
// credentials flow instead of the static API key.
type TranslatorConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries"`
	RequestsPerSec    float64 `toml:"requests_per_sec"`
	OAuthClientID     string  `toml:"oauth_client_id"`
	OAuthClientSecret string  `toml:"oauth_client_secret"`
	OAuthTokenURL     string  `toml:"oauth_token_url"`
	HeadersPath       string  `toml:"headers_path"`
}

// Timeout returns the per-request timeout.
func (c TranslatorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// JobsConfig contains coordinator and worker settings.
type JobsConfig struct {
	ChunkSize          int `toml:"chunk_size"`
	MaxConcurrent      int `toml:"max_concurrent"`
	TimeoutMinutes     int `toml:"timeout_minutes"`
	WorkerRetries      int `toml:"worker_retries"`
	CoordinatorRetries int `toml:"coordinator_retries"`
}

// Timeout returns the await-completion deadline for one job.
func (c JobsConfig) Timeout() time.Duration {
	if c.TimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
