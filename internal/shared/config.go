package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Platform PlatformConfig `toml:"platform"`
	Clients  ClientsConfig  `toml:"clients"`
	Auth     AuthConfig     `toml:"auth"`
	Retry    RetryConfig    `toml:"retry"`
	Database DatabaseConfig `toml:"database"`
}

// PlatformConfig contains the base URLs of the platform services.
type PlatformConfig struct {
	AccountURL string `toml:"account_url"`
	SocialURL  string `toml:"social_url"`
	QueryURL   string `toml:"query_url"`
	WebURL     string `toml:"web_url"`
	UserAgent  string `toml:"user_agent"`
	DeviceID   string `toml:"device_id"`
}

// ClientsConfig contains the two OAuth client identities.
type ClientsConfig struct {
	Identity ClientPair `toml:"identity"`
	App      ClientPair `toml:"app"`
}

// ClientPair is an OAuth client id/secret pair.
type ClientPair struct {
	ID     string `toml:"id"`
	Secret string `toml:"secret"`
}

// AuthConfig contains login material and composite-source options.
type AuthConfig struct {
	Email                    string `toml:"email"`
	Password                 string `toml:"password"`
	Prompt                   bool   `toml:"prompt"`
	KillOtherSessions        bool   `toml:"kill_other_sessions"`
	DeleteExistingDeviceCred bool   `toml:"delete_existing_device_credentials"`
}

// RetryConfig contains the request executor retry policy.
type RetryConfig struct {
	MaxAttempts             int     `toml:"max_attempts"`
	MaxTotalWaitSeconds     float64 `toml:"max_total_wait_seconds"`
	HandleRateLimits        bool    `toml:"handle_rate_limits"`
	MaxRetryAfterSeconds    float64 `toml:"max_retry_after_seconds"`
	CoalesceWaitingRequests bool    `toml:"coalesce_waiting_requests"`
	HandleCapacityBackoff   bool    `toml:"handle_capacity_backoff"`
	BackoffStartSeconds     float64 `toml:"backoff_start_seconds"`
	BackoffFactor           float64 `toml:"backoff_factor"`
	BackoffCapSeconds       float64 `toml:"backoff_cap_seconds"`
}

// DatabaseConfig contains local credential store settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
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
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
