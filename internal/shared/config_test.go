package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./halcyon.db" {
			t.Errorf("expected database path ./halcyon.db, got %s", config.Database.Path)
		}

		if config.Platform.AccountURL != "https://account.halcyon.gg" {
			t.Errorf("expected account url https://account.halcyon.gg, got %s", config.Platform.AccountURL)
		}

		if config.Clients.Identity.ID != "your_identity_client_id" {
			t.Errorf("expected identity client id your_identity_client_id, got %s", config.Clients.Identity.ID)
		}

		if !config.Auth.Prompt {
			t.Error("expected prompting enabled by default")
		}

		if config.Retry.MaxAttempts != 5 {
			t.Errorf("expected max attempts 5, got %d", config.Retry.MaxAttempts)
		}

		if config.Retry.BackoffFactor != 1.5 {
			t.Errorf("expected backoff factor 1.5, got %v", config.Retry.BackoffFactor)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[platform]
account_url = "https://account.example.test"
social_url = "https://social.example.test"
query_url = "https://query.example.test"
web_url = "https://www.example.test"
device_id = "1b4b4c2e8f2a4f6d9a3c5e7b1d2f4a6c"

[clients.identity]
id = "ident_id"
secret = "ident_secret"

[clients.app]
id = "app_id"
secret = "app_secret"

[auth]
email = "squire@example.test"
prompt = false
kill_other_sessions = true

[retry]
max_attempts = 3
max_total_wait_seconds = 30
backoff_start_seconds = 0.5
backoff_factor = 2.0
backoff_cap_seconds = 8.0

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Platform.AccountURL != "https://account.example.test" {
			t.Errorf("expected account url https://account.example.test, got %s", config.Platform.AccountURL)
		}

		if config.Auth.Prompt {
			t.Error("expected prompting disabled")
		}

		if !config.Auth.KillOtherSessions {
			t.Error("expected kill_other_sessions enabled")
		}

		if config.Retry.MaxAttempts != 3 {
			t.Errorf("expected max attempts 3, got %d", config.Retry.MaxAttempts)
		}

		if config.Clients.App.ID != "app_id" {
			t.Errorf("expected app client id app_id, got %s", config.Clients.App.ID)
		}
	})
}
