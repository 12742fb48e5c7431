package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STATE_CREDENTIALS_PATH", "STATE_FALLBACK_PATH",
		"FAILURE_ALERT_THRESHOLD", "ALERT_MIN_INTERVAL",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
		"DB_CONN_MAX_LIFETIME", "DB_OPERATION_TIMEOUT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.State.FallbackPath != "local_state.json" {
		t.Errorf("FallbackPath = %q, want local_state.json", cfg.State.FallbackPath)
	}
	if cfg.State.CredentialsPath != "" {
		t.Errorf("CredentialsPath should default to empty, got %q", cfg.State.CredentialsPath)
	}
	if cfg.State.FailureAlertThreshold != 5 {
		t.Errorf("FailureAlertThreshold = %d, want 5", cfg.State.FailureAlertThreshold)
	}
	if cfg.Database.OperationTimeout != 5*time.Second {
		t.Errorf("OperationTimeout = %v, want 5s", cfg.Database.OperationTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_CREDENTIALS_PATH", "/etc/trade-state/credentials.json")
	t.Setenv("STATE_FALLBACK_PATH", "/var/lib/trade-state/state.json")
	t.Setenv("ALERT_MIN_INTERVAL", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.State.CredentialsPath != "/etc/trade-state/credentials.json" {
		t.Errorf("CredentialsPath = %q", cfg.State.CredentialsPath)
	}
	if cfg.State.FallbackPath != "/var/lib/trade-state/state.json" {
		t.Errorf("FallbackPath = %q", cfg.State.FallbackPath)
	}
	if cfg.State.AlertMinInterval != 30*time.Second {
		t.Errorf("AlertMinInterval = %v, want 30s", cfg.State.AlertMinInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad chat id", "TELEGRAM_CHAT_ID", "not-a-number"},
		{"bad threshold", "FAILURE_ALERT_THRESHOLD", "many"},
		{"bad alert interval", "ALERT_MIN_INTERVAL", "soon"},
		{"bad operation timeout", "DB_OPERATION_TIMEOUT", "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail with %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestValidateTelegramPair(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	if _, err := Load(); err == nil {
		t.Error("Load() should require TELEGRAM_CHAT_ID when token is set")
	}
}
