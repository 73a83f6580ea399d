// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:4001"

backend:
  base_url: "http://rest.internal:3000/"
  timeout: "3s"

auth:
  jwt_secret: "not-a-real-secret"

audit:
  database_path: "/tmp/audit.db"
  jsonl_path: "/tmp/mcp-logs.jsonl"

tools:
  duplicate_window: "45s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:4001" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:4001")
	}
	// Trailing slash is trimmed so paths can be appended directly
	if cfg.Backend.BaseURL != "http://rest.internal:3000" {
		t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, "http://rest.internal:3000")
	}
	if cfg.Backend.Timeout != 3*time.Second {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, 3*time.Second)
	}
	if cfg.Auth.JWTSecret != "not-a-real-secret" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Audit.DatabasePath != "/tmp/audit.db" || cfg.Audit.JSONLPath != "/tmp/mcp-logs.jsonl" {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if cfg.Tools.DuplicateWindow != 45*time.Second {
		t.Errorf("Tools.DuplicateWindow = %v, want %v", cfg.Tools.DuplicateWindow, 45*time.Second)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:5001"

[backend]
base_url = "https://api.example.test"
timeout = "750ms"

[logging]
format = "text"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:5001" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Backend.BaseURL != "https://api.example.test" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 750*time.Millisecond {
		t.Errorf("Backend.Timeout = %v", cfg.Backend.Timeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REPAIRDESK_BACKEND_URL", "")
	configPath := writeConfig(t, "config.yaml", "logging:\n  format: text\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Backend.BaseURL != DefaultBackendURL {
		t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, DefaultBackendURL)
	}
	if cfg.Backend.Timeout != DefaultBackendTimeout {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, DefaultBackendTimeout)
	}
	if cfg.Tools.DuplicateWindow != 0 {
		t.Errorf("Tools.DuplicateWindow = %v, want 0", cfg.Tools.DuplicateWindow)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_REPAIRDESK_SECRET", "secret-from-env")
	t.Setenv("TEST_REPAIRDESK_AUDIT", "/var/log/audit.jsonl")

	configPath := writeConfig(t, "config.yaml", `
auth:
  jwt_secret: "${TEST_REPAIRDESK_SECRET}"
audit:
  jsonl_path: "${TEST_REPAIRDESK_AUDIT}"
  database_path: "${TEST_REPAIRDESK_UNSET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "secret-from-env")
	}
	if cfg.Audit.JSONLPath != "/var/log/audit.jsonl" {
		t.Errorf("Audit.JSONLPath = %q", cfg.Audit.JSONLPath)
	}
	// Unset variables expand to empty
	if cfg.Audit.DatabasePath != "" {
		t.Errorf("Audit.DatabasePath = %q, want empty", cfg.Audit.DatabasePath)
	}
}

func TestLoad_BackendURLOverride(t *testing.T) {
	t.Setenv("REPAIRDESK_BACKEND_URL", "http://override:9000/")
	configPath := writeConfig(t, "config.yaml", "backend:\n  base_url: \"http://from-file:3000\"\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.BaseURL != "http://override:9000" {
		t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, "http://override:9000")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("REPAIRDESK_BACKEND_URL", "")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid duration",
			content: "backend:\n  timeout: \"soon\"\n",
			wantErr: "backend.timeout",
		},
		{
			name:    "invalid duplicate window",
			content: "tools:\n  duplicate_window: \"abc\"\n",
			wantErr: "tools.duplicate_window",
		},
		{
			name:    "negative duplicate window",
			content: "tools:\n  duplicate_window: \"-5s\"\n",
			wantErr: "must not be negative",
		},
		{
			name:    "non-http backend",
			content: "backend:\n  base_url: \"ftp://files\"\n",
			wantErr: "backend.base_url",
		},
		{
			name:    "tailscale without hostname",
			content: "tailscale:\n  enabled: true\n",
			wantErr: "tailscale.hostname",
		},
		{
			name:    "bad log format",
			content: "logging:\n  format: \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "malformed yaml",
			content: "server: [unclosed\n",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("REPAIRDESK_BACKEND_URL", "")
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config invalid: %v", err)
	}
	if cfg.Backend.BaseURL != DefaultBackendURL {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("REPAIRDESK_CONFIG", "/etc/repairdesk/custom.toml")
	if got := DefaultPath(); got != "/etc/repairdesk/custom.toml" {
		t.Errorf("DefaultPath() = %q, want REPAIRDESK_CONFIG value", got)
	}

	t.Setenv("REPAIRDESK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultPath(); got != filepath.Join("/tmp/xdg", "repairdesk", "gateway.yaml") {
		t.Errorf("DefaultPath() = %q, want XDG location", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/tech")
	if got := DefaultPath(); got != filepath.Join("/home/tech", ".config", "repairdesk", "gateway.yaml") {
		t.Errorf("DefaultPath() = %q, want home location", got)
	}
}
