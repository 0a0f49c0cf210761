package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP:    HTTPConfig{Port: 8080},
		Backend: BackendConfig{BaseURL: "http://localhost:5001"},
		Storage: StorageConfig{Driver: "memory"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingBackendURL(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.BaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing backend.base_url")
	}
}

func TestValidate_NegativeRate(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.RatePerSec = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative rate")
	}
}

func TestValidate_StorageDrivers(t *testing.T) {
	tests := []struct {
		driver  string
		addrs   []string
		wantErr bool
	}{
		{"memory", nil, false},
		{"redis", []string{"localhost:6379"}, false},
		{"valkey", []string{"localhost:6379"}, false},
		{"redis", nil, true},
		{"valkey", []string{}, true},
		{"sqlite", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.driver, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage.Driver = tc.driver
			cfg.Storage.Addrs = tc.addrs

			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("driver %q addrs %v: err=%v, wantErr=%v", tc.driver, tc.addrs, err, tc.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 15 {
		t.Errorf("expected ReadTimeoutSec=15, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxUploadMB != 16 {
		t.Errorf("expected MaxUploadMB=16, got %d", cfg.HTTP.MaxUploadMB)
	}
	if cfg.Backend.DefaultK != 200 {
		t.Errorf("expected DefaultK=200, got %d", cfg.Backend.DefaultK)
	}
	if cfg.Backend.DefaultFPS != 25 {
		t.Errorf("expected DefaultFPS=25, got %v", cfg.Backend.DefaultFPS)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected Driver=memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.KeyPrefix != "kfsearch:" {
		t.Errorf("expected KeyPrefix='kfsearch:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.UI.PageSize != 100 {
		t.Errorf("expected PageSize=100, got %d", cfg.UI.PageSize)
	}
	if cfg.UI.PlaceholderResults != 20 {
		t.Errorf("expected PlaceholderResults=20, got %d", cfg.UI.PlaceholderResults)
	}
}

func TestApplyDefaults_AssetBaseFromBackend(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if cfg.UI.AssetBaseURL != "http://localhost:5001" {
		t.Errorf("expected AssetBaseURL from backend, got %q", cfg.UI.AssetBaseURL)
	}

	cfg = validConfig()
	cfg.UI.AssetBaseURL = "https://cdn.example.com"
	cfg.ApplyDefaults()
	if cfg.UI.AssetBaseURL != "https://cdn.example.com" {
		t.Errorf("AssetBaseURL overridden: %q", cfg.UI.AssetBaseURL)
	}
}

func TestApplyDefaults_CookieOutlivesSession(t *testing.T) {
	cfg := validConfig()
	cfg.UI.SessionTTLMin = 30
	cfg.ApplyDefaults()

	if got := cfg.UI.SessionTTL(); got != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", got)
	}
	if got := cfg.UI.CookieLifetime(); got != 365*24*time.Hour {
		t.Errorf("CookieLifetime = %v, want 365 days", got)
	}

	cfg.UI.SessionTTLMin = 24 * 60
	cfg.UI.SelectionCookieDays = 7
	if got := cfg.UI.CookieLifetime(); got != 7*24*time.Hour {
		t.Errorf("CookieLifetime = %v, want 7 days regardless of session TTL", got)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Backend: BackendConfig{DefaultK: 50, DefaultFPS: 30},
		Storage: StorageConfig{Driver: "redis", KeyPrefix: "custom:"},
		UI:      UIConfig{PageSize: 48},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Backend.DefaultK != 50 {
		t.Errorf("expected DefaultK=50, got %d", cfg.Backend.DefaultK)
	}
	if cfg.Backend.DefaultFPS != 30 {
		t.Errorf("expected DefaultFPS=30, got %v", cfg.Backend.DefaultFPS)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.UI.PageSize != 48 {
		t.Errorf("expected PageSize=48, got %d", cfg.UI.PageSize)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("KFSEARCH_TEST_BACKEND", "http://search.internal:9000")

	cfg, err := Parse([]byte(`
http:
  port: 8080
backend:
  base_url: ${KFSEARCH_TEST_BACKEND}
  map_keyframes: ${KFSEARCH_TEST_MAP:-true}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://search.internal:9000" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if !cfg.Backend.MapKeyframes {
		t.Error("expected MapKeyframes from default value")
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("http:\n  port: 0\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("unexpected error: %v", err)
	}
}
