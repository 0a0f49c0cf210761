package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the kfsearch configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// BackendConfig describes the remote search API.
type BackendConfig struct {
	BaseURL      string  `yaml:"base_url"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	RatePerSec   float64 `yaml:"rate_per_sec"` // 0 = unlimited
	Burst        int     `yaml:"burst"`
	DefaultK     int     `yaml:"default_k"`
	DefaultFPS   float64 `yaml:"default_fps"`
	MapKeyframes bool    `yaml:"map_keyframes"` // resolve frame ids through /map on CSV export
}

// StorageConfig holds selection persistence settings.
type StorageConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// UIConfig holds grid and session settings.
type UIConfig struct {
	PageSize           int    `yaml:"page_size"`
	PageWindow         int    `yaml:"page_window"`
	PlaceholderResults int    `yaml:"placeholder_results"`
	SessionTTLMin      int    `yaml:"session_ttl_min"`
	AssetBaseURL       string `yaml:"asset_base_url"` // keyframes, /view and /vid (default: backend.base_url)
	SecureCookie       bool   `yaml:"secure_cookie"`

	// SelectionCookieDays is the lifetime of the browser cookie that owns the stored selection.
	SelectionCookieDays int `yaml:"selection_cookie_days"`
}

// SessionTTL is the idle time after which server-side mode, results and cached searches are dropped.
func (u UIConfig) SessionTTL() time.Duration {
	return time.Duration(u.SessionTTLMin) * time.Minute
}

// CookieLifetime is how long the browser keeps its session cookie, and with it
// access to the stored selection.
func (u UIConfig) CookieLifetime() time.Duration {
	return time.Duration(u.SelectionCookieDays) * 24 * time.Hour
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 16
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 20
	}
	if c.Backend.Burst <= 0 {
		c.Backend.Burst = 4
	}
	if c.Backend.DefaultK <= 0 {
		c.Backend.DefaultK = 200
	}
	if c.Backend.DefaultFPS <= 0 {
		c.Backend.DefaultFPS = 25
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "kfsearch:"
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}
	if c.UI.PageSize <= 0 {
		c.UI.PageSize = 100
	}
	if c.UI.PageWindow <= 0 {
		c.UI.PageWindow = 4
	}
	if c.UI.PlaceholderResults <= 0 {
		c.UI.PlaceholderResults = 20
	}
	if c.UI.SessionTTLMin <= 0 {
		c.UI.SessionTTLMin = 12 * 60
	}
	if c.UI.SelectionCookieDays <= 0 {
		c.UI.SelectionCookieDays = 365
	}
	if c.UI.AssetBaseURL == "" {
		c.UI.AssetBaseURL = c.Backend.BaseURL
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.RatePerSec < 0 {
		return fmt.Errorf("backend.rate_per_sec must not be negative, got %v", c.Backend.RatePerSec)
	}
	switch c.Storage.Driver {
	case "memory":
	case "redis", "valkey":
		if len(c.Storage.Addrs) == 0 {
			return fmt.Errorf("storage.addrs is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be \"memory\", \"redis\" or \"valkey\", got %q", c.Storage.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
