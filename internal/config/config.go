package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hintd/internal/domain/label"
)

// Report drivers.
const (
	ReportsNone  = "none"
	ReportsRedis = "redis"
)

// Config holds the hintd configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Hints   HintsConfig   `yaml:"hints"`
	Reports ReportsConfig `yaml:"reports"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// HintsConfig holds hint session defaults and limits.
type HintsConfig struct {
	DefaultQuery    string  `yaml:"default_query"`    // CSS selector; empty uses the built-in one
	DefaultStrategy string  `yaml:"default_strategy"` // sequential, prefix
	Alphabet        string  `yaml:"alphabet"`         // prefix code alphabet
	ViewportWidth   float64 `yaml:"viewport_width"`
	ViewportHeight  float64 `yaml:"viewport_height"`
	MaxSessions     int     `yaml:"max_sessions"`    // 0 = unlimited
	MaxFrameDepth   int     `yaml:"max_frame_depth"` // 0 = unlimited
	SettleTimeoutMs int     `yaml:"settle_timeout_ms"`
}

// ReportsConfig holds report channel settings.
type ReportsConfig struct {
	Driver           string   `yaml:"driver"` // none, redis (default: none)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Channel          string   `yaml:"channel"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
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

// Parse decodes YAML configuration, expanding ${VAR} references, and
// applies defaults before validating.
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Hints.DefaultStrategy == "" {
		c.Hints.DefaultStrategy = string(label.Sequential)
	}
	if c.Hints.Alphabet == "" {
		c.Hints.Alphabet = label.DefaultAlphabet
	}
	if c.Hints.SettleTimeoutMs <= 0 {
		c.Hints.SettleTimeoutMs = 5000
	}
	if c.Reports.Driver == "" {
		c.Reports.Driver = ReportsNone
	}
	if c.Reports.ReadinessTimeout <= 0 {
		c.Reports.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if _, err := label.Parse(c.Hints.DefaultStrategy, ""); err != nil {
		return fmt.Errorf("hints.default_strategy: %w", err)
	}
	if err := label.ValidateAlphabet(c.Hints.Alphabet); err != nil {
		return fmt.Errorf("hints.alphabet: %w", err)
	}
	if c.Hints.ViewportWidth < 0 || c.Hints.ViewportHeight < 0 {
		return fmt.Errorf("hints.viewport_width and hints.viewport_height must not be negative")
	}
	if c.Hints.MaxSessions < 0 || c.Hints.MaxFrameDepth < 0 {
		return fmt.Errorf("hints.max_sessions and hints.max_frame_depth must not be negative")
	}
	switch c.Reports.Driver {
	case ReportsNone:
	case ReportsRedis:
		if len(c.Reports.Addrs) == 0 {
			return fmt.Errorf("reports.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("reports.driver must be %q or %q, got %q", ReportsNone, ReportsRedis, c.Reports.Driver)
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

	// 3. Fallback to ./config/
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
