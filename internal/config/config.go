package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultMaxRangeCells = 1_000_000
	DefaultLockTimeout   = 5 * time.Second
	DefaultFileMode      = os.FileMode(0600)
	DefaultLogLevel      = "warn"
)

// Config is the mcp-sheets configuration
type Config struct {
	BaseDir       string        `yaml:"base_dir"`        // where relative workbook paths are resolved
	LogLevel      string        `yaml:"log_level"`       // debug, info, warn, error
	MaxRangeCells int           `yaml:"max_range_cells"` // largest range a single read may cover
	LockTimeout   time.Duration `yaml:"lock_timeout"`    // e.g. "5s"
	FileMode      string        `yaml:"file_mode"`       // octal, e.g. "0600"
	RecentLimit   int           `yaml:"recent_limit"`    // number of recent workbooks remembered

	fileMode os.FileMode
}

var (
	current   *Config
	currentMu sync.RWMutex
)

// SetCurrent makes cfg the configuration returned by Current.
func SetCurrent(cfg *Config) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = cfg
}

// Current returns the configuration set by SetCurrent. When none was set it
// loads the default configuration, falling back to built-in defaults on error.
func Current() *Config {
	currentMu.RLock()
	cfg := current
	currentMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load("")
	if err != nil {
		logrus.WithError(err).Warn("Failed to load configuration, using defaults")
		cfg = &Config{}
		_ = cfg.validate()
	}
	SetCurrent(cfg)
	return cfg
}

// DefaultConfigPath returns ~/.mcp-sheets/config.yaml
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mcp-sheets", "config.yaml")
}

// Load reads the configuration. A .env file in the working directory is loaded
// first, then the YAML file at configPath (or the default path), then
// environment overrides. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	configPath, err := expandHome(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		logrus.WithField("config_path", configPath).Debug("Configuration file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values with SHEETS_* and LOG_LEVEL environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("SHEETS_BASE_DIR"); v != "" {
		c.BaseDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SHEETS_MAX_RANGE_CELLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHEETS_MAX_RANGE_CELLS: %w", err)
		}
		c.MaxRangeCells = n
	}
	if v := os.Getenv("SHEETS_LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHEETS_LOCK_TIMEOUT: %w", err)
		}
		c.LockTimeout = d
	}
	if v := os.Getenv("SHEETS_FILE_MODE"); v != "" {
		c.FileMode = v
	}
	return nil
}

// validate validates the configuration and sets defaults
func (c *Config) validate() error {
	if c.BaseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.BaseDir = filepath.Join(homeDir, ".mcp-sheets", "workbooks")
	}
	baseDir, err := expandHome(c.BaseDir)
	if err != nil {
		return err
	}
	c.BaseDir = filepath.Clean(baseDir)

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch {
	case c.MaxRangeCells == 0:
		c.MaxRangeCells = DefaultMaxRangeCells
	case c.MaxRangeCells < 0:
		return fmt.Errorf("max_range_cells must be positive, got %d", c.MaxRangeCells)
	}

	switch {
	case c.LockTimeout == 0:
		c.LockTimeout = DefaultLockTimeout
	case c.LockTimeout < 0:
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}

	if c.RecentLimit <= 0 {
		c.RecentLimit = DefaultRecentLimit
	}

	c.fileMode = DefaultFileMode
	if c.FileMode != "" {
		mode, err := strconv.ParseUint(c.FileMode, 8, 32)
		if err != nil || mode == 0 || mode > 0777 {
			return fmt.Errorf("file_mode must be an octal permission such as 0600, got %q", c.FileMode)
		}
		c.fileMode = os.FileMode(mode)
	}
	return nil
}

// Mode returns the permissions applied to saved workbooks.
func (c *Config) Mode() os.FileMode {
	if c.fileMode == 0 {
		return DefaultFileMode
	}
	return c.fileMode
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}
