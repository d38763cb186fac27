package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a liscraper run.
type Config struct {
	// LinkedIn session settings
	Session SessionConfig `yaml:"session" json:"session"`

	// Extraction pipeline settings
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Session-open retry settings
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Scroll pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SessionConfig holds browser-session settings. LiAt is the LinkedIn
// session cookie; it normally comes from the credential store rather than
// this file.
type SessionConfig struct {
	LiAt              string        `yaml:"li_at" json:"li_at"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	Headless          bool          `yaml:"headless" json:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// ExtractConfig holds the pagination policy.
type ExtractConfig struct {
	PostCount         int           `yaml:"post_count" json:"post_count"`
	MaxScrollAttempts int           `yaml:"max_scroll_attempts" json:"max_scroll_attempts"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	StallThreshold    int           `yaml:"stall_threshold" json:"stall_threshold"`
}

// OutputConfig holds persistence settings.
type OutputConfig struct {
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	MergeHistory bool   `yaml:"merge_history" json:"merge_history"`
}

// RetryConfig holds session-open retry settings.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// RateLimitConfig caps how aggressively the feed is scrolled.
type RateLimitConfig struct {
	ScrollsPerMinute int `yaml:"scrolls_per_minute" json:"scrolls_per_minute"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Extract: ExtractConfig{
			PostCount:         10,
			MaxScrollAttempts: 20,
			SettleDelay:       2 * time.Second,
			StallThreshold:    2,
		},
		Output: OutputConfig{
			DataDir:      "./data",
			MergeHistory: true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		RateLimit: RateLimitConfig{
			ScrollsPerMinute: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides configuration from LISCRAPER_* environment
// variables.
func (c *Config) LoadFromEnv() {
	if liAt := os.Getenv("LISCRAPER_LI_AT"); liAt != "" {
		c.Session.LiAt = liAt
	}
	if ua := os.Getenv("LISCRAPER_USER_AGENT"); ua != "" {
		c.Session.UserAgent = ua
	}
	if headless := os.Getenv("LISCRAPER_HEADLESS"); headless != "" {
		c.Session.Headless = strings.ToLower(headless) != "false"
	}
	if count := os.Getenv("LISCRAPER_POST_COUNT"); count != "" {
		if v, err := strconv.Atoi(count); err == nil && v > 0 {
			c.Extract.PostCount = v
		}
	}
	if scrolls := os.Getenv("LISCRAPER_MAX_SCROLL_ATTEMPTS"); scrolls != "" {
		if v, err := strconv.Atoi(scrolls); err == nil && v > 0 {
			c.Extract.MaxScrollAttempts = v
		}
	}
	if dir := os.Getenv("LISCRAPER_DATA_DIR"); dir != "" {
		c.Output.DataDir = dir
	}
	if level := os.Getenv("LISCRAPER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// LoadFromFile loads configuration from a YAML file. An empty path falls
// back to the standard locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		".liscraper.yaml",
		".liscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "liscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".liscraper.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks the configuration. It runs before any browser session is
// opened so bad parameters never cost a navigation.
func (c *Config) Validate() error {
	var errs []error

	if c.Extract.PostCount <= 0 {
		errs = append(errs, errors.New("post count must be positive"))
	}
	if c.Extract.MaxScrollAttempts <= 0 {
		errs = append(errs, errors.New("max scroll attempts must be positive"))
	}
	if c.Extract.SettleDelay <= 0 {
		errs = append(errs, errors.New("settle delay must be positive"))
	}
	if c.Extract.StallThreshold <= 0 {
		errs = append(errs, errors.New("stall threshold must be positive"))
	}
	if c.Session.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Output.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.RateLimit.ScrollsPerMinute <= 0 {
		errs = append(errs, errors.New("scrolls per minute must be positive"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MergeFlags merges command line flag values into the configuration.
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if v, ok := flags["post-count"].(int); ok && v > 0 {
		c.Extract.PostCount = v
	}
	if v, ok := flags["max-scrolls"].(int); ok && v > 0 {
		c.Extract.MaxScrollAttempts = v
	}
	if v, ok := flags["settle-delay"].(time.Duration); ok && v > 0 {
		c.Extract.SettleDelay = v
	}
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Output.DataDir = v
	}
	if v, ok := flags["merge"].(bool); ok {
		c.Output.MergeHistory = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Session.Headless = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load builds the configuration from all sources.
// Precedence: flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".liscraper.env"))

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()
	cfg.MergeFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
