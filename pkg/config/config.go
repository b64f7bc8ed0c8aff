package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Weibo crawler
type Config struct {
	// Crawl scheduling and pacing
	Crawler CrawlerConfig `yaml:"crawler" json:"crawler"`

	// Weibo session and endpoints
	Weibo WeiboConfig `yaml:"weibo" json:"weibo"`

	// Storage locations (database, cache, images)
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Image download settings
	Images ImagesConfig `yaml:"images" json:"images"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CrawlerConfig holds scheduling, pacing and budget options
type CrawlerConfig struct {
	// Accounts is the list of tracked profile UIDs
	Accounts []string `yaml:"accounts" json:"accounts"`
	// Mode is one of "new", "history", "all"
	Mode string `yaml:"mode" json:"mode"`
	// BaseDelay is the pause before each externally fetched unit
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	// JitterFraction randomizes the delay by base*(1±jitter)
	JitterFraction float64 `yaml:"jitter_fraction" json:"jitter_fraction"`
	// MaxPostsPerRun stops a run after this many posts were processed
	MaxPostsPerRun int `yaml:"max_posts_per_run" json:"max_posts_per_run"`
	// MaxAgeDays bounds the backward history scan
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days"`
	// StableAfterDays is the age past which a post's comments are settled
	StableAfterDays int `yaml:"stable_after_days" json:"stable_after_days"`
	// MaxRetries per fetch before a unit is skipped
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// FetchTimeout for a single HTTP call
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// WeiboConfig holds source-specific settings
type WeiboConfig struct {
	Cookie    string `yaml:"cookie" json:"cookie"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	APIBase   string `yaml:"api_base" json:"api_base"`
}

// StorageConfig holds the data directory layout
type StorageConfig struct {
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	DatabaseFile string `yaml:"database_file" json:"database_file"`
	CacheDir     string `yaml:"cache_dir" json:"cache_dir"`
	ImagesDir    string `yaml:"images_dir" json:"images_dir"`
}

// ImagesConfig holds image materialization settings
type ImagesConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Workers           int           `yaml:"workers" json:"workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	DownloadTimeout   time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Mode:            "all",
			BaseDelay:       10 * time.Second,
			JitterFraction:  0.25,
			MaxPostsPerRun:  1000,
			MaxAgeDays:      365,
			StableAfterDays: 1,
			MaxRetries:      3,
			FetchTimeout:    15 * time.Second,
		},
		Weibo: WeiboConfig{
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15",
			APIBase:   "https://m.weibo.cn",
		},
		Storage: StorageConfig{
			DataDir:      "./data",
			DatabaseFile: "weibo.db",
			CacheDir:     "cache",
			ImagesDir:    "images",
		},
		Images: ImagesConfig{
			Enabled:           true,
			Workers:           3,
			RequestsPerSecond: 2,
			DownloadTimeout:   30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// DatabasePath returns the absolute database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.DatabaseFile)
}

// CachePath returns the response cache directory.
func (c *Config) CachePath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.CacheDir)
}

// ImagesPath returns the local image directory.
func (c *Config) ImagesPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.ImagesDir)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if cookie := os.Getenv("WBSCRAPER_COOKIE"); cookie != "" {
		c.Weibo.Cookie = cookie
	}
	if ua := os.Getenv("WBSCRAPER_USER_AGENT"); ua != "" {
		c.Weibo.UserAgent = ua
	}
	if dataDir := os.Getenv("WBSCRAPER_DATA_DIR"); dataDir != "" {
		c.Storage.DataDir = dataDir
	}
	if accounts := os.Getenv("WBSCRAPER_ACCOUNTS"); accounts != "" {
		c.Crawler.Accounts = splitList(accounts)
	}
	if mode := os.Getenv("WBSCRAPER_MODE"); mode != "" {
		c.Crawler.Mode = mode
	}
	if delay := os.Getenv("WBSCRAPER_BASE_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			c.Crawler.BaseDelay = d
		}
	}
	if level := os.Getenv("WBSCRAPER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".wbscraper.yaml",
		".wbscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "wbscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "wbscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".wbscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. A validation failure is
// fatal: the run aborts before any crawl state is touched.
func (c *Config) Validate() error {
	var errs []error

	switch c.Crawler.Mode {
	case "new", "history", "all":
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q (want new, history or all)", c.Crawler.Mode))
	}
	for _, uid := range c.Crawler.Accounts {
		if !isDigits(uid) {
			errs = append(errs, fmt.Errorf("invalid account uid %q (must be numeric)", uid))
		}
	}
	if c.Crawler.BaseDelay < 0 {
		errs = append(errs, errors.New("base delay cannot be negative"))
	}
	if c.Crawler.JitterFraction < 0 || c.Crawler.JitterFraction >= 1 {
		errs = append(errs, errors.New("jitter fraction must be in [0, 1)"))
	}
	if c.Crawler.MaxPostsPerRun <= 0 {
		errs = append(errs, errors.New("max posts per run must be positive"))
	}
	if c.Crawler.MaxAgeDays <= 0 {
		errs = append(errs, errors.New("max age days must be positive"))
	}
	if c.Crawler.StableAfterDays < 0 {
		errs = append(errs, errors.New("stable after days cannot be negative"))
	}
	if c.Crawler.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	if c.Images.Enabled && c.Images.Workers <= 0 {
		errs = append(errs, errors.New("image workers must be positive"))
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("configuration errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Load creates a configuration by merging defaults, config file, environment
// variables, and command line flags (in that order of precedence).
func Load(configFile string, flags map[string]interface{}) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.ApplyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFlags overrides configuration with command line flag values
func (c *Config) ApplyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "accounts":
			if v, ok := value.([]string); ok && len(v) > 0 {
				c.Crawler.Accounts = v
			}
		case "mode":
			if v, ok := value.(string); ok && v != "" {
				c.Crawler.Mode = v
			}
		case "base-delay":
			if v, ok := value.(time.Duration); ok && v > 0 {
				c.Crawler.BaseDelay = v
			}
		case "max-posts":
			if v, ok := value.(int); ok && v > 0 {
				c.Crawler.MaxPostsPerRun = v
			}
		case "max-age-days":
			if v, ok := value.(int); ok && v > 0 {
				c.Crawler.MaxAgeDays = v
			}
		case "data-dir":
			if v, ok := value.(string); ok && v != "" {
				c.Storage.DataDir = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		case "no-images":
			if v, ok := value.(bool); ok && v {
				c.Images.Enabled = false
			}
		}
	}
}

// EnsureDirectories creates the data directory layout.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.DataDir, c.CachePath(), c.ImagesPath()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
