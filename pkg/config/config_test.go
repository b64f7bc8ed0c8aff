package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Crawler.Mode != "all" {
		t.Errorf("Expected default mode to be all, got %s", cfg.Crawler.Mode)
	}
	if cfg.Crawler.BaseDelay != 10*time.Second {
		t.Errorf("Expected default base delay to be 10s, got %v", cfg.Crawler.BaseDelay)
	}
	if cfg.Crawler.JitterFraction != 0.25 {
		t.Errorf("Expected default jitter to be 0.25, got %v", cfg.Crawler.JitterFraction)
	}
	if cfg.Crawler.MaxPostsPerRun != 1000 {
		t.Errorf("Expected default post budget to be 1000, got %d", cfg.Crawler.MaxPostsPerRun)
	}
	if !cfg.Images.Enabled {
		t.Error("Expected image downloads to be enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("WBSCRAPER_COOKIE", "SUB=test")
	os.Setenv("WBSCRAPER_ACCOUNTS", "123, 456")
	os.Setenv("WBSCRAPER_MODE", "history")
	os.Setenv("WBSCRAPER_BASE_DELAY", "30s")
	os.Setenv("WBSCRAPER_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("WBSCRAPER_COOKIE")
		os.Unsetenv("WBSCRAPER_ACCOUNTS")
		os.Unsetenv("WBSCRAPER_MODE")
		os.Unsetenv("WBSCRAPER_BASE_DELAY")
		os.Unsetenv("WBSCRAPER_LOG_LEVEL")
	}()

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if cfg.Weibo.Cookie != "SUB=test" {
		t.Errorf("Expected cookie to be SUB=test, got %s", cfg.Weibo.Cookie)
	}
	if len(cfg.Crawler.Accounts) != 2 || cfg.Crawler.Accounts[0] != "123" || cfg.Crawler.Accounts[1] != "456" {
		t.Errorf("Expected accounts [123 456], got %v", cfg.Crawler.Accounts)
	}
	if cfg.Crawler.Mode != "history" {
		t.Errorf("Expected mode history, got %s", cfg.Crawler.Mode)
	}
	if cfg.Crawler.BaseDelay != 30*time.Second {
		t.Errorf("Expected base delay 30s, got %v", cfg.Crawler.BaseDelay)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
crawler:
  accounts:
    - "1000001"
  mode: new
  base_delay: 5s
  max_posts_per_run: 50
storage:
  data_dir: /tmp/wbdata
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if len(cfg.Crawler.Accounts) != 1 || cfg.Crawler.Accounts[0] != "1000001" {
		t.Errorf("Expected accounts [1000001], got %v", cfg.Crawler.Accounts)
	}
	if cfg.Crawler.Mode != "new" {
		t.Errorf("Expected mode new, got %s", cfg.Crawler.Mode)
	}
	if cfg.Crawler.BaseDelay != 5*time.Second {
		t.Errorf("Expected base delay 5s, got %v", cfg.Crawler.BaseDelay)
	}
	if cfg.Crawler.MaxPostsPerRun != 50 {
		t.Errorf("Expected post budget 50, got %d", cfg.Crawler.MaxPostsPerRun)
	}
	if cfg.Storage.DataDir != "/tmp/wbdata" {
		t.Errorf("Expected data dir /tmp/wbdata, got %s", cfg.Storage.DataDir)
	}
	// untouched sections keep defaults
	if cfg.Crawler.MaxAgeDays != 365 {
		t.Errorf("Expected default max age days, got %d", cfg.Crawler.MaxAgeDays)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"valid accounts", func(c *Config) { c.Crawler.Accounts = []string{"123"} }, false},
		{"bad mode", func(c *Config) { c.Crawler.Mode = "sideways" }, true},
		{"non-numeric uid", func(c *Config) { c.Crawler.Accounts = []string{"abc"} }, true},
		{"empty uid", func(c *Config) { c.Crawler.Accounts = []string{""} }, true},
		{"negative delay", func(c *Config) { c.Crawler.BaseDelay = -time.Second }, true},
		{"jitter too large", func(c *Config) { c.Crawler.JitterFraction = 1.0 }, true},
		{"negative jitter", func(c *Config) { c.Crawler.JitterFraction = -0.1 }, true},
		{"zero budget", func(c *Config) { c.Crawler.MaxPostsPerRun = 0 }, true},
		{"zero age bound", func(c *Config) { c.Crawler.MaxAgeDays = 0 }, true},
		{"no data dir", func(c *Config) { c.Storage.DataDir = "" }, true},
		{"images on with no workers", func(c *Config) { c.Images.Workers = 0 }, true},
		{"images off with no workers", func(c *Config) { c.Images.Enabled = false; c.Images.Workers = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ApplyFlags(map[string]interface{}{
		"accounts":     []string{"777"},
		"mode":         "history",
		"base-delay":   20 * time.Second,
		"max-posts":    10,
		"max-age-days": 30,
		"data-dir":     "/tmp/x",
		"log-level":    "error",
		"no-images":    true,
	})

	if cfg.Crawler.Accounts[0] != "777" {
		t.Errorf("Expected account 777, got %v", cfg.Crawler.Accounts)
	}
	if cfg.Crawler.Mode != "history" {
		t.Errorf("Expected mode history, got %s", cfg.Crawler.Mode)
	}
	if cfg.Crawler.BaseDelay != 20*time.Second {
		t.Errorf("Expected base delay 20s, got %v", cfg.Crawler.BaseDelay)
	}
	if cfg.Crawler.MaxAgeDays != 30 {
		t.Errorf("Expected max age days 30, got %d", cfg.Crawler.MaxAgeDays)
	}
	if cfg.Images.Enabled {
		t.Error("Expected images disabled")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Expected log level error, got %s", cfg.Logging.Level)
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.DataDir = "/srv/wb"

	if got := cfg.DatabasePath(); got != filepath.Join("/srv/wb", "weibo.db") {
		t.Errorf("Unexpected database path %s", got)
	}
	if got := cfg.CachePath(); got != filepath.Join("/srv/wb", "cache") {
		t.Errorf("Unexpected cache path %s", got)
	}
	if got := cfg.ImagesPath(); got != filepath.Join("/srv/wb", "images") {
		t.Errorf("Unexpected images path %s", got)
	}
}
