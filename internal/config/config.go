// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Site    SiteConfig    `mapstructure:"site"`
	Browser BrowserConfig `mapstructure:"browser"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Archive ArchiveConfig `mapstructure:"archive"`
	DB      DBConfig      `mapstructure:"db"`
}

// ServerConfig controls the control-surface HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SiteConfig identifies the monitored platform and its credentials.
type SiteConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Capability  int    `mapstructure:"capability"`
	BaseURL     string `mapstructure:"base_url"`
	LoginURL    string `mapstructure:"login_url"`
	LoginID     string `mapstructure:"login_id"`
	LoginSecret string `mapstructure:"login_secret"`
}

// BrowserConfig governs the automated browser session.
type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless"`
	ChromePath     string `mapstructure:"chrome_path"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RetryCount     int    `mapstructure:"retry_count"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms"`
}

// CrawlConfig scopes the run: keyword, categories, page depth, output.
type CrawlConfig struct {
	Keyword string `mapstructure:"keyword"`
	// KeywordFoldCase enables case-insensitive keyword matching. The
	// default preserves the literal substring check.
	KeywordFoldCase bool     `mapstructure:"keyword_fold_case"`
	PageCount       int      `mapstructure:"page_count"`
	Categories      []string `mapstructure:"categories"`
	OutputDir       string   `mapstructure:"output_dir"`
}

// ArchiveConfig configures the optional FTP evidence mirror.
type ArchiveConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	BasePath       string `mapstructure:"base_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig locates the local SQLite database file.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("site.id", "fileis")
	v.SetDefault("site.name", "FileIs")
	v.SetDefault("site.type", "webhard")
	v.SetDefault("site.capability", 0)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("browser.timeout_seconds", 30)
	v.SetDefault("browser.retry_count", 3)
	v.SetDefault("browser.retry_delay_ms", 2000)
	v.SetDefault("crawl.keyword_fold_case", false)
	v.SetDefault("crawl.page_count", 2)
	v.SetDefault("crawl.categories", []string{"CG001", "CG002", "CG003", "CG005"})
	v.SetDefault("crawl.output_dir", "data/screenshots")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.port", 21)
	v.SetDefault("archive.base_path", "/images")
	v.SetDefault("archive.timeout_seconds", 15)
	v.SetDefault("db.path", "data/monitoring.db")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Site.LoginURL == "" {
		return fmt.Errorf("site.login_url must be set")
	}
	if c.Crawl.Keyword == "" {
		return fmt.Errorf("crawl.keyword must be set")
	}
	if c.Crawl.PageCount <= 0 {
		return fmt.Errorf("crawl.page_count must be > 0")
	}
	if len(c.Crawl.Categories) == 0 {
		return fmt.Errorf("crawl.categories must not be empty")
	}
	if c.Browser.TimeoutSeconds <= 0 {
		return fmt.Errorf("browser.timeout_seconds must be > 0")
	}
	if c.Browser.RetryCount <= 0 {
		return fmt.Errorf("browser.retry_count must be > 0")
	}
	if c.Archive.Enabled && c.Archive.Host == "" {
		return fmt.Errorf("archive.host must be set when archive is enabled")
	}
	return nil
}

// BrowserTimeout converts the per-call browser timeout into a duration.
func (c Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// RetryDelay converts the base retry delay into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Browser.RetryDelayMs) * time.Millisecond
}
