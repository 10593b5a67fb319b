// Package config handles webgaze configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level webgaze configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Render  RenderConfig  `yaml:"render"`
	Model   ModelConfig   `yaml:"model"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Admin   AdminConfig   `yaml:"admin"`
	Audit   AuditConfig   `yaml:"audit"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Remote         string `yaml:"remote"`   // ws:// URL of external Chrome; empty = launch locally
	Headful        bool   `yaml:"headful"`  // show the browser window
	Stealth        bool   `yaml:"stealth"`  // apply anti-detection scripts to pages
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// RenderConfig controls snapshot capture.
type RenderConfig struct {
	Path          string        `yaml:"path"`
	Quality       int           `yaml:"quality"`
	MaxWidth      int           `yaml:"max_width"`
	SettleTimeout time.Duration `yaml:"settle_timeout"`
}

// ModelConfig points at the completion endpoint. The API key is taken
// from the environment, never from the file.
type ModelConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Decision  string        `yaml:"decision"` // browsing-loop vision model
	Picker    string        `yaml:"picker"`   // single-shot URL picker model
	Vision    string        `yaml:"vision"`   // single-shot answer model
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// CrawlConfig controls the decision loops.
type CrawlConfig struct {
	SeedURL         string        `yaml:"seed_url"`
	MaxAttempts     int           `yaml:"max_attempts"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	ClickTimeout    time.Duration `yaml:"click_timeout"`
	BlockPrivate    bool          `yaml:"block_private"`
	Seed            int64         `yaml:"seed"` // single-shot picker determinism seed
}

// AdminConfig controls the diagnostics HTTP surface. Empty addr = off.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// AuditConfig controls crawl-step persistence. Empty path = off.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1024
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 768
	}
	if c.Render.Path == "" {
		c.Render.Path = "screenshot.jpg"
	}
	if c.Render.Quality <= 0 {
		c.Render.Quality = 42
	}
	if c.Render.SettleTimeout <= 0 {
		c.Render.SettleTimeout = 10 * time.Second
	}
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = "https://api.openai.com"
	}
	if c.Model.Decision == "" {
		c.Model.Decision = "gpt-4-vision-preview"
	}
	if c.Model.Picker == "" {
		c.Model.Picker = "gpt-3.5-turbo-1106"
	}
	if c.Model.Vision == "" {
		c.Model.Vision = c.Model.Decision
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = 30 * time.Second
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = 1024
	}
	if c.Crawl.SeedURL == "" {
		c.Crawl.SeedURL = "https://bbc.com/news"
	}
	if c.Crawl.MaxAttempts <= 0 {
		c.Crawl.MaxAttempts = 20
	}
	if c.Crawl.NavigateTimeout <= 0 {
		c.Crawl.NavigateTimeout = 30 * time.Second
	}
	if c.Crawl.ClickTimeout <= 0 {
		c.Crawl.ClickTimeout = 5 * time.Second
	}
	if c.Crawl.Seed == 0 {
		c.Crawl.Seed = 2232
	}
}
