package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oarkflow/squealx"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

func (d Database) ToSquealxConfig() squealx.Config {
	return squealx.Config{
		Driver:      d.Driver,
		Host:        d.Host,
		Port:        d.Port,
		Username:    d.Username,
		Password:    d.Password,
		Database:    d.Database,
		MaxIdleCons: d.MaxIdleConns,
		MaxOpenCons: d.MaxOpenConns,
	}
}

// Scrape holds the knobs shared by every adapter run.
type Scrape struct {
	WindowDays          int      `yaml:"window_days"`
	AllowedRegions      []string `yaml:"allowed_regions"`
	RetainUnknownRegion *bool    `yaml:"retain_unknown_region"`
	TimeoutSeconds      int      `yaml:"timeout_seconds"`
	UserAgent           string   `yaml:"user_agent"`
}

func (s Scrape) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s Scrape) RetainUnknown() bool {
	if s.RetainUnknownRegion == nil {
		return true
	}
	return *s.RetainUnknownRegion
}

// SourceConfig is one provider block. Schedule is a cron expression; the
// defaults stagger the three providers so they never hit shared
// infrastructure at the same minute.
type SourceConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Schedule string `yaml:"schedule"`
	PageSize int    `yaml:"page_size"`
	MaxPages int    `yaml:"max_pages"`
	MetroID  string `yaml:"metro_id"`
	Dataset  string `yaml:"dataset"`
}

func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// HasAPIKey reports whether a real key is configured; placeholder values
// left in checked-in config files ("your-...") do not count.
func (s SourceConfig) HasAPIKey() bool {
	return s.APIKey != "" && !strings.HasPrefix(s.APIKey, "your-")
}

type Retry struct {
	Attempts     int `yaml:"attempts"`
	DelaySeconds int `yaml:"delay_seconds"`
}

func (r Retry) Delay() time.Duration {
	return time.Duration(r.DelaySeconds) * time.Second
}

type Queue struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Config struct {
	Database Database                `yaml:"database"`
	Scrape   Scrape                  `yaml:"scrape"`
	Sources  map[string]SourceConfig `yaml:"sources"`
	Retry    Retry                   `yaml:"retry"`
	Queue    Queue                   `yaml:"queue"`
	LockDir  string                  `yaml:"lock_dir"`
	Listen   string                  `yaml:"listen"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid yaml: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns a runnable configuration without a config file; only
// credentialed sources stay unusable until their keys arrive via env.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Scrape.WindowDays == 0 {
		c.Scrape.WindowDays = 30
	}
	if len(c.Scrape.AllowedRegions) == 0 {
		c.Scrape.AllowedRegions = []string{"Manhattan", "Brooklyn"}
	}
	if c.Scrape.TimeoutSeconds == 0 {
		c.Scrape.TimeoutSeconds = 30
	}
	if c.Scrape.UserAgent == "" {
		c.Scrape.UserAgent = "citypulse-ingest/1.0"
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.DelaySeconds == 0 {
		c.Retry.DelaySeconds = 60
	}
	if c.LockDir == "" {
		c.LockDir = os.TempDir()
	}
	if c.Listen == "" {
		c.Listen = ":8200"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "ingest.jobs"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Sources == nil {
		c.Sources = make(map[string]SourceConfig)
	}
	defaults := map[string]SourceConfig{
		"cityparks": {
			BaseURL:  "https://www.nycgovparks.org",
			Schedule: "0 * * * *",
		},
		"opendata": {
			BaseURL:  "https://data.cityofnewyork.us",
			Dataset:  "tvpp-9vvx",
			PageSize: 500,
			Schedule: "20 */4 * * *",
		},
		"marquee": {
			BaseURL:  "https://api.marquee.live",
			PageSize: 100,
			MaxPages: 5,
			MetroID:  "345",
			Schedule: "40 */4 * * *",
		},
	}
	for name, def := range defaults {
		got := c.Sources[name]
		if got.BaseURL == "" {
			got.BaseURL = def.BaseURL
		}
		if got.Schedule == "" {
			got.Schedule = def.Schedule
		}
		if got.PageSize == 0 {
			got.PageSize = def.PageSize
		}
		if got.MaxPages == 0 {
			got.MaxPages = def.MaxPages
		}
		if got.MetroID == "" {
			got.MetroID = def.MetroID
		}
		if got.Dataset == "" {
			got.Dataset = def.Dataset
		}
		c.Sources[name] = got
	}
}

// Credentials come from the environment in deployments; a key in the env
// always wins over the file.
func (c *Config) applyEnv() {
	for name, src := range c.Sources {
		env := strings.ToUpper(name) + "_API_KEY"
		if v := os.Getenv(env); v != "" {
			src.APIKey = v
			c.Sources[name] = src
		}
	}
	if v := os.Getenv("INGEST_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("INGEST_QUEUE_URL"); v != "" {
		c.Queue.URL = v
	}
}
