package red_media_browser

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
)

// Config holds everything the pipeline core is configured with. Process
// bootstrap owns where it comes from; environment variables override file
// values.
type Config struct {
	Cache CacheConfig `yaml:"cache"`
	HTTP  HTTPConfig  `yaml:"http"`
	Tasks TaskConfig  `yaml:"tasks"`
}

type CacheConfig struct {
	Root string `yaml:"root" envconfig:"CACHE_ROOT" default:"./media-cache"`
	// RepairTolerance is the indexed-to-present ratio below which a repair
	// scan actually runs.
	RepairTolerance float64 `yaml:"repair_tolerance" envconfig:"CACHE_REPAIR_TOLERANCE" default:"0.9"`
}

type HTTPConfig struct {
	Timeout         time.Duration `yaml:"timeout" envconfig:"HTTP_TIMEOUT" default:"60s"`
	UserAgent       string        `yaml:"user_agent" envconfig:"HTTP_USER_AGENT"`
	RequestsPerHost float64       `yaml:"requests_per_host" envconfig:"HTTP_REQUESTS_PER_HOST" default:"4"`
	BurstPerHost    int           `yaml:"burst_per_host" envconfig:"HTTP_BURST_PER_HOST" default:"4"`
}

type TaskConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" envconfig:"TASKS_MAX_CONCURRENT" default:"4"`
}

// LoadConfig reads configuration from an optional YAML file, then overrides
// from environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Cache.Root == "" {
		return fmt.Errorf("CACHE_ROOT is required")
	}
	if c.Tasks.MaxConcurrent < 1 {
		return fmt.Errorf("TASKS_MAX_CONCURRENT must be at least 1")
	}
	if c.Cache.RepairTolerance <= 0 || c.Cache.RepairTolerance > 1 {
		return fmt.Errorf("CACHE_REPAIR_TOLERANCE must be in (0, 1]")
	}
	return nil
}

// ClientOptions translates HTTP configuration into fetch client options.
func (c *HTTPConfig) ClientOptions() []fetch.Option {
	opts := []fetch.Option{
		fetch.WithTimeout(c.Timeout),
		fetch.WithPerHostRate(rate.Limit(c.RequestsPerHost), c.BurstPerHost),
	}
	if c.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(c.UserAgent))
	}
	return opts
}
