package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guidewatch/guidewatch/safeurl"
)

// AdminConfig identifies the reviewing administrator who receives change
// alerts and owns approve/reject.
type AdminConfig struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// Config configures the monitoring service.
type Config struct {
	// Sources are the guideline page URLs swept for changes.
	Sources []string `yaml:"sources"`

	// SweepInterval between scheduled detection sweeps. Default: 6h.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// FetchTimeout per page fetch. Default: 30s.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// UserAgent sent with page fetches.
	UserAgent string `yaml:"user_agent"`

	// DispatchConcurrency bounds parallel outreach sends. Default: 4.
	DispatchConcurrency int `yaml:"dispatch_concurrency"`

	// FromName appears in outreach email footers.
	FromName string `yaml:"from_name"`

	// BaseURL prefixes the approve/reject/review links in admin alerts,
	// e.g. "https://guidewatch.example.org".
	BaseURL string `yaml:"base_url"`

	Admin AdminConfig `yaml:"admin"`
}

func (c *Config) defaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 6 * time.Hour
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.DispatchConcurrency <= 0 {
		c.DispatchConcurrency = 4
	}
	if c.FromName == "" {
		c.FromName = "Guideline Monitoring"
	}
}

// Validate rejects configs that could not run a sweep.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: no sources configured")
	}
	for _, u := range c.Sources {
		if err := safeurl.ValidateURL(u); err != nil {
			return fmt.Errorf("config: source %q: %w", u, err)
		}
	}
	if c.Admin.Email == "" {
		return fmt.Errorf("config: admin.email is required")
	}
	return nil
}

// LoadConfigFile reads a YAML config, applies defaults, and validates.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
