package provider

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"listing-syndication/internal/domain/entity"
)

// PortalConfig is the per-portal deployment configuration: the syndication
// feature flag, partner credentials, webhook verification secret, and an
// optional rate-limit override.
type PortalConfig struct {
	// Enabled gates the portal. Nil means enabled; an explicit false
	// forces the stub regardless of credentials.
	Enabled *bool `yaml:"enabled"`

	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	WebhookSecret string `yaml:"webhook_secret"`

	RateLimit *RateLimitOverride `yaml:"rate_limit"`
}

// RateLimitOverride is the YAML-facing shape of a rate-limit override.
// RetryAfter is a Go duration string; it is validated when the file loads.
type RateLimitOverride struct {
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	RequestsPerHour   int    `yaml:"requests_per_hour"`
	BurstLimit        int    `yaml:"burst_limit"`
	RetryAfter        string `yaml:"retry_after"`
}

// toConfig converts the override into the domain shape.
func (o *RateLimitOverride) toConfig() (entity.RateLimitConfig, error) {
	cfg := entity.RateLimitConfig{
		RequestsPerMinute: o.RequestsPerMinute,
		RequestsPerHour:   o.RequestsPerHour,
		BurstLimit:        o.BurstLimit,
	}
	if o.RetryAfter != "" {
		d, err := time.ParseDuration(o.RetryAfter)
		if err != nil {
			return entity.RateLimitConfig{}, fmt.Errorf("retry_after: %w", err)
		}
		cfg.RetryAfter = d
	}
	return cfg, nil
}

// HasCredentials reports whether partner credentials are present.
func (c PortalConfig) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// IsDisabled reports whether the portal is explicitly feature-flagged off.
func (c PortalConfig) IsDisabled() bool {
	return c.Enabled != nil && !*c.Enabled
}

// Config is the syndication portal configuration file shape.
type Config struct {
	Portals map[entity.Portal]PortalConfig `yaml:"portals"`
}

// LoadConfig reads and validates the YAML portal configuration. A missing
// path returns an empty configuration: every portal then resolves to the
// stub, which keeps test and staging environments fully functional.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{Portals: map[entity.Portal]PortalConfig{}}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portal config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse portal config %s: %w", path, err)
	}
	if cfg.Portals == nil {
		cfg.Portals = map[entity.Portal]PortalConfig{}
	}
	for portal, pc := range cfg.Portals {
		if !portal.Valid() {
			return nil, fmt.Errorf("portal config %s: portal %q: %w", path, portal, entity.ErrUnknownPortal)
		}
		if pc.RateLimit != nil {
			if _, err := pc.RateLimit.toConfig(); err != nil {
				return nil, fmt.Errorf("portal config %s: portal %q: %w", path, portal, err)
			}
		}
	}
	return &cfg, nil
}

// Portal returns the configuration for a portal; zero value when absent.
func (c *Config) Portal(p entity.Portal) PortalConfig {
	return c.Portals[p]
}

// RateLimits merges the built-in per-portal budgets with any overrides
// from the configuration file.
func (c *Config) RateLimits() map[entity.Portal]entity.RateLimitConfig {
	limits := entity.DefaultRateLimits()
	for portal, pc := range c.Portals {
		if pc.RateLimit == nil {
			continue
		}
		cfg, err := pc.RateLimit.toConfig()
		if err != nil {
			// LoadConfig already rejected invalid overrides.
			continue
		}
		limits[portal] = cfg
	}
	return limits
}
