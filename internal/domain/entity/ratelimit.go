package entity

import "time"

// RateLimitConfig is the per-portal outbound request budget. The table is
// static at runtime; YAML configuration may override individual portals at
// startup.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	BurstLimit        int
	RetryAfter        time.Duration
}

// DefaultRateLimits returns the built-in per-portal budgets. Values mirror
// each portal's published partner API limits, with conservative defaults
// for portals that do not publish one.
func DefaultRateLimits() map[Portal]RateLimitConfig {
	return map[Portal]RateLimitConfig{
		PortalZillow:     {RequestsPerMinute: 60, RequestsPerHour: 1000, BurstLimit: 10, RetryAfter: 60 * time.Second},
		PortalTrulia:     {RequestsPerMinute: 60, RequestsPerHour: 1000, BurstLimit: 10, RetryAfter: 60 * time.Second},
		PortalRealtor:    {RequestsPerMinute: 30, RequestsPerHour: 500, BurstLimit: 5, RetryAfter: 90 * time.Second},
		PortalApartments: {RequestsPerMinute: 45, RequestsPerHour: 800, BurstLimit: 8, RetryAfter: 60 * time.Second},
		PortalStreetEasy: {RequestsPerMinute: 30, RequestsPerHour: 400, BurstLimit: 5, RetryAfter: 90 * time.Second},
		PortalZumper:     {RequestsPerMinute: 60, RequestsPerHour: 1200, BurstLimit: 12, RetryAfter: 45 * time.Second},
		PortalCraigslist: {RequestsPerMinute: 10, RequestsPerHour: 100, BurstLimit: 2, RetryAfter: 300 * time.Second},
		PortalFacebook:   {RequestsPerMinute: 100, RequestsPerHour: 2000, BurstLimit: 20, RetryAfter: 30 * time.Second},
		PortalHotpads:    {RequestsPerMinute: 45, RequestsPerHour: 700, BurstLimit: 8, RetryAfter: 60 * time.Second},
	}
}

// RateLimitFor returns the budget for a portal from the given table,
// falling back to a conservative default for portals missing from it.
func RateLimitFor(table map[Portal]RateLimitConfig, portal Portal) RateLimitConfig {
	if cfg, ok := table[portal]; ok {
		return cfg
	}
	return RateLimitConfig{RequestsPerMinute: 30, RequestsPerHour: 500, BurstLimit: 5, RetryAfter: 60 * time.Second}
}
