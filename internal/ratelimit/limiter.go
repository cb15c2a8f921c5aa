// Package ratelimit enforces per-portal outbound request budgets using
// sliding minute buckets in a shared key-value store. The check runs before
// any provider call; a denied request is never counted as a sync attempt.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/kvstore"
)

// bucketTTL is slightly over one minute so stale minute buckets are
// reclaimed by the store without an explicit cleanup pass.
const bucketTTL = 70 * time.Second

var (
	limiterAllowed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndication_ratelimit_allowed_total",
			Help: "Outbound portal requests permitted by the rate limiter",
		},
		[]string{"portal"},
	)
	limiterDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndication_ratelimit_denied_total",
			Help: "Outbound portal requests denied by the rate limiter",
		},
		[]string{"portal"},
	)
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Count      int64
	RetryAfter time.Duration
}

// PortalLimiter counts requests per (portal, minute bucket) in a shared
// store. With a redis-backed store the limit holds across processes.
type PortalLimiter struct {
	store  kvstore.Store
	limits map[entity.Portal]entity.RateLimitConfig
	now    func() time.Time
}

// NewPortalLimiter creates a limiter over the given store and per-portal
// budget table. A nil table falls back to the built-in defaults.
func NewPortalLimiter(store kvstore.Store, limits map[entity.Portal]entity.RateLimitConfig) *PortalLimiter {
	if limits == nil {
		limits = entity.DefaultRateLimits()
	}
	return &PortalLimiter{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
}

// SetClock replaces the limiter's time source. Test use only.
func (l *PortalLimiter) SetClock(now func() time.Time) { l.now = now }

// Allow increments the portal's current minute bucket and reports whether
// the request fits the budget. The first increment of a bucket sets its
// expiry, so abandoned buckets vanish on their own.
func (l *PortalLimiter) Allow(ctx context.Context, portal entity.Portal) (Decision, error) {
	cfg := entity.RateLimitFor(l.limits, portal)
	now := l.now()
	key := fmt.Sprintf("ratelimit:%s:%d", portal, now.Unix()/60)

	count, err := l.store.IncrWithExpire(ctx, key, bucketTTL)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check for %s: %w", portal, err)
	}

	if count > int64(cfg.RequestsPerMinute) {
		limiterDenied.WithLabelValues(portal.String()).Inc()
		return Decision{
			Allowed:    false,
			Limit:      cfg.RequestsPerMinute,
			Count:      count,
			RetryAfter: cfg.RetryAfter,
		}, nil
	}

	limiterAllowed.WithLabelValues(portal.String()).Inc()
	return Decision{
		Allowed: true,
		Limit:   cfg.RequestsPerMinute,
		Count:   count,
	}, nil
}
