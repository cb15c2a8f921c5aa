// Package synclock provides distributed, TTL-bounded mutual exclusion per
// (listing, portal) pair. The lock guarantees at most one in-flight
// publish/update call per pair system-wide when backed by a shared store.
//
// The lock is reject-and-retry, not block-and-wait: a failed acquisition is
// reported to the caller immediately. The TTL is the sole crash-safety net;
// a holder that dies mid-sync releases the pair automatically at expiry.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/kvstore"
)

// DefaultTTL bounds how long a crashed holder can block a pair. Provider
// calls carry a shorter timeout, so a live holder always finishes first.
const DefaultTTL = 2 * time.Minute

// ErrLockHeld indicates another sync is already in flight for the pair.
var ErrLockHeld = errors.New("sync already in progress")

var lockContention = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "syndication_lock_contention_total",
		Help: "Lock acquisitions rejected because a sync was already in flight",
	},
	[]string{"portal"},
)

// Lock is a held (listing, portal) lock. Release it with Manager.Release;
// the owner token prevents releasing a lock that has expired and been
// re-acquired by another holder.
type Lock struct {
	key   string
	token string
}

// Manager acquires and releases sync locks in a shared store.
type Manager struct {
	store kvstore.Store
	ttl   time.Duration
}

// NewManager creates a lock manager with the given TTL.
// A non-positive TTL falls back to DefaultTTL.
func NewManager(store kvstore.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// Acquire attempts to take the (listing, portal) lock. Returns ErrLockHeld
// without waiting when another holder owns it.
func (m *Manager) Acquire(ctx context.Context, listingID int64, portal entity.Portal) (*Lock, error) {
	key := fmt.Sprintf("synclock:%d:%s", listingID, portal)
	token := uuid.NewString()

	ok, err := m.store.SetNX(ctx, key, token, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		lockContention.WithLabelValues(portal.String()).Inc()
		return nil, ErrLockHeld
	}
	return &Lock{key: key, token: token}, nil
}

// Release frees the lock if it is still owned by this holder. A lock whose
// TTL expired and was taken over by someone else is left untouched. The
// token check and the delete are one atomic store operation.
func (m *Manager) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	if _, err := m.store.DelIfEquals(ctx, lock.key, lock.token); err != nil {
		return fmt.Errorf("release lock %s: %w", lock.key, err)
	}
	return nil
}
