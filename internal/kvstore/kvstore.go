// Package kvstore provides the narrow key-value store contract shared by
// the rate limiter and the sync lock manager: atomic increment-with-expiry
// for minute-bucket counters and atomic set-if-not-exists for TTL locks.
//
// Two implementations exist: a redis-backed store for multi-process
// deployments and an in-memory store for development and tests. The
// invariants in the rate limiter and lock manager hold across processes
// only with a shared backend.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// Store is the atomic primitive set required by rate limiting and locking.
// All methods must be safe for concurrent use.
type Store interface {
	// IncrWithExpire atomically increments the counter at key and returns
	// the new value. The expiry is attached only when the increment created
	// the key, so a bucket's lifetime is fixed by its first request.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SetNX sets key to value with the given TTL only if the key does not
	// already exist. Returns true when the key was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Del removes the key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// DelIfEquals removes the key only while it still holds value, as one
	// atomic step. Returns true when the key was deleted. Lock release
	// depends on this: a separate read-compare-delete would race with a
	// TTL expiry and delete the next holder's lock.
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
}
