// Package provider defines the portal integration contract, the stub
// implementation used when no real adapter is configured, and the registry
// that resolves which implementation serves each portal.
package provider

import (
	"context"
	"time"

	"listing-syndication/internal/domain/entity"
)

// Provider is the capability every portal integration must satisfy.
//
// Expected failures (network errors, business rejections) are returned as
// errors, preferably *ProviderError so callers can read the retryable flag;
// panics are reserved for programmer errors.
//
// The contract does not guarantee idempotency of Publish under retry; the
// orchestrator's lock manager provides that. All methods must be safe for
// concurrent use and must respect context cancellation.
type Provider interface {
	// Name returns the portal this provider publishes to.
	Name() entity.Portal

	// Publish creates a new external listing from the snapshot.
	Publish(ctx context.Context, listing entity.SyndicationListingData) (entity.SyndicationResult, error)

	// Update mutates an existing external listing. The snapshot's
	// ExternalID must carry the portal-assigned identifier.
	Update(ctx context.Context, listing entity.SyndicationListingData) (entity.SyndicationResult, error)

	// Remove deletes the external listing. Returns whether the portal
	// reported the listing as removed.
	Remove(ctx context.Context, listingID int64, externalID string) (bool, error)

	// GetStatus returns the portal's current view of the external listing,
	// or (nil, nil) when the portal does not know the id.
	GetStatus(ctx context.Context, externalID string) (*entity.SyndicationResult, error)
}

// BatchPublisher is an optional capability for portals with a bulk API.
// Each element of the returned slice independently succeeds or fails; a
// single item failure must not abort the batch.
type BatchPublisher interface {
	BatchPublish(ctx context.Context, listings []entity.SyndicationListingData) ([]entity.SyndicationResult, error)
}

// WebhookHandler is an optional capability for portals that deliver signed status
// callbacks. VerifyWebhook checks the signature and parses the payload into
// a normalized event; an invalid signature or malformed payload returns an
// error, never a panic.
type WebhookHandler interface {
	VerifyWebhook(payload []byte, signature string) (*entity.WebhookEvent, error)
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency_ms"`
}

// HealthChecker is an optional capability for providers that can probe
// their portal's availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) HealthStatus
}

// ProviderError is a structured portal-level failure. Retryable marks
// transient conditions (timeouts, 5xx, throttling) the orchestrator may
// surface as retryable to its own callers.
type ProviderError struct {
	Code      string
	Message   string
	Retryable bool
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return e.Code + ": " + e.Message
}
