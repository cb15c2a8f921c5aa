// Package repository defines the persistence contracts consumed by the
// syndication use cases. Implementations live under internal/infra.
package repository

import (
	"context"
	"time"

	"listing-syndication/internal/domain/entity"
)

// StatusRepository is the durable per-listing map of portal to last-known
// SyndicationResult. Writes merge by portal key: one portal's update never
// replaces another portal's entry.
//
// Every persisted status change is validated against the syndication state
// machine; out-of-table moves fail with entity.ErrInvalidTransition.
type StatusRepository interface {
	// GetStatuses returns the listing's per-portal result map. Portals the
	// listing was never synced to are absent from the map.
	GetStatuses(ctx context.Context, listingID int64) (map[entity.Portal]entity.SyndicationResult, error)

	// GetResult returns the last-known result for one (listing, portal)
	// pair, or nil when the pair has never been synced.
	GetResult(ctx context.Context, listingID int64, portal entity.Portal) (*entity.SyndicationResult, error)

	// BeginSync transitions the pair to syncing, inserting the row when the
	// pair is new and routing through pending where the table requires it
	// (expired, removed and disabled listings re-enter via pending).
	BeginSync(ctx context.Context, listingID int64, portal entity.Portal) error

	// SaveResult persists the attempt outcome for the result's portal,
	// merged into the listing's map. Returns entity.ErrInvalidTransition
	// when the move is outside the state machine.
	SaveResult(ctx context.Context, listingID int64, res entity.SyndicationResult) error
}

// ListingRepository is the narrow read model of the property catalog plus
// the listing's syndicated-portal set.
type ListingRepository interface {
	// Get returns the listing, or (nil, nil) when it does not exist.
	Get(ctx context.Context, id int64) (*entity.Listing, error)

	// AddSyndicatedPortals records the portals into the listing's
	// syndicated set. The add is idempotent.
	AddSyndicatedPortals(ctx context.Context, listingID int64, portals []entity.Portal) error

	// RemoveSyndicatedPortal drops one portal from the listing's set.
	// Removing an absent portal is not an error.
	RemoveSyndicatedPortal(ctx context.Context, listingID int64, portal entity.Portal) error
}

// AuditEvent is one best-effort audit record summarizing an operation.
type AuditEvent struct {
	ActorID   int64
	Action    string
	ListingID int64
	Details   map[string]any
	CreatedAt time.Time
}

// AuditRepository persists audit events. Callers treat failures as
// non-fatal: an audit write error never fails the operation it describes.
type AuditRepository interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Delivery kinds tracked by the dead-letter queue.
const (
	DeliveryKindWebhook = "webhook"
	DeliveryKindRemoval = "removal"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDead      = "dead"
	DeliverySucceeded = "succeeded"
)

// Delivery is one failed asynchronous operation awaiting retry.
type Delivery struct {
	ID        string
	Kind      string
	Portal    entity.Portal
	ListingID int64
	Payload   []byte
	Signature string
	Attempts  int
	LastError string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeliveryStats summarizes the queue for the admin stats endpoint.
type DeliveryStats struct {
	Pending   int64 `json:"pending"`
	Dead      int64 `json:"dead"`
	Succeeded int64 `json:"succeeded"`
}

// DeliveryRepository is the dead-letter queue's storage.
type DeliveryRepository interface {
	Enqueue(ctx context.Context, d Delivery) error
	Stats(ctx context.Context) (DeliveryStats, error)
	// List returns deliveries with the given status, newest first.
	// An empty status lists every delivery.
	List(ctx context.Context, status string, limit int) ([]Delivery, error)
	// Get returns the delivery, or (nil, nil) when the id is unknown.
	Get(ctx context.Context, id string) (*Delivery, error)
	// ListPending returns retryable deliveries, oldest first.
	ListPending(ctx context.Context, limit int) ([]Delivery, error)
	// MarkAttempt increments the attempt counter and records the error.
	// Deliveries that exhaust maxAttempts move to the dead status.
	MarkAttempt(ctx context.Context, id string, attemptErr string, maxAttempts int) error
	MarkSucceeded(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
