package entity

import "time"

// WebhookEventType is the closed set of event kinds a portal callback can
// map to. Portal payloads carry arbitrary type strings; each provider owns
// a single mapping function into this set, with EventUnknown as the
// best-effort fallback for unrecognized types.
type WebhookEventType string

const (
	EventStatusChange   WebhookEventType = "status_change"
	EventListingExpired WebhookEventType = "listing_expired"
	EventListingRemoved WebhookEventType = "listing_removed"
	EventError          WebhookEventType = "error"
	EventAnalytics      WebhookEventType = "analytics"
	EventUnknown        WebhookEventType = "unknown"
)

// WebhookEvent is a portal callback normalized by the portal's provider.
// ListingID is the internal listing id recovered from the payload; zero
// means the provider could not map the callback to a known listing.
type WebhookEvent struct {
	Portal     Portal            `json:"portal"`
	Type       WebhookEventType  `json:"type"`
	ListingID  int64             `json:"listing_id"`
	ExternalID string            `json:"external_id,omitempty"`
	Status     SyndicationStatus `json:"status,omitempty"`
	Message    string            `json:"message,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// StatusUpdate returns the syndication status this event implies, and
// whether it implies one at all. Analytics and unknown events carry no
// state change.
func (e *WebhookEvent) StatusUpdate() (SyndicationStatus, bool) {
	switch e.Type {
	case EventStatusChange:
		if e.Status.Valid() {
			return e.Status, true
		}
		return "", false
	case EventListingExpired:
		return StatusExpired, true
	case EventListingRemoved:
		return StatusRemoved, true
	case EventError:
		return StatusError, true
	default:
		return "", false
	}
}
