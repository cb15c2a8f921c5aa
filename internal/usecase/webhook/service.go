// Package webhook ingests portal callbacks: signature verification is
// delegated to the portal's provider, valid events update the durable
// status map through the transition-checked repository.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/repository"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "syndication_webhook_events_total",
	Help: "Webhook events by portal and outcome.",
}, []string{"portal", "outcome"})

// Result reports what happened to one callback. Invalid requests carry
// Valid=false and no event; they never produce side effects.
type Result struct {
	Valid   bool                 `json:"valid"`
	Applied bool                 `json:"applied"`
	Event   *entity.WebhookEvent `json:"event,omitempty"`
}

// Service processes inbound portal callbacks.
type Service struct {
	registry   *provider.Registry
	statuses   repository.StatusRepository
	deliveries repository.DeliveryRepository
	logger     *slog.Logger
}

// NewService wires the webhook processor.
func NewService(registry *provider.Registry, statuses repository.StatusRepository, deliveries repository.DeliveryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:   registry,
		statuses:   statuses,
		deliveries: deliveries,
		logger:     logger,
	}
}

// Process verifies and applies one callback. It never returns an error for
// bad input: unverifiable or unmappable payloads come back Valid=false.
func (s *Service) Process(ctx context.Context, portal entity.Portal, rawBody []byte, signature string) Result {
	p := s.registry.Resolve(portal)
	handler, ok := p.(provider.WebhookHandler)
	if !ok {
		eventsProcessed.WithLabelValues(portal.String(), "unsupported").Inc()
		return Result{}
	}

	event, err := handler.VerifyWebhook(rawBody, signature)
	if err != nil {
		s.logger.Warn("webhook rejected", "portal", portal, "error", err)
		eventsProcessed.WithLabelValues(portal.String(), "invalid").Inc()
		return Result{}
	}
	if event.ListingID == 0 {
		s.logger.Warn("webhook carries no recognized listing id", "portal", portal, "type", event.Type)
		eventsProcessed.WithLabelValues(portal.String(), "invalid").Inc()
		return Result{}
	}
	event.Portal = portal

	status, hasUpdate := event.StatusUpdate()
	if !hasUpdate {
		// analytics and unknown events verify fine but change no state
		eventsProcessed.WithLabelValues(portal.String(), "no_change").Inc()
		return Result{Valid: true, Event: event}
	}

	syncedAt := event.OccurredAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	err = s.statuses.SaveResult(ctx, event.ListingID, entity.SyndicationResult{
		Portal:     portal,
		Status:     status,
		ExternalID: event.ExternalID,
		SyncedAt:   syncedAt,
	})
	switch {
	case err == nil:
		eventsProcessed.WithLabelValues(portal.String(), "applied").Inc()
		return Result{Valid: true, Applied: true, Event: event}
	case errors.Is(err, entity.ErrInvalidTransition):
		// stale or out-of-order callback; drop it, do not retry
		s.logger.Warn("webhook status update skipped",
			"portal", portal, "listing_id", event.ListingID,
			"status", status, "error", err)
		eventsProcessed.WithLabelValues(portal.String(), "skipped").Inc()
		return Result{Valid: true, Event: event}
	default:
		s.logger.Error("persist webhook status",
			"portal", portal, "listing_id", event.ListingID, "error", err)
		s.enqueueRetry(ctx, portal, event.ListingID, rawBody, signature, err)
		eventsProcessed.WithLabelValues(portal.String(), "deferred").Inc()
		return Result{Valid: true, Event: event}
	}
}

// enqueueRetry parks the raw callback in the dead-letter queue so the
// retry worker can replay it once the store recovers.
func (s *Service) enqueueRetry(ctx context.Context, portal entity.Portal, listingID int64, rawBody []byte, signature string, cause error) {
	if err := s.deliveries.Enqueue(ctx, repository.Delivery{
		Kind:      repository.DeliveryKindWebhook,
		Portal:    portal,
		ListingID: listingID,
		Payload:   rawBody,
		Signature: signature,
		LastError: cause.Error(),
	}); err != nil {
		s.logger.Error("enqueue webhook retry", "portal", portal, "listing_id", listingID, "error", err)
	}
}
