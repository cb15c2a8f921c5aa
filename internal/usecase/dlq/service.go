// Package dlq manages the dead-letter queue of failed asynchronous
// deliveries (webhook replays and portal delistings) and the worker that
// retries them.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/repository"
	"listing-syndication/internal/resilience/retry"
)

// Defaults for the retry pipeline.
const (
	DefaultMaxAttempts = 5
	DefaultBatchSize   = 50
	DefaultCallTimeout = 30 * time.Second
)

// ErrDeliveryNotFound indicates the delivery id is unknown.
var ErrDeliveryNotFound = errors.New("delivery not found")

var replays = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "syndication_dlq_replays_total",
	Help: "Dead-letter replays by kind and outcome.",
}, []string{"kind", "outcome"})

// removalPayload is the wire shape a failed delisting is parked with.
type removalPayload struct {
	ExternalID string `json:"external_id"`
}

// Service replays parked deliveries and exposes the admin queue surface.
type Service struct {
	deliveries repository.DeliveryRepository
	statuses   repository.StatusRepository
	listings   repository.ListingRepository
	registry   *provider.Registry

	pace        *rate.Limiter
	retryCfg    retry.Config
	maxAttempts int
	batchSize   int
	callTimeout time.Duration
	logger      *slog.Logger
}

// Options tune the replay pipeline. Zero values fall back to defaults.
type Options struct {
	// Pace bounds outbound replay throughput across all portals.
	Pace *rate.Limiter
	// RetryCfg is the in-call backoff applied around each replay.
	RetryCfg *retry.Config
	// MaxAttempts dead-letters a delivery after this many failed sweeps.
	MaxAttempts int
	BatchSize   int
	CallTimeout time.Duration
}

// NewService wires the queue service.
func NewService(
	deliveries repository.DeliveryRepository,
	statuses repository.StatusRepository,
	listings repository.ListingRepository,
	registry *provider.Registry,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.Pace == nil {
		// one replay per second, small burst
		opts.Pace = rate.NewLimiter(rate.Limit(1), 5)
	}
	retryCfg := retry.PortalCallConfig()
	if opts.RetryCfg != nil {
		retryCfg = *opts.RetryCfg
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deliveries:  deliveries,
		statuses:    statuses,
		listings:    listings,
		registry:    registry,
		pace:        opts.Pace,
		retryCfg:    retryCfg,
		maxAttempts: opts.MaxAttempts,
		batchSize:   opts.BatchSize,
		callTimeout: opts.CallTimeout,
		logger:      logger,
	}
}

// Stats summarizes the queue.
func (s *Service) Stats(ctx context.Context) (repository.DeliveryStats, error) {
	return s.deliveries.Stats(ctx)
}

// List returns deliveries newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit int) ([]repository.Delivery, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.deliveries.List(ctx, status, limit)
}

// Get returns one delivery.
func (s *Service) Get(ctx context.Context, id string) (*repository.Delivery, error) {
	d, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDeliveryNotFound
	}
	return d, nil
}

// Retry replays one delivery immediately, regardless of its status.
// Administrators use this to revive dead entries.
func (s *Service) Retry(ctx context.Context, id string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.attempt(ctx, *d)
}

// Delete removes one delivery from the queue.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.deliveries.Delete(ctx, id)
}

// Sweep replays a batch of pending deliveries, paced by the rate limiter.
// Returns the number of deliveries attempted.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	pending, err := s.deliveries.ListPending(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending deliveries: %w", err)
	}

	attempted := 0
	for _, d := range pending {
		if err := s.pace.Wait(ctx); err != nil {
			return attempted, fmt.Errorf("pace sweep: %w", err)
		}
		if err := s.attempt(ctx, d); err != nil {
			s.logger.Warn("delivery replay failed",
				"delivery_id", d.ID, "kind", d.Kind,
				"portal", d.Portal, "error", err)
		}
		attempted++
	}
	return attempted, nil
}

// attempt replays one delivery and records the outcome.
func (s *Service) attempt(ctx context.Context, d repository.Delivery) error {
	err := retry.WithBackoff(ctx, s.retryCfg, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
		return s.replay(callCtx, d)
	})
	if err != nil {
		replays.WithLabelValues(d.Kind, "failed").Inc()
		if markErr := s.deliveries.MarkAttempt(ctx, d.ID, err.Error(), s.maxAttempts); markErr != nil {
			s.logger.Error("mark delivery attempt", "delivery_id", d.ID, "error", markErr)
		}
		return err
	}
	replays.WithLabelValues(d.Kind, "succeeded").Inc()
	if markErr := s.deliveries.MarkSucceeded(ctx, d.ID); markErr != nil {
		s.logger.Error("mark delivery succeeded", "delivery_id", d.ID, "error", markErr)
	}
	return nil
}

// replay performs the delivery-kind-specific work once.
func (s *Service) replay(ctx context.Context, d repository.Delivery) error {
	switch d.Kind {
	case repository.DeliveryKindWebhook:
		return s.replayWebhook(ctx, d)
	case repository.DeliveryKindRemoval:
		return s.replayRemoval(ctx, d)
	default:
		return &entity.SyndicationError{
			Code:    entity.CodeInvalidWebhook,
			Message: fmt.Sprintf("unknown delivery kind %q", d.Kind),
		}
	}
}

// replayWebhook re-verifies the parked callback and applies its status
// update. Stale transitions count as success: the state already moved on.
func (s *Service) replayWebhook(ctx context.Context, d repository.Delivery) error {
	p := s.registry.Resolve(d.Portal)
	handler, ok := p.(provider.WebhookHandler)
	if !ok {
		return &entity.SyndicationError{
			Code:    entity.CodeInvalidWebhook,
			Message: "portal has no webhook support",
		}
	}
	event, err := handler.VerifyWebhook(d.Payload, d.Signature)
	if err != nil {
		return &entity.SyndicationError{
			Code:    entity.CodeInvalidWebhook,
			Message: err.Error(),
		}
	}

	status, hasUpdate := event.StatusUpdate()
	if !hasUpdate {
		return nil
	}
	syncedAt := event.OccurredAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	err = s.statuses.SaveResult(ctx, d.ListingID, entity.SyndicationResult{
		Portal:     d.Portal,
		Status:     status,
		ExternalID: event.ExternalID,
		SyncedAt:   syncedAt,
	})
	if errors.Is(err, entity.ErrInvalidTransition) {
		return nil
	}
	if err != nil {
		return &entity.SyndicationError{
			Code:      entity.CodePublishFailed,
			Message:   err.Error(),
			Retryable: true,
		}
	}
	return nil
}

// replayRemoval retries the portal delisting and finishes the local
// bookkeeping the original request could not.
func (s *Service) replayRemoval(ctx context.Context, d repository.Delivery) error {
	var payload removalPayload
	if len(d.Payload) > 0 {
		if err := json.Unmarshal(d.Payload, &payload); err != nil {
			return &entity.SyndicationError{
				Code:    entity.CodeRemoveFailed,
				Message: fmt.Sprintf("decode removal payload: %v", err),
			}
		}
	}

	p := s.registry.Resolve(d.Portal)
	removed, err := p.Remove(ctx, d.ListingID, payload.ExternalID)
	if err != nil {
		return &entity.SyndicationError{
			Code:      entity.CodeRemoveFailed,
			Message:   err.Error(),
			Retryable: true,
		}
	}
	if !removed {
		return &entity.SyndicationError{
			Code:      entity.CodeRemoveFailed,
			Message:   "portal refused removal",
			Retryable: true,
		}
	}

	if err := s.statuses.SaveResult(ctx, d.ListingID, entity.SyndicationResult{
		Portal:     d.Portal,
		Status:     entity.StatusRemoved,
		ExternalID: payload.ExternalID,
		SyncedAt:   time.Now(),
	}); err != nil && !errors.Is(err, entity.ErrInvalidTransition) {
		s.logger.Warn("record replayed removal",
			"listing_id", d.ListingID, "portal", d.Portal, "error", err)
	}
	if err := s.listings.RemoveSyndicatedPortal(ctx, d.ListingID, d.Portal); err != nil {
		s.logger.Error("drop syndicated portal",
			"listing_id", d.ListingID, "portal", d.Portal, "error", err)
	}
	return nil
}
