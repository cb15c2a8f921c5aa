package syndication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/ratelimit"
	"listing-syndication/internal/repository"
	"listing-syndication/internal/synclock"
)

// DefaultCallTimeout bounds a single provider call. It must stay well under
// the sync lock TTL so a slow portal cannot outlive the lock protecting it.
const DefaultCallTimeout = 30 * time.Second

var syncOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "syndication_sync_total",
	Help: "Sync attempts by portal and resulting status.",
}, []string{"portal", "status"})

// RemoveResult is the per-portal outcome of RemoveSyndication.
type RemoveResult struct {
	Removed bool                     `json:"removed"`
	Error   *entity.SyndicationError `json:"error,omitempty"`
}

// Service drives the syndication workflow. All collaborators are injected;
// construct once at startup with NewService.
type Service struct {
	listings   repository.ListingRepository
	statuses   repository.StatusRepository
	audit      repository.AuditRepository
	deliveries repository.DeliveryRepository
	registry   *provider.Registry
	limiter    *ratelimit.PortalLimiter
	locks      *synclock.Manager

	callTimeout time.Duration
	logger      *slog.Logger
}

// NewService wires the orchestrator. A zero callTimeout falls back to
// DefaultCallTimeout.
func NewService(
	listings repository.ListingRepository,
	statuses repository.StatusRepository,
	audit repository.AuditRepository,
	deliveries repository.DeliveryRepository,
	registry *provider.Registry,
	limiter *ratelimit.PortalLimiter,
	locks *synclock.Manager,
	callTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		listings:    listings,
		statuses:    statuses,
		audit:       audit,
		deliveries:  deliveries,
		registry:    registry,
		limiter:     limiter,
		locks:       locks,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Syndicate pushes the listing to each requested portal and returns exactly
// one result per distinct portal. Individual portal failures land in the
// result map; only authorization and precondition failures return an error.
func (s *Service) Syndicate(ctx context.Context, actor Actor, listingID int64, portals []entity.Portal) (map[entity.Portal]entity.SyndicationResult, error) {
	listing, err := s.authorize(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.Published {
		return nil, ErrNotPublished
	}
	portals = dedupePortals(portals)
	if len(portals) == 0 {
		return nil, ErrNoPortals
	}

	data := snapshot(listing)
	results := make(map[entity.Portal]entity.SyndicationResult, len(portals))
	var succeeded []entity.Portal
	for _, portal := range portals {
		res := s.syncPortal(ctx, portal, data)
		results[portal] = res
		syncOutcomes.WithLabelValues(portal.String(), res.Status.String()).Inc()
		if res.Status == entity.StatusActive {
			succeeded = append(succeeded, portal)
		}
	}

	if len(succeeded) > 0 {
		if err := s.listings.AddSyndicatedPortals(ctx, listingID, succeeded); err != nil {
			s.logger.Error("record syndicated portals", "listing_id", listingID, "error", err)
		}
	}
	s.recordAudit(ctx, actor, "syndicate", listingID, results)

	return results, nil
}

// syncPortal runs the rate-limit → lock → publish-or-update pipeline for
// one portal. It never returns an error: every failure mode is folded into
// the returned result.
func (s *Service) syncPortal(ctx context.Context, portal entity.Portal, data entity.SyndicationListingData) entity.SyndicationResult {
	listingID := data.ListingID

	decision, err := s.limiter.Allow(ctx, portal)
	if err != nil {
		s.logger.Error("rate limit check", "portal", portal, "error", err)
		return entity.ErrorResult(portal, entity.StatusError, entity.CodeRateLimited,
			"rate limit check failed", true)
	}
	if !decision.Allowed {
		return entity.ErrorResult(portal, entity.StatusError, entity.CodeRateLimited,
			fmt.Sprintf("portal budget of %d/min exhausted, retry after %s", decision.Limit, decision.RetryAfter),
			true)
	}

	lock, err := s.locks.Acquire(ctx, listingID, portal)
	if err != nil {
		if errors.Is(err, synclock.ErrLockHeld) {
			return entity.ErrorResult(portal, entity.StatusSyncing, entity.CodeSyncInProgress,
				"another sync is in flight for this listing and portal", true)
		}
		s.logger.Error("acquire sync lock", "listing_id", listingID, "portal", portal, "error", err)
		return entity.ErrorResult(portal, entity.StatusError, entity.CodeSyncInProgress,
			"sync lock unavailable", true)
	}
	defer func() {
		if err := s.locks.Release(ctx, lock); err != nil {
			s.logger.Warn("release sync lock", "listing_id", listingID, "portal", portal, "error", err)
		}
	}()

	if err := s.statuses.BeginSync(ctx, listingID, portal); err != nil {
		s.logger.Error("begin sync", "listing_id", listingID, "portal", portal, "error", err)
		return entity.ErrorResult(portal, entity.StatusError, entity.CodePublishFailed,
			"could not record sync start", true)
	}

	res := s.callProvider(ctx, portal, data)

	if err := s.statuses.SaveResult(ctx, listingID, res); err != nil {
		// The pair is in syncing here, so every orchestrator outcome is a
		// legal transition; a failure is a store problem, not an FSM one.
		s.logger.Error("save sync result", "listing_id", listingID, "portal", portal, "error", err)
	}
	return res
}

// callProvider decides publish vs update from the stored external id and
// converts provider failures into structured error results.
func (s *Service) callProvider(ctx context.Context, portal entity.Portal, data entity.SyndicationListingData) entity.SyndicationResult {
	listingID := data.ListingID
	prev, err := s.statuses.GetResult(ctx, listingID, portal)
	if err != nil {
		s.logger.Error("load previous result", "listing_id", listingID, "portal", portal, "error", err)
		return entity.ErrorResult(portal, entity.StatusError, entity.CodePublishFailed,
			"could not load previous sync state", true)
	}

	p := s.registry.Resolve(portal)
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	var (
		res      entity.SyndicationResult
		callErr  error
		failCode = entity.CodePublishFailed
	)
	if prev != nil && prev.ExternalID != "" {
		data.ExternalID = prev.ExternalID
		failCode = entity.CodeUpdateFailed
		res, callErr = p.Update(callCtx, data)
	} else {
		res, callErr = p.Publish(callCtx, data)
	}
	if callErr != nil {
		return entity.ErrorResult(portal, entity.StatusError, failCode,
			callErr.Error(), retryable(callErr))
	}

	res.Portal = portal
	if res.SyncedAt.IsZero() {
		res.SyncedAt = time.Now()
	}
	return res
}

// RemoveSyndication delists the listing from each requested portal. Portals
// the listing was never synced to are trivially removed without provider
// contact; failed removals are queued for retry.
func (s *Service) RemoveSyndication(ctx context.Context, actor Actor, listingID int64, portals []entity.Portal) (map[entity.Portal]RemoveResult, error) {
	listing, err := s.authorize(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	portals = dedupePortals(portals)
	if len(portals) == 0 {
		return nil, ErrNoPortals
	}

	results := make(map[entity.Portal]RemoveResult, len(portals))
	for _, portal := range portals {
		results[portal] = s.removePortal(ctx, listing.ID, portal)
	}
	s.recordAudit(ctx, actor, "remove_syndication", listingID, results)
	return results, nil
}

func (s *Service) removePortal(ctx context.Context, listingID int64, portal entity.Portal) RemoveResult {
	prev, err := s.statuses.GetResult(ctx, listingID, portal)
	if err != nil {
		return RemoveResult{Error: &entity.SyndicationError{
			Code:      entity.CodeRemoveFailed,
			Message:   "could not load sync state",
			Retryable: true,
		}}
	}
	if prev == nil || prev.ExternalID == "" {
		// never synced: nothing to delist
		return RemoveResult{Removed: true}
	}

	p := s.registry.Resolve(portal)
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	removed, err := p.Remove(callCtx, listingID, prev.ExternalID)
	if err != nil || !removed {
		msg := "portal refused removal"
		if err != nil {
			msg = err.Error()
		}
		s.enqueueRemovalRetry(ctx, listingID, portal, prev.ExternalID, msg)
		return RemoveResult{Error: &entity.SyndicationError{
			Code:      entity.CodeRemoveFailed,
			Message:   msg,
			Retryable: true,
		}}
	}

	if err := s.statuses.SaveResult(ctx, listingID, entity.SyndicationResult{
		Portal:     portal,
		Status:     entity.StatusRemoved,
		ExternalID: prev.ExternalID,
		SyncedAt:   time.Now(),
	}); err != nil {
		s.logger.Warn("record removal", "listing_id", listingID, "portal", portal, "error", err)
	}
	if err := s.listings.RemoveSyndicatedPortal(ctx, listingID, portal); err != nil {
		s.logger.Error("drop syndicated portal", "listing_id", listingID, "portal", portal, "error", err)
	}
	return RemoveResult{Removed: true}
}

// enqueueRemovalRetry hands a failed delisting to the dead-letter queue so
// the retry worker can finish it later.
func (s *Service) enqueueRemovalRetry(ctx context.Context, listingID int64, portal entity.Portal, externalID, cause string) {
	payload, err := json.Marshal(map[string]string{"external_id": externalID})
	if err != nil {
		payload = nil
	}
	if err := s.deliveries.Enqueue(ctx, repository.Delivery{
		Kind:      repository.DeliveryKindRemoval,
		Portal:    portal,
		ListingID: listingID,
		Payload:   payload,
		LastError: cause,
	}); err != nil {
		s.logger.Error("enqueue removal retry", "listing_id", listingID, "portal", portal, "error", err)
	}
}

// Status returns the listing's per-portal last-known results. Portals the
// listing was never synced to are absent from the map.
func (s *Service) Status(ctx context.Context, actor Actor, listingID int64) (map[entity.Portal]entity.SyndicationResult, error) {
	if _, err := s.authorize(ctx, actor, listingID); err != nil {
		return nil, err
	}
	statuses, err := s.statuses.GetStatuses(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load syndication statuses: %w", err)
	}
	return statuses, nil
}

// authorize loads the listing and checks the actor may manage it.
func (s *Service) authorize(ctx context.Context, actor Actor, listingID int64) (*entity.Listing, error) {
	if actor.UserID == 0 {
		return nil, ErrAuthRequired
	}
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	if !actor.canManage(listing.OwnerID, listing.AgentID) {
		return nil, ErrForbidden
	}
	return listing, nil
}

// recordAudit writes one best-effort event summarizing the request.
// Failures are logged and swallowed; audit never fails the operation.
func (s *Service) recordAudit(ctx context.Context, actor Actor, action string, listingID int64, outcome any) {
	raw, err := json.Marshal(outcome)
	if err != nil {
		s.logger.Warn("encode audit details", "action", action, "error", err)
		return
	}
	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		details = map[string]any{"outcome": string(raw)}
	}
	if err := s.audit.Record(ctx, repository.AuditEvent{
		ActorID:   actor.UserID,
		Action:    action,
		ListingID: listingID,
		Details:   details,
	}); err != nil {
		s.logger.Warn("record audit event", "action", action, "listing_id", listingID, "error", err)
	}
}

// retryable extracts the retry hint from a provider error. Unknown error
// types count as retryable.
func retryable(err error) bool {
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var se *entity.SyndicationError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return true
}
