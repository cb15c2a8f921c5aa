package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"listing-syndication/internal/domain/entity"
)

// batchConcurrency bounds parallel item publishes inside one batch call.
const batchConcurrency = 4

// MockConfig tunes the stub's simulated behavior.
type MockConfig struct {
	// MinLatency/MaxLatency bound the simulated portal round trip.
	MinLatency time.Duration
	MaxLatency time.Duration

	// FailureRate is the probability (0..1) that a call fails with a
	// retryable transient error.
	FailureRate float64

	// WebhookSecret signs and verifies webhook payloads (HMAC-SHA256).
	WebhookSecret string

	// Seed makes latency and failure simulation deterministic in tests.
	// Zero seeds from the current time.
	Seed int64
}

// DefaultMockConfig returns the stub defaults: 50-200ms latency, 5%
// transient failure rate.
func DefaultMockConfig(portal entity.Portal) MockConfig {
	return MockConfig{
		MinLatency:    50 * time.Millisecond,
		MaxLatency:    200 * time.Millisecond,
		FailureRate:   0.05,
		WebhookSecret: fmt.Sprintf("mock-secret-%s", portal),
	}
}

// MockProvider is the default in-memory Provider used whenever a real
// adapter or credentials are absent. It keeps the full set of optional
// capabilities so every code path is exercisable without partner access.
type MockProvider struct {
	portal entity.Portal
	state  *ListingStateStore
	cfg    MockConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Interface conformance.
var (
	_ Provider       = (*MockProvider)(nil)
	_ BatchPublisher = (*MockProvider)(nil)
	_ WebhookHandler = (*MockProvider)(nil)
	_ HealthChecker  = (*MockProvider)(nil)
)

// NewMockProvider creates a stub provider for the portal backed by the
// given state store. The store is injected so tests own its lifetime.
func NewMockProvider(portal entity.Portal, state *ListingStateStore, cfg MockConfig, logger *slog.Logger) *MockProvider {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockProvider{
		portal: portal,
		state:  state,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Name returns the portal this stub publishes to.
func (m *MockProvider) Name() entity.Portal { return m.portal }

// simulateCall sleeps for a random latency and rolls the failure dice.
// Context cancellation wins over the sleep.
func (m *MockProvider) simulateCall(ctx context.Context) error {
	m.mu.Lock()
	latency := m.cfg.MinLatency
	if spread := m.cfg.MaxLatency - m.cfg.MinLatency; spread > 0 {
		latency += time.Duration(m.rng.Int63n(int64(spread)))
	}
	fail := m.rng.Float64() < m.cfg.FailureRate
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return &ProviderError{
			Code:      "PORTAL_UNAVAILABLE",
			Message:   fmt.Sprintf("%s: simulated transient failure", m.portal),
			Retryable: true,
		}
	}
	return nil
}

// Publish creates a new external listing with a generated id and URL.
func (m *MockProvider) Publish(ctx context.Context, listing entity.SyndicationListingData) (entity.SyndicationResult, error) {
	if err := m.simulateCall(ctx); err != nil {
		return entity.SyndicationResult{}, err
	}

	externalID := fmt.Sprintf("%s-%s", m.portal, uuid.NewString())
	externalURL := fmt.Sprintf("https://%s.example.com/listing/%s", m.portal, externalID)
	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)

	m.state.Put(ListingStateRecord{
		ListingID:   listing.ListingID,
		Portal:      m.portal,
		ExternalID:  externalID,
		Status:      entity.StatusActive,
		ExternalURL: externalURL,
		LastSynced:  now,
	})

	m.logger.Debug("mock publish",
		slog.String("portal", m.portal.String()),
		slog.Int64("listing_id", listing.ListingID),
		slog.String("external_id", externalID))

	return entity.SyndicationResult{
		Portal:      m.portal,
		Status:      entity.StatusActive,
		ExternalID:  externalID,
		ExternalURL: externalURL,
		SyncedAt:    now,
		ExpiresAt:   &expires,
	}, nil
}

// Update refreshes an existing external listing. Unknown external ids fail
// with a non-retryable LISTING_NOT_FOUND.
func (m *MockProvider) Update(ctx context.Context, listing entity.SyndicationListingData) (entity.SyndicationResult, error) {
	if err := m.simulateCall(ctx); err != nil {
		return entity.SyndicationResult{}, err
	}

	rec := m.state.Get(listing.ListingID, m.portal)
	if rec == nil || rec.ExternalID != listing.ExternalID {
		return entity.SyndicationResult{}, &ProviderError{
			Code:      "LISTING_NOT_FOUND",
			Message:   fmt.Sprintf("%s: external listing %q not found", m.portal, listing.ExternalID),
			Retryable: false,
		}
	}

	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)
	rec.Status = entity.StatusActive
	rec.LastSynced = now
	m.state.Put(*rec)

	return entity.SyndicationResult{
		Portal:      m.portal,
		Status:      entity.StatusActive,
		ExternalID:  rec.ExternalID,
		ExternalURL: rec.ExternalURL,
		SyncedAt:    now,
		ExpiresAt:   &expires,
	}, nil
}

// Remove marks the pair's record removed. The record stays for audit.
func (m *MockProvider) Remove(ctx context.Context, listingID int64, externalID string) (bool, error) {
	if err := m.simulateCall(ctx); err != nil {
		return false, err
	}
	return m.state.MarkRemoved(listingID, m.portal), nil
}

// GetStatus reports the portal's view of an external listing, or (nil, nil)
// for unknown ids.
func (m *MockProvider) GetStatus(ctx context.Context, externalID string) (*entity.SyndicationResult, error) {
	if err := m.simulateCall(ctx); err != nil {
		return nil, err
	}
	rec := m.state.GetByExternalID(externalID)
	if rec == nil {
		return nil, nil
	}
	return &entity.SyndicationResult{
		Portal:      m.portal,
		Status:      rec.Status,
		ExternalID:  rec.ExternalID,
		ExternalURL: rec.ExternalURL,
		SyncedAt:    rec.LastSynced,
	}, nil
}

// BatchPublish publishes items with bounded concurrency. A failed item
// yields a result carrying a BATCH_ITEM_FAILED error; it never aborts the
// batch. Results are positionally aligned with the input.
func (m *MockProvider) BatchPublish(ctx context.Context, listings []entity.SyndicationListingData) ([]entity.SyndicationResult, error) {
	results := make([]entity.SyndicationResult, len(listings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, listing := range listings {
		g.Go(func() error {
			res, err := m.Publish(gctx, listing)
			if err != nil {
				retryable := true
				var perr *ProviderError
				if errors.As(err, &perr) {
					retryable = perr.Retryable
				}
				results[i] = entity.ErrorResult(m.portal, entity.StatusError,
					entity.CodeBatchItemFailed, err.Error(), retryable)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch publish: %w", err)
	}
	return results, nil
}

// mockWebhookPayload is the wire shape the stub signs and parses.
type mockWebhookPayload struct {
	EventType  string `json:"event_type"`
	ListingID  int64  `json:"listing_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

// VerifyWebhook checks the HMAC-SHA256 hex signature over the raw payload
// and parses it into a normalized event. Unrecognized event type strings
// map to EventUnknown rather than failing.
func (m *MockProvider) VerifyWebhook(payload []byte, signature string) (*entity.WebhookEvent, error) {
	if !hmac.Equal([]byte(m.SignWebhook(payload)), []byte(signature)) {
		return nil, &ProviderError{Code: "INVALID_SIGNATURE", Message: "webhook signature mismatch"}
	}

	var p mockWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &ProviderError{Code: "MALFORMED_PAYLOAD", Message: fmt.Sprintf("decode webhook payload: %v", err)}
	}

	event := &entity.WebhookEvent{
		Portal:     m.portal,
		Type:       mapMockEventType(p.EventType),
		ListingID:  p.ListingID,
		ExternalID: p.ExternalID,
		Message:    p.Message,
		OccurredAt: time.Unix(p.Timestamp, 0),
	}
	if p.Status != "" {
		if st, err := entity.ParseSyndicationStatus(p.Status); err == nil {
			event.Status = st
		}
	}
	return event, nil
}

// mapMockEventType is the single mapping function from the portal's raw
// event strings into the closed internal set.
func mapMockEventType(raw string) entity.WebhookEventType {
	switch raw {
	case "status_change":
		return entity.EventStatusChange
	case "listing_expired":
		return entity.EventListingExpired
	case "listing_removed":
		return entity.EventListingRemoved
	case "error":
		return entity.EventError
	case "analytics":
		return entity.EventAnalytics
	default:
		return entity.EventUnknown
	}
}

// SignWebhook computes the hex HMAC-SHA256 signature the stub expects.
// Exposed so tests and local tooling can produce valid callbacks.
func (m *MockProvider) SignWebhook(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(m.cfg.WebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HealthCheck always reports healthy with the simulated minimum latency.
func (m *MockProvider) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{Healthy: true, Latency: m.cfg.MinLatency}
}
