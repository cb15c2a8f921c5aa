package provider

import (
	"context"
	"log/slog"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/resilience/circuitbreaker"
)

// BreakerProvider wraps a real portal adapter with a circuit breaker so a
// misbehaving portal API stops consuming rate budget and lock time. An open
// circuit surfaces as a retryable PORTAL_UNAVAILABLE provider error.
//
// Stub providers are not wrapped; their failures are simulated and cheap.
type BreakerProvider struct {
	inner   Provider
	breaker *circuitbreaker.CircuitBreaker
}

var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps the adapter with a portal-API circuit breaker.
func NewBreakerProvider(inner Provider, logger *slog.Logger) *BreakerProvider {
	cfg := circuitbreaker.PortalAPIConfig(inner.Name().String())
	return &BreakerProvider{
		inner:   inner,
		breaker: circuitbreaker.New(cfg),
	}
}

// Name returns the wrapped adapter's portal.
func (b *BreakerProvider) Name() entity.Portal { return b.inner.Name() }

// Unwrap returns the wrapped adapter, for callers that need a capability
// beyond the Provider interface, such as the mock's webhook signer.
func (b *BreakerProvider) Unwrap() Provider { return b.inner }

func (b *BreakerProvider) execute(fn func() (interface{}, error)) (interface{}, error) {
	out, err := b.breaker.Execute(fn)
	if err != nil && b.breaker.IsOpen() {
		return nil, &ProviderError{
			Code:      "PORTAL_UNAVAILABLE",
			Message:   b.inner.Name().String() + ": circuit open",
			Retryable: true,
		}
	}
	return out, err
}

// Publish runs the adapter's Publish through the breaker.
func (b *BreakerProvider) Publish(ctx context.Context, listing entity.SyndicationListingData) (entity.SyndicationResult, error) {
	out, err := b.execute(func() (interface{}, error) {
		return b.inner.Publish(ctx, listing)
	})
	if err != nil {
		return entity.SyndicationResult{}, err
	}
	return out.(entity.SyndicationResult), nil
}

// Update runs the adapter's Update through the breaker.
func (b *BreakerProvider) Update(ctx context.Context, listing entity.SyndicationListingData) (entity.SyndicationResult, error) {
	out, err := b.execute(func() (interface{}, error) {
		return b.inner.Update(ctx, listing)
	})
	if err != nil {
		return entity.SyndicationResult{}, err
	}
	return out.(entity.SyndicationResult), nil
}

// Remove runs the adapter's Remove through the breaker.
func (b *BreakerProvider) Remove(ctx context.Context, listingID int64, externalID string) (bool, error) {
	out, err := b.execute(func() (interface{}, error) {
		return b.inner.Remove(ctx, listingID, externalID)
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// GetStatus runs the adapter's GetStatus through the breaker.
func (b *BreakerProvider) GetStatus(ctx context.Context, externalID string) (*entity.SyndicationResult, error) {
	out, err := b.execute(func() (interface{}, error) {
		return b.inner.GetStatus(ctx, externalID)
	})
	if err != nil {
		return nil, err
	}
	return out.(*entity.SyndicationResult), nil
}

// VerifyWebhook delegates to the adapter when it handles webhooks.
// Signature verification is local, so it bypasses the breaker.
func (b *BreakerProvider) VerifyWebhook(payload []byte, signature string) (*entity.WebhookEvent, error) {
	wh, ok := b.inner.(WebhookHandler)
	if !ok {
		return nil, &ProviderError{Code: "WEBHOOKS_UNSUPPORTED", Message: b.inner.Name().String() + ": no webhook support"}
	}
	return wh.VerifyWebhook(payload, signature)
}

// HealthCheck delegates to the adapter when it supports probing.
func (b *BreakerProvider) HealthCheck(ctx context.Context) HealthStatus {
	if hc, ok := b.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return HealthStatus{Healthy: !b.breaker.IsOpen()}
}
