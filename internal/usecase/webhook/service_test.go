package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/repository"
)

type fakeStatusRepo struct {
	rows    map[int64]map[entity.Portal]entity.SyndicationResult
	saveErr error
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{rows: make(map[int64]map[entity.Portal]entity.SyndicationResult)}
}

func (r *fakeStatusRepo) GetStatuses(_ context.Context, listingID int64) (map[entity.Portal]entity.SyndicationResult, error) {
	return r.rows[listingID], nil
}

func (r *fakeStatusRepo) GetResult(_ context.Context, listingID int64, portal entity.Portal) (*entity.SyndicationResult, error) {
	res, ok := r.rows[listingID][portal]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *fakeStatusRepo) BeginSync(context.Context, int64, entity.Portal) error { return nil }

func (r *fakeStatusRepo) SaveResult(_ context.Context, listingID int64, res entity.SyndicationResult) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	row := r.rows[listingID]
	if row == nil {
		row = make(map[entity.Portal]entity.SyndicationResult)
		r.rows[listingID] = row
	}
	if current, ok := row[res.Portal]; ok {
		if err := current.Status.CheckTransition(res.Status); err != nil {
			return err
		}
	}
	row[res.Portal] = res
	return nil
}

func (r *fakeStatusRepo) seed(listingID int64, portal entity.Portal, status entity.SyndicationStatus) {
	row := r.rows[listingID]
	if row == nil {
		row = make(map[entity.Portal]entity.SyndicationResult)
		r.rows[listingID] = row
	}
	row[portal] = entity.SyndicationResult{Portal: portal, Status: status, ExternalID: "ext-1"}
}

type fakeDeliveryRepo struct {
	entries []repository.Delivery
}

func (r *fakeDeliveryRepo) Enqueue(_ context.Context, d repository.Delivery) error {
	r.entries = append(r.entries, d)
	return nil
}

func (r *fakeDeliveryRepo) Stats(context.Context) (repository.DeliveryStats, error) {
	return repository.DeliveryStats{}, nil
}
func (r *fakeDeliveryRepo) List(context.Context, string, int) ([]repository.Delivery, error) {
	return nil, nil
}
func (r *fakeDeliveryRepo) Get(context.Context, string) (*repository.Delivery, error) {
	return nil, nil
}
func (r *fakeDeliveryRepo) ListPending(context.Context, int) ([]repository.Delivery, error) {
	return nil, nil
}
func (r *fakeDeliveryRepo) MarkAttempt(context.Context, string, string, int) error { return nil }
func (r *fakeDeliveryRepo) MarkSucceeded(context.Context, string) error            { return nil }
func (r *fakeDeliveryRepo) Delete(context.Context, string) error                   { return nil }

type fixture struct {
	svc        *Service
	statuses   *fakeStatusRepo
	deliveries *fakeDeliveryRepo
	registry   *provider.Registry
}

// newFixture builds the processor over a registry whose providers are all
// stubs, so webhook secrets are the mock defaults.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &provider.Config{Portals: map[entity.Portal]provider.PortalConfig{}}
	reg := provider.NewRegistry(cfg, provider.NewListingStateStore(), slog.Default())
	f := &fixture{
		statuses:   newFakeStatusRepo(),
		deliveries: &fakeDeliveryRepo{},
		registry:   reg,
	}
	f.svc = NewService(reg, f.statuses, f.deliveries, slog.Default())
	return f
}

// sign produces a valid signature using the resolved stub's secret.
func (f *fixture) sign(t *testing.T, portal entity.Portal, payload []byte) string {
	t.Helper()
	mock, ok := f.registry.Resolve(portal).(*provider.MockProvider)
	require.True(t, ok, "stub expected for %s", portal)
	return mock.SignWebhook(payload)
}

func eventPayload(t *testing.T, eventType string, listingID int64) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event_type":  eventType,
		"listing_id":  listingID,
		"external_id": "ext-1",
		"timestamp":   time.Now().Unix(),
	})
	require.NoError(t, err)
	return raw
}

func TestProcess_AppliesExpiredEvent(t *testing.T) {
	f := newFixture(t)
	f.statuses.seed(7, entity.PortalZillow, entity.StatusActive)

	payload := eventPayload(t, "listing_expired", 7)
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, f.sign(t, entity.PortalZillow, payload))

	assert.True(t, res.Valid)
	assert.True(t, res.Applied)
	require.NotNil(t, res.Event)
	assert.Equal(t, entity.EventListingExpired, res.Event.Type)
	assert.Equal(t, entity.StatusExpired, f.statuses.rows[7][entity.PortalZillow].Status)
}

func TestProcess_BadSignature(t *testing.T) {
	f := newFixture(t)
	f.statuses.seed(7, entity.PortalZillow, entity.StatusActive)

	payload := eventPayload(t, "listing_removed", 7)
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, "deadbeef")

	assert.False(t, res.Valid)
	assert.Nil(t, res.Event)
	// no side effects
	assert.Equal(t, entity.StatusActive, f.statuses.rows[7][entity.PortalZillow].Status)
	assert.Empty(t, f.deliveries.entries)
}

func TestProcess_MalformedPayloadWithGoodSignature(t *testing.T) {
	f := newFixture(t)

	payload := []byte(`{"event_type": "error", "listing_id": `) // truncated
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, f.sign(t, entity.PortalZillow, payload))

	assert.False(t, res.Valid)
	assert.Empty(t, f.statuses.rows)
}

func TestProcess_UnrecognizedListingID(t *testing.T) {
	f := newFixture(t)

	payload := eventPayload(t, "listing_expired", 0)
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, f.sign(t, entity.PortalZillow, payload))

	assert.False(t, res.Valid)
	assert.Empty(t, f.statuses.rows)
}

func TestProcess_AnalyticsCarriesNoStateChange(t *testing.T) {
	f := newFixture(t)
	f.statuses.seed(7, entity.PortalTrulia, entity.StatusActive)

	payload := eventPayload(t, "analytics", 7)
	res := f.svc.Process(context.Background(), entity.PortalTrulia, payload, f.sign(t, entity.PortalTrulia, payload))

	assert.True(t, res.Valid)
	assert.False(t, res.Applied)
	assert.Equal(t, entity.StatusActive, f.statuses.rows[7][entity.PortalTrulia].Status)
}

func TestProcess_UnknownEventType(t *testing.T) {
	f := newFixture(t)

	payload := eventPayload(t, "listing_viewed", 7)
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, f.sign(t, entity.PortalZillow, payload))

	assert.True(t, res.Valid)
	assert.False(t, res.Applied)
	require.NotNil(t, res.Event)
	assert.Equal(t, entity.EventUnknown, res.Event.Type)
	assert.Empty(t, f.statuses.rows)
}

// A stale callback whose implied transition is outside the table is
// dropped without being retried.
func TestProcess_IllegalTransitionSkipped(t *testing.T) {
	f := newFixture(t)
	f.statuses.seed(7, entity.PortalZillow, entity.StatusRemoved)

	payload := eventPayload(t, "error", 7)
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, f.sign(t, entity.PortalZillow, payload))

	assert.True(t, res.Valid)
	assert.False(t, res.Applied)
	assert.Equal(t, entity.StatusRemoved, f.statuses.rows[7][entity.PortalZillow].Status)
	assert.Empty(t, f.deliveries.entries)
}

func TestProcess_PersistenceFailureGoesToDLQ(t *testing.T) {
	f := newFixture(t)
	f.statuses.saveErr = errors.New("connection reset")

	payload := eventPayload(t, "listing_expired", 7)
	sig := f.sign(t, entity.PortalZillow, payload)
	res := f.svc.Process(context.Background(), entity.PortalZillow, payload, sig)

	assert.True(t, res.Valid)
	assert.False(t, res.Applied)
	require.Len(t, f.deliveries.entries, 1)
	d := f.deliveries.entries[0]
	assert.Equal(t, repository.DeliveryKindWebhook, d.Kind)
	assert.Equal(t, entity.PortalZillow, d.Portal)
	assert.Equal(t, int64(7), d.ListingID)
	assert.Equal(t, payload, d.Payload)
	assert.Equal(t, sig, d.Signature)
}
