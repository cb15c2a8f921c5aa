package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/repository"
	webhookUC "listing-syndication/internal/usecase/webhook"
)

type stubStatusRepo struct {
	mu      sync.Mutex
	results map[int64]map[entity.Portal]entity.SyndicationResult
}

func newStubStatusRepo() *stubStatusRepo {
	return &stubStatusRepo{results: make(map[int64]map[entity.Portal]entity.SyndicationResult)}
}

func (r *stubStatusRepo) GetStatuses(_ context.Context, listingID int64) (map[entity.Portal]entity.SyndicationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[entity.Portal]entity.SyndicationResult, len(r.results[listingID]))
	for p, res := range r.results[listingID] {
		out[p] = res
	}
	return out, nil
}

func (r *stubStatusRepo) GetResult(_ context.Context, listingID int64, portal entity.Portal) (*entity.SyndicationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.results[listingID][portal]; ok {
		return &res, nil
	}
	return nil, nil
}

func (r *stubStatusRepo) BeginSync(context.Context, int64, entity.Portal) error { return nil }

func (r *stubStatusRepo) SaveResult(_ context.Context, listingID int64, res entity.SyndicationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results[listingID] == nil {
		r.results[listingID] = make(map[entity.Portal]entity.SyndicationResult)
	}
	r.results[listingID][res.Portal] = res
	return nil
}

type stubDeliveryRepo struct {
	mu       sync.Mutex
	enqueued []repository.Delivery
}

func (r *stubDeliveryRepo) Enqueue(_ context.Context, d repository.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, d)
	return nil
}
func (r *stubDeliveryRepo) Stats(context.Context) (repository.DeliveryStats, error) {
	return repository.DeliveryStats{}, nil
}
func (r *stubDeliveryRepo) List(context.Context, string, int) ([]repository.Delivery, error) {
	return nil, nil
}
func (r *stubDeliveryRepo) Get(context.Context, string) (*repository.Delivery, error) {
	return nil, nil
}
func (r *stubDeliveryRepo) ListPending(context.Context, int) ([]repository.Delivery, error) {
	return nil, nil
}
func (r *stubDeliveryRepo) MarkAttempt(context.Context, string, string, int) error { return nil }
func (r *stubDeliveryRepo) MarkSucceeded(context.Context, string) error            { return nil }
func (r *stubDeliveryRepo) Delete(context.Context, string) error                   { return nil }

type testEnv struct {
	mux      *http.ServeMux
	registry *provider.Registry
	statuses *stubStatusRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.Default()

	// Empty portal config resolves every portal to the stub mock, whose
	// webhook secret is deterministic.
	reg := provider.NewRegistry(
		&provider.Config{Portals: map[entity.Portal]provider.PortalConfig{}},
		provider.NewListingStateStore(), logger)

	statuses := newStubStatusRepo()
	svc := webhookUC.NewService(reg, statuses, &stubDeliveryRepo{}, logger)

	mux := http.NewServeMux()
	Register(mux, svc)
	return &testEnv{mux: mux, registry: reg, statuses: statuses}
}

func (env *testEnv) sign(t *testing.T, portal entity.Portal, body []byte) string {
	t.Helper()
	mock, ok := env.registry.Resolve(portal).(*provider.MockProvider)
	if !ok {
		t.Fatalf("portal %s did not resolve to the mock provider", portal)
	}
	return mock.SignWebhook(body)
}

func eventPayload(t *testing.T, eventType string, listingID int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event_type":  eventType,
		"listing_id":  listingID,
		"external_id": fmt.Sprintf("ext-%d", listingID),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func (env *testEnv) post(path string, body []byte, header, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(header, signature)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AppliesSignedEvent(t *testing.T) {
	env := newTestEnv(t)
	body := eventPayload(t, "listing_expired", 7)

	rec := env.post("/webhooks/syndication/zillow", body,
		"X-Webhook-Signature", env.sign(t, entity.PortalZillow, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool                 `json:"success"`
		Applied bool                 `json:"applied"`
		Event   *entity.WebhookEvent `json:"event"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Success || !resp.Applied {
		t.Fatalf("resp = %+v, want success and applied", resp)
	}
	if resp.Event == nil || resp.Event.Type != entity.EventListingExpired {
		t.Fatalf("event = %+v, want listing_expired", resp.Event)
	}

	saved, err := env.statuses.GetResult(context.Background(), 7, entity.PortalZillow)
	if err != nil || saved == nil {
		t.Fatalf("status row missing after applied event: %v", err)
	}
	if saved.Status != entity.StatusExpired {
		t.Fatalf("status = %s, want expired", saved.Status)
	}
}

func TestHandler_AcceptsAltSignatureHeader(t *testing.T) {
	env := newTestEnv(t)
	body := eventPayload(t, "listing_expired", 7)

	rec := env.post("/webhooks/syndication/zillow", body,
		"X-Signature", env.sign(t, entity.PortalZillow, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestHandler_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	body := eventPayload(t, "listing_expired", 7)

	rec := env.post("/webhooks/syndication/zillow", body,
		"X-Webhook-Signature", "deadbeef")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
	if saved, _ := env.statuses.GetResult(context.Background(), 7, entity.PortalZillow); saved != nil {
		t.Fatalf("status row written despite bad signature: %+v", saved)
	}
}

func TestHandler_MissingSignature(t *testing.T) {
	env := newTestEnv(t)
	body := eventPayload(t, "listing_expired", 7)

	rec := env.post("/webhooks/syndication/zillow", body, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestHandler_UnknownPortal(t *testing.T) {
	env := newTestEnv(t)
	body := eventPayload(t, "listing_expired", 7)

	rec := env.post("/webhooks/syndication/mls", body,
		"X-Webhook-Signature", "anything")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestHandler_MalformedPayloadWithGoodSignature(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"event_type":"listing_exp`)

	rec := env.post("/webhooks/syndication/zillow", body,
		"X-Webhook-Signature", env.sign(t, entity.PortalZillow, body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestHandler_AnalyticsEventIsValidButNotApplied(t *testing.T) {
	env := newTestEnv(t)
	body := eventPayload(t, "listing_viewed", 7)

	rec := env.post("/webhooks/syndication/zillow", body,
		"X-Webhook-Signature", env.sign(t, entity.PortalZillow, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	var resp struct {
		Success bool `json:"success"`
		Applied bool `json:"applied"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Success || resp.Applied {
		t.Fatalf("resp = %+v, want valid but not applied", resp)
	}
	if saved, _ := env.statuses.GetResult(context.Background(), 7, entity.PortalZillow); saved != nil {
		t.Fatalf("status row written for no-change event: %+v", saved)
	}
}
