package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/repository"
	"listing-syndication/internal/resilience/retry"
	dlqUC "listing-syndication/internal/usecase/dlq"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type memDeliveryRepo struct {
	mu    sync.Mutex
	rows  map[string]*repository.Delivery
	order []string
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{rows: make(map[string]*repository.Delivery)}
}

func (r *memDeliveryRepo) Enqueue(_ context.Context, d repository.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = repository.DeliveryPending
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	r.rows[d.ID] = &d
	r.order = append(r.order, d.ID)
	return nil
}

func (r *memDeliveryRepo) Stats(context.Context) (repository.DeliveryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats repository.DeliveryStats
	for _, d := range r.rows {
		switch d.Status {
		case repository.DeliveryPending:
			stats.Pending++
		case repository.DeliveryDead:
			stats.Dead++
		case repository.DeliverySucceeded:
			stats.Succeeded++
		}
	}
	return stats, nil
}

func (r *memDeliveryRepo) List(_ context.Context, status string, limit int) ([]repository.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Delivery
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		d, ok := r.rows[r.order[i]]
		if !ok {
			continue
		}
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) Get(_ context.Context, id string) (*repository.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *memDeliveryRepo) ListPending(_ context.Context, limit int) ([]repository.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Delivery
	for _, id := range r.order {
		if len(out) >= limit {
			break
		}
		d, ok := r.rows[id]
		if !ok {
			continue
		}
		if d.Status == repository.DeliveryPending {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) MarkAttempt(_ context.Context, id, attemptErr string, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil
	}
	d.Attempts++
	d.LastError = attemptErr
	if d.Attempts >= maxAttempts {
		d.Status = repository.DeliveryDead
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (r *memDeliveryRepo) MarkSucceeded(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.rows[id]; ok {
		d.Status = repository.DeliverySucceeded
		d.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memDeliveryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

type stubStatusRepo struct {
	mu      sync.Mutex
	results map[int64]map[entity.Portal]entity.SyndicationResult
}

func newStubStatusRepo() *stubStatusRepo {
	return &stubStatusRepo{results: make(map[int64]map[entity.Portal]entity.SyndicationResult)}
}

func (r *stubStatusRepo) GetStatuses(context.Context, int64) (map[entity.Portal]entity.SyndicationResult, error) {
	return nil, nil
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

type stubListingRepo struct{}

func (stubListingRepo) Get(context.Context, int64) (*entity.Listing, error) { return nil, nil }
func (stubListingRepo) AddSyndicatedPortals(context.Context, int64, []entity.Portal) error {
	return nil
}
func (stubListingRepo) RemoveSyndicatedPortal(context.Context, int64, entity.Portal) error {
	return nil
}

type testEnv struct {
	mux        *http.ServeMux
	deliveries *memDeliveryRepo
	statuses   *stubStatusRepo
	registry   *provider.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.Default()

	// Empty portal config resolves every portal to the stub mock.
	reg := provider.NewRegistry(
		&provider.Config{Portals: map[entity.Portal]provider.PortalConfig{}},
		provider.NewListingStateStore(), logger)

	deliveries := newMemDeliveryRepo()
	statuses := newStubStatusRepo()
	svc := dlqUC.NewService(deliveries, statuses, stubListingRepo{}, reg, dlqUC.Options{
		Pace:        rate.NewLimiter(rate.Inf, 1),
		RetryCfg:    &retry.Config{MaxAttempts: 1},
		MaxAttempts: 2,
	}, logger)

	mux := http.NewServeMux()
	Register(mux, svc, func(h http.Handler) http.Handler { return h })
	return &testEnv{mux: mux, deliveries: deliveries, statuses: statuses, registry: reg}
}

func (env *testEnv) enqueueWebhook(t *testing.T, listingID int64, eventType string, sign bool) string {
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

	signature := "deadbeef"
	if sign {
		mock, ok := env.registry.Resolve(entity.PortalZillow).(*provider.MockProvider)
		if !ok {
			t.Fatal("zillow did not resolve to the mock provider")
		}
		signature = mock.SignWebhook(body)
	}

	id := uuid.New().String()
	if err := env.deliveries.Enqueue(context.Background(), repository.Delivery{
		ID:        id,
		Kind:      repository.DeliveryKindWebhook,
		Portal:    entity.PortalZillow,
		ListingID: listingID,
		Payload:   body,
		Signature: signature,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return id
}

func (env *testEnv) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t)
	env.enqueueWebhook(t, 7, "listing_expired", true)

	rec := env.do(http.MethodGet, "/admin/webhook-deliveries/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool                     `json:"success"`
		Data    repository.DeliveryStats `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Data.Pending != 1 {
		t.Fatalf("pending = %d, want 1", resp.Data.Pending)
	}
}

func TestListHandler(t *testing.T) {
	env := newTestEnv(t)
	env.enqueueWebhook(t, 7, "listing_expired", true)
	env.enqueueWebhook(t, 8, "listing_removed", true)

	rec := env.do(http.MethodGet, "/admin/webhook-deliveries?status=pending")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool           `json:"success"`
		Data    []DeliveryDTO  `json:"data"`
		Meta    map[string]any `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("data has %d rows, want 2", len(resp.Data))
	}
	if resp.Data[0].PayloadSize == 0 {
		t.Fatal("payload_size = 0, want raw payload length")
	}
}

func TestListHandler_BadParams(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/admin/webhook-deliveries?status=bogus"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: code = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/admin/webhook-deliveries?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: code = %d, want 400", rec.Code)
	}
}

func TestGetHandler(t *testing.T) {
	env := newTestEnv(t)
	id := env.enqueueWebhook(t, 7, "listing_expired", true)

	rec := env.do(http.MethodGet, "/admin/webhook-deliveries/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}

	var resp struct {
		Data DeliveryDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Data.ID != id || resp.Data.Kind != repository.DeliveryKindWebhook {
		t.Fatalf("dto = %+v, want id %s kind webhook", resp.Data, id)
	}
}

func TestGetHandler_Errors(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/admin/webhook-deliveries/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: code = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/admin/webhook-deliveries/"+uuid.New().String()); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: code = %d, want 404", rec.Code)
	}
}

func TestRetryHandler_ReplaysDelivery(t *testing.T) {
	env := newTestEnv(t)
	id := env.enqueueWebhook(t, 7, "listing_expired", true)

	rec := env.do(http.MethodPost, "/admin/webhook-deliveries/"+id+"/retry")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	d, err := env.deliveries.Get(context.Background(), id)
	if err != nil || d == nil {
		t.Fatalf("delivery lookup failed: %v", err)
	}
	if d.Status != repository.DeliverySucceeded {
		t.Fatalf("status = %s, want succeeded", d.Status)
	}
	saved, _ := env.statuses.GetResult(context.Background(), 7, entity.PortalZillow)
	if saved == nil || saved.Status != entity.StatusExpired {
		t.Fatalf("replay did not apply the event: %+v", saved)
	}
}

func TestRetryHandler_FailureRecordsAttempt(t *testing.T) {
	env := newTestEnv(t)
	id := env.enqueueWebhook(t, 7, "listing_expired", false)

	rec := env.do(http.MethodPost, "/admin/webhook-deliveries/"+id+"/retry")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Success {
		t.Fatal("success = true, want false for failed replay")
	}

	d, _ := env.deliveries.Get(context.Background(), id)
	if d.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", d.Attempts)
	}
}

func TestRetryHandler_Unknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/admin/webhook-deliveries/"+uuid.New().String()+"/retry")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}

func TestDeleteHandler(t *testing.T) {
	env := newTestEnv(t)
	id := env.enqueueWebhook(t, 7, "listing_expired", true)

	rec := env.do(http.MethodDelete, "/admin/webhook-deliveries/"+id)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204", rec.Code)
	}
	if d, _ := env.deliveries.Get(context.Background(), id); d != nil {
		t.Fatalf("delivery still present after delete: %+v", d)
	}

	rec = env.do(http.MethodDelete, "/admin/webhook-deliveries/"+uuid.New().String())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: code = %d, want 404", rec.Code)
	}
}
