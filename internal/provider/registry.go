package provider

import (
	"log/slog"
	"sync"

	"listing-syndication/internal/domain/entity"
)

// Factory constructs a real portal adapter from its configuration.
// Registered per portal; absence means only the stub is available.
type Factory func(portal entity.Portal, cfg PortalConfig) (Provider, error)

// Status describes which implementation serves a portal and why, for the
// operational providers page.
type Status struct {
	Portal   entity.Portal `json:"portal"`
	Provider string        `json:"provider"`
	IsMock   bool          `json:"is_mock"`
	Reason   string        `json:"reason"`
}

// Registry resolves the provider instance for each portal.
//
// Resolution order: an explicitly disabled feature flag forces the stub;
// missing credentials force the stub; otherwise the registered factory
// builds the real adapter, and a construction failure logs and falls back
// to the stub rather than propagating. Instances are memoized for the life
// of the process because adapters may hold connection pools.
//
// The registry is constructed once at startup and injected into its
// consumers; there is no lazily-initialized global accessor.
type Registry struct {
	cfg       *Config
	state     *ListingStateStore
	factories map[entity.Portal]Factory
	logger    *slog.Logger

	mu        sync.RWMutex
	instances map[entity.Portal]Provider
	statuses  map[entity.Portal]Status
}

// NewRegistry creates a registry over the portal configuration. The state
// store backs every stub instance the registry hands out.
func NewRegistry(cfg *Config, state *ListingStateStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:       cfg,
		state:     state,
		factories: make(map[entity.Portal]Factory),
		logger:    logger,
		instances: make(map[entity.Portal]Provider),
		statuses:  make(map[entity.Portal]Status),
	}
}

// RegisterFactory installs a real-adapter factory for a portal. Must be
// called before the first Resolve for that portal.
func (r *Registry) RegisterFactory(portal entity.Portal, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[portal] = f
}

// Resolve returns the provider instance for a portal, building and caching
// it on first use. Resolve never fails: the stub is the universal fallback.
func (r *Registry) Resolve(portal entity.Portal) Provider {
	r.mu.RLock()
	if p, ok := r.instances[portal]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[portal]; ok {
		return p
	}

	p, status := r.build(portal)
	r.instances[portal] = p
	r.statuses[portal] = status
	return p
}

// build applies the resolution order under the write lock.
func (r *Registry) build(portal entity.Portal) (Provider, Status) {
	pc := r.cfg.Portal(portal)

	if pc.IsDisabled() {
		return r.stub(portal, pc, "feature flag disabled")
	}
	if !pc.HasCredentials() {
		return r.stub(portal, pc, "no credentials configured")
	}

	factory, ok := r.factories[portal]
	if !ok {
		return r.stub(portal, pc, "no adapter registered")
	}

	p, err := factory(portal, pc)
	if err != nil {
		r.logger.Error("portal adapter construction failed, falling back to stub",
			slog.String("portal", portal.String()),
			slog.Any("error", err))
		return r.stub(portal, pc, "adapter construction failed: "+err.Error())
	}

	return NewBreakerProvider(p, r.logger), Status{
		Portal:   portal,
		Provider: "adapter",
		IsMock:   false,
		Reason:   "configured",
	}
}

func (r *Registry) stub(portal entity.Portal, pc PortalConfig, reason string) (Provider, Status) {
	cfg := DefaultMockConfig(portal)
	if pc.WebhookSecret != "" {
		cfg.WebhookSecret = pc.WebhookSecret
	}
	return NewMockProvider(portal, r.state, cfg, r.logger), Status{
		Portal:   portal,
		Provider: "mock",
		IsMock:   true,
		Reason:   reason,
	}
}

// Statuses reports, for every known portal, which implementation is active
// and why. Unresolved portals are resolved as a side effect so the report
// is always complete.
func (r *Registry) Statuses() []Status {
	out := make([]Status, 0, len(entity.AllPortals))
	for _, portal := range entity.AllPortals {
		r.Resolve(portal)
		r.mu.RLock()
		out = append(out, r.statuses[portal])
		r.mu.RUnlock()
	}
	return out
}
