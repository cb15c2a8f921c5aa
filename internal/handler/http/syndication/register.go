package syndication

import (
	"net/http"

	"listing-syndication/internal/handler/http/auth"
	"listing-syndication/internal/provider"
	synUC "listing-syndication/internal/usecase/syndication"
)

// Register wires the syndication endpoints onto the mux. Every route
// requires authentication; the providers page is admin-only through the
// role table.
func Register(mux *http.ServeMux, svc *synUC.Service, registry *provider.Registry) {
	mux.Handle("POST /listings/{listingID}/syndicate", auth.Authz(SyndicateHandler{svc}))
	mux.Handle("DELETE /listings/{listingID}/syndicate", auth.Authz(RemoveHandler{svc}))
	mux.Handle("GET /listings/{listingID}/syndication-status", auth.Authz(StatusHandler{svc}))
	mux.Handle("GET /syndication/providers", auth.Authz(ProvidersHandler{registry}))
}
