package syndication

import (
	"net/http"

	"listing-syndication/internal/handler/http/respond"
	"listing-syndication/internal/provider"
)

type ProvidersHandler struct{ Registry *provider.Registry }

// ServeHTTP reports, per portal, which provider implementation is active
// and why. Admin-only; the answer reveals which portals run on stubs.
func (h ProvidersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := h.Registry.Statuses()
	mocked := 0
	for _, s := range statuses {
		if s.IsMock {
			mocked++
		}
	}
	respond.Success(w, statuses, map[string]any{
		"portals": len(statuses),
		"mocked":  mocked,
	})
}
