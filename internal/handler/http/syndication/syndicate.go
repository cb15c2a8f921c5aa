package syndication

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/handler/http/pathutil"
	"listing-syndication/internal/handler/http/respond"
	synUC "listing-syndication/internal/usecase/syndication"
)

type SyndicateHandler struct{ Svc *synUC.Service }

// ServeHTTP pushes one listing to the requested portals. The response is
// a 200 envelope keyed by portal even when some portals fail; only
// request-level problems (auth, unknown listing, bad input) produce a
// non-2xx status.
func (h SyndicateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	listingID, err := pathutil.ListingID(r, "listingID")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var req syndicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	portals, err := parsePortals(req.Portals)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if portals == nil {
		portals = entity.AllPortals
	}

	results, err := h.Svc.Syndicate(r.Context(), actorFrom(r), listingID, portals)
	if err != nil {
		respond.SafeError(w, statusFor(err), err)
		return
	}

	succeeded := 0
	for _, res := range results {
		if res.Status == entity.StatusActive {
			succeeded++
		}
	}
	respond.Success(w, results, map[string]any{
		"requested": len(results),
		"succeeded": succeeded,
	})
}
