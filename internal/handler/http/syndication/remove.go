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

type RemoveHandler struct{ Svc *synUC.Service }

// ServeHTTP pulls one listing off the requested portals. An empty body
// or portal list removes from every known portal. Portals that fail to
// remove are queued for retry and reported inside the 200 envelope.
func (h RemoveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	results, err := h.Svc.RemoveSyndication(r.Context(), actorFrom(r), listingID, portals)
	if err != nil {
		respond.SafeError(w, statusFor(err), err)
		return
	}

	removed := 0
	for _, res := range results {
		if res.Removed {
			removed++
		}
	}
	respond.Success(w, results, map[string]any{
		"requested": len(results),
		"removed":   removed,
	})
}
