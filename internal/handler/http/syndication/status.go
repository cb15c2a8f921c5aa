package syndication

import (
	"net/http"

	"listing-syndication/internal/handler/http/pathutil"
	"listing-syndication/internal/handler/http/respond"
	synUC "listing-syndication/internal/usecase/syndication"
)

type StatusHandler struct{ Svc *synUC.Service }

// ServeHTTP returns the listing's per-portal sync map. Portals the
// listing was never pushed to are absent.
func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	listingID, err := pathutil.ListingID(r, "listingID")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	statuses, err := h.Svc.Status(r.Context(), actorFrom(r), listingID)
	if err != nil {
		respond.SafeError(w, statusFor(err), err)
		return
	}

	respond.Success(w, statuses, map[string]any{
		"listing_id": listingID,
		"portals":    len(statuses),
	})
}
