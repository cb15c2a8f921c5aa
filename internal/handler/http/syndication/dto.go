// Package syndication provides the HTTP handlers for pushing listings to
// portals, pulling them back, and reading per-portal sync status.
package syndication

import (
	"errors"
	"net/http"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/handler/http/auth"
	synUC "listing-syndication/internal/usecase/syndication"
)

type syndicateRequest struct {
	Portals []string `json:"portals"`
}

// parsePortals validates raw portal names. A nil or empty list means
// every known portal. Unknown names surface as a field-level validation
// error naming the offending entry.
func parsePortals(raw []string) ([]entity.Portal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]entity.Portal, 0, len(raw))
	for _, s := range raw {
		p, err := entity.ParsePortal(s)
		if err != nil {
			return nil, &entity.ValidationError{Field: "portals", Message: err.Error()}
		}
		out = append(out, p)
	}
	return out, nil
}

// actorFrom converts the middleware identity into a use case actor.
func actorFrom(r *http.Request) synUC.Actor {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return synUC.Actor{}
	}
	return synUC.Actor{UserID: id.UserID, Role: id.Role}
}

// statusFor maps use case sentinels onto HTTP status codes. Per-portal
// failures ride inside a 200 envelope; only request-level failures reach
// this mapping.
func statusFor(err error) int {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, synUC.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, synUC.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, synUC.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, synUC.ErrNotPublished),
		errors.Is(err, synUC.ErrNoPortals),
		errors.Is(err, entity.ErrUnknownPortal):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
