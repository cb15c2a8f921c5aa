// Package webhook exposes the unauthenticated callback endpoint portals
// post status changes to. Requests authenticate with an HMAC signature
// header instead of a bearer token.
package webhook

import (
	"errors"
	"io"
	"net/http"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/handler/http/respond"
	webhookUC "listing-syndication/internal/usecase/webhook"
)

// Signature headers checked in order. Portals disagree on the name.
const (
	signatureHeader    = "X-Webhook-Signature"
	altSignatureHeader = "X-Signature"
)

type Handler struct{ Svc *webhookUC.Service }

// ServeHTTP ingests one portal callback. Verification failures return
// 400 with no side effects; verified events return 200 whether or not
// they changed state.
func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	portal, err := entity.ParsePortal(r.PathValue("portal"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		signature = r.Header.Get(altSignatureHeader)
	}

	result := h.Svc.Process(r.Context(), portal, body, signature)
	if !result.Valid {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid webhook"))
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"applied": result.Applied,
		"event":   result.Event,
	})
}

// Register wires the webhook endpoint. It stays off the auth middleware's
// protected surface.
func Register(mux *http.ServeMux, svc *webhookUC.Service) {
	mux.Handle("POST /webhooks/syndication/{portal}", Handler{svc})
}
