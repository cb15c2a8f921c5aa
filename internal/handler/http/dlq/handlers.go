// Package dlq provides the admin endpoints for inspecting and replaying
// dead-lettered webhook and removal deliveries.
package dlq

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"listing-syndication/internal/handler/http/pathutil"
	"listing-syndication/internal/handler/http/respond"
	"listing-syndication/internal/repository"
	dlqUC "listing-syndication/internal/usecase/dlq"
)

// DeliveryDTO is the admin-facing shape of one queued delivery. Payload
// bytes stay internal; only their size is reported.
type DeliveryDTO struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Portal      string    `json:"portal"`
	ListingID   int64     `json:"listing_id"`
	PayloadSize int       `json:"payload_size"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDTO(d repository.Delivery) DeliveryDTO {
	return DeliveryDTO{
		ID:          d.ID,
		Kind:        d.Kind,
		Portal:      d.Portal.String(),
		ListingID:   d.ListingID,
		PayloadSize: len(d.Payload),
		Attempts:    d.Attempts,
		LastError:   d.LastError,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func statusFor(err error) int {
	if errors.Is(err, dlqUC.ErrDeliveryNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type StatsHandler struct{ Svc *dlqUC.Service }

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.Success(w, stats, nil)
}

type ListHandler struct{ Svc *dlqUC.Service }

// ServeHTTP lists deliveries, newest first. Query params: status
// (pending|dead|succeeded, empty for all) and limit.
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", repository.DeliveryPending, repository.DeliveryDead, repository.DeliverySucceeded:
	default:
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid status filter"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.SafeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	deliveries, err := h.Svc.List(r.Context(), status, limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]DeliveryDTO, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, toDTO(d))
	}
	respond.Success(w, out, map[string]any{"count": len(out)})
}

type GetHandler struct{ Svc *dlqUC.Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.UUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	d, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		respond.SafeError(w, statusFor(err), err)
		return
	}
	respond.Success(w, toDTO(*d), nil)
}

type RetryHandler struct{ Svc *dlqUC.Service }

// ServeHTTP replays one delivery immediately, dead ones included.
func (h RetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.UUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.Retry(r.Context(), id); err != nil {
		if errors.Is(err, dlqUC.ErrDeliveryNotFound) {
			respond.SafeError(w, http.StatusNotFound, err)
			return
		}
		// The replay failed; the attempt was still recorded.
		respond.JSON(w, http.StatusOK, respond.Envelope{
			Success: false,
			Error:   respond.SanitizeError(err),
		})
		return
	}
	respond.Success(w, map[string]string{"id": id, "status": repository.DeliverySucceeded}, nil)
}

type DeleteHandler struct{ Svc *dlqUC.Service }

func (h DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.UUID(r, "id")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.Delete(r.Context(), id); err != nil {
		respond.SafeError(w, statusFor(err), err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

// Register wires the admin DLQ endpoints. Access is restricted to the
// admin role by the auth middleware's role table.
func Register(mux *http.ServeMux, svc *dlqUC.Service, authz func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/webhook-deliveries/stats", authz(StatsHandler{svc}))
	mux.Handle("GET /admin/webhook-deliveries", authz(ListHandler{svc}))
	mux.Handle("GET /admin/webhook-deliveries/{id}", authz(GetHandler{svc}))
	mux.Handle("POST /admin/webhook-deliveries/{id}/retry", authz(RetryHandler{svc}))
	mux.Handle("DELETE /admin/webhook-deliveries/{id}", authz(DeleteHandler{svc}))
}
