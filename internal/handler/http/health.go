// Package http carries the cross-cutting HTTP pieces of the syndication
// service: health and readiness probes, request middleware, and the
// Prometheus metrics endpoint. Feature handlers live in subpackages.
package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"listing-syndication/internal/handler/http/respond"
	"listing-syndication/internal/kvstore"
)

// HealthResponse is the body of the /healthz endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the outcome of one dependency check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler reports the health of the service's dependencies: the
// Postgres status store and the shared key-value store backing rate
// limits and sync locks.
type HealthHandler struct {
	DB      *sql.DB
	KV      kvstore.Store
	Version string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	allHealthy := true

	if h.DB != nil {
		dbCheck := h.checkDatabase(ctx)
		checks["database"] = dbCheck
		if dbCheck.Status != "healthy" {
			allHealthy = false
		}
	} else {
		checks["database"] = CheckStatus{Status: "unhealthy", Message: "not configured"}
		allHealthy = false
	}

	if h.KV != nil {
		kvCheck := h.checkKV(ctx)
		checks["kvstore"] = kvCheck
		if kvCheck.Status != "healthy" {
			allHealthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: "unhealthy", Message: respond.SanitizeError(err)}
	}
	stats := h.DB.Stats()
	return CheckStatus{
		Status: "healthy",
		Details: map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	}
}

func (h *HealthHandler) checkKV(ctx context.Context) CheckStatus {
	// A short-lived SetNX doubles as a write probe; the key expires on
	// its own.
	if _, err := h.KV.SetNX(ctx, "health:probe", "1", time.Second); err != nil {
		return CheckStatus{Status: "unhealthy", Message: respond.SanitizeError(err)}
	}
	return CheckStatus{Status: "healthy"}
}

// LiveHandler answers liveness probes. It returns 200 as long as the
// process can serve requests at all.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadyHandler answers readiness probes with a database ping only, so a
// degraded shared store does not pull the service out of rotation.
type ReadyHandler struct {
	DB *sql.DB
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil || h.DB.PingContext(ctx) != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
