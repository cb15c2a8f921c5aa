package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"listing-syndication/internal/repository"
)

// AuditRepo appends audit events. Writes are best-effort at the call site;
// this repo only reports the error and never retries.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates an AuditRepo over the connection pool.
func NewAuditRepo(db *sql.DB) repository.AuditRepository {
	return &AuditRepo{db: db}
}

func (repo *AuditRepo) Record(ctx context.Context, event repository.AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("Record: encode details: %w", err)
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const insert = `
INSERT INTO syndication_audit (actor_id, action, listing_id, details, created_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, insert,
		event.ActorID, event.Action, event.ListingID, details, createdAt); err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}
