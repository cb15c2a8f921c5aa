package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/repository"
)

// DeliveryRepo stores the webhook/removal dead-letter queue.
type DeliveryRepo struct {
	db *sql.DB
}

// NewDeliveryRepo creates a DeliveryRepo over the connection pool.
func NewDeliveryRepo(db *sql.DB) repository.DeliveryRepository {
	return &DeliveryRepo{db: db}
}

func (repo *DeliveryRepo) Enqueue(ctx context.Context, d repository.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = repository.DeliveryPending
	}
	now := time.Now()

	const insert = `
INSERT INTO webhook_deliveries (id, kind, portal, listing_id, payload, signature, attempts, last_error, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	if _, err := repo.db.ExecContext(ctx, insert,
		d.ID, d.Kind, d.Portal.String(), d.ListingID, d.Payload, d.Signature,
		d.Attempts, d.LastError, d.Status, now); err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

func (repo *DeliveryRepo) Stats(ctx context.Context) (repository.DeliveryStats, error) {
	const query = `
SELECT
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'dead'),
	COUNT(*) FILTER (WHERE status = 'succeeded')
FROM webhook_deliveries`
	var stats repository.DeliveryStats
	if err := repo.db.QueryRowContext(ctx, query).Scan(&stats.Pending, &stats.Dead, &stats.Succeeded); err != nil {
		return repository.DeliveryStats{}, fmt.Errorf("Stats: %w", err)
	}
	return stats, nil
}

func (repo *DeliveryRepo) List(ctx context.Context, status string, limit int) ([]repository.Delivery, error) {
	const query = `
SELECT id, kind, portal, listing_id, payload, signature, attempts, last_error, status, created_at, updated_at
FROM webhook_deliveries
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectDeliveries(rows)
}

func (repo *DeliveryRepo) Get(ctx context.Context, id string) (*repository.Delivery, error) {
	const query = `
SELECT id, kind, portal, listing_id, payload, signature, attempts, last_error, status, created_at, updated_at
FROM webhook_deliveries
WHERE id = $1`
	row := repo.db.QueryRowContext(ctx, query, id)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &d, nil
}

func (repo *DeliveryRepo) ListPending(ctx context.Context, limit int) ([]repository.Delivery, error) {
	const query = `
SELECT id, kind, portal, listing_id, payload, signature, attempts, last_error, status, created_at, updated_at
FROM webhook_deliveries
WHERE status = 'pending'
ORDER BY created_at ASC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectDeliveries(rows)
}

// MarkAttempt bumps the attempt counter and dead-letters the delivery once
// maxAttempts is reached.
func (repo *DeliveryRepo) MarkAttempt(ctx context.Context, id string, attemptErr string, maxAttempts int) error {
	const update = `
UPDATE webhook_deliveries
SET attempts = attempts + 1,
	last_error = $2,
	status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE status END,
	updated_at = $4
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, update, id, attemptErr, maxAttempts, time.Now()); err != nil {
		return fmt.Errorf("MarkAttempt: %w", err)
	}
	return nil
}

func (repo *DeliveryRepo) MarkSucceeded(ctx context.Context, id string) error {
	const update = `
UPDATE webhook_deliveries
SET status = 'succeeded', last_error = '', updated_at = $2
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, update, id, time.Now()); err != nil {
		return fmt.Errorf("MarkSucceeded: %w", err)
	}
	return nil
}

func (repo *DeliveryRepo) Delete(ctx context.Context, id string) error {
	const del = `DELETE FROM webhook_deliveries WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, del, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func collectDeliveries(rows *sql.Rows) ([]repository.Delivery, error) {
	deliveries := make([]repository.Delivery, 0, 20)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(row rowScanner) (repository.Delivery, error) {
	var (
		d         repository.Delivery
		rawPortal string
	)
	if err := row.Scan(&d.ID, &d.Kind, &rawPortal, &d.ListingID, &d.Payload, &d.Signature,
		&d.Attempts, &d.LastError, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return repository.Delivery{}, err
	}
	portal, err := entity.ParsePortal(rawPortal)
	if err != nil {
		return repository.Delivery{}, err
	}
	d.Portal = portal
	return d, nil
}
