// Package postgres implements the repository contracts on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/repository"
)

// StatusRepo persists the per-(listing, portal) syndication results and
// enforces the status state machine on every transition.
type StatusRepo struct {
	db *sql.DB
}

// NewStatusRepo creates a StatusRepo over the connection pool.
func NewStatusRepo(db *sql.DB) repository.StatusRepository {
	return &StatusRepo{db: db}
}

func (repo *StatusRepo) GetStatuses(ctx context.Context, listingID int64) (map[entity.Portal]entity.SyndicationResult, error) {
	const query = `
SELECT portal, status, external_id, external_url, synced_at, expires_at, error
FROM listing_syndication
WHERE listing_id = $1`
	rows, err := repo.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("GetStatuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	statuses := make(map[entity.Portal]entity.SyndicationResult, len(entity.AllPortals))
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("GetStatuses: %w", err)
		}
		statuses[res.Portal] = res
	}
	return statuses, rows.Err()
}

func (repo *StatusRepo) GetResult(ctx context.Context, listingID int64, portal entity.Portal) (*entity.SyndicationResult, error) {
	const query = `
SELECT portal, status, external_id, external_url, synced_at, expires_at, error
FROM listing_syndication
WHERE listing_id = $1 AND portal = $2`
	row := repo.db.QueryRowContext(ctx, query, listingID, portal.String())
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetResult: %w", err)
	}
	return &res, nil
}

// BeginSync moves the pair into syncing. New pairs are inserted as pending
// first so the row's history starts at the machine's initial state; pairs
// parked in expired, removed or disabled re-enter through pending, which is
// the only legal exit those states share.
func (repo *StatusRepo) BeginSync(ctx context.Context, listingID int64, portal entity.Portal) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginSync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := currentStatus(ctx, tx, listingID, portal)
	if err != nil {
		return fmt.Errorf("BeginSync: %w", err)
	}

	now := time.Now()
	if current == "" {
		const insert = `
INSERT INTO listing_syndication (listing_id, portal, status, synced_at)
VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, insert, listingID, portal.String(), entity.StatusPending.String(), now); err != nil {
			return fmt.Errorf("BeginSync: insert: %w", err)
		}
		current = entity.StatusPending
	}

	if !current.CanTransition(entity.StatusSyncing) {
		if err := current.CheckTransition(entity.StatusPending); err != nil {
			return fmt.Errorf("BeginSync: %w", err)
		}
		if err := setStatus(ctx, tx, listingID, portal, entity.StatusPending, now); err != nil {
			return fmt.Errorf("BeginSync: %w", err)
		}
		current = entity.StatusPending
	}

	if err := current.CheckTransition(entity.StatusSyncing); err != nil {
		return fmt.Errorf("BeginSync: %w", err)
	}
	if err := setStatus(ctx, tx, listingID, portal, entity.StatusSyncing, now); err != nil {
		return fmt.Errorf("BeginSync: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("BeginSync: commit: %w", err)
	}
	return nil
}

// SaveResult merges the attempt outcome into the listing's map under the
// result's portal key. The row is locked while the transition is checked so
// concurrent writers cannot interleave an illegal move.
func (repo *StatusRepo) SaveResult(ctx context.Context, listingID int64, res entity.SyndicationResult) error {
	if !res.Status.Valid() {
		return fmt.Errorf("SaveResult: status %q: %w", res.Status, entity.ErrUnknownStatus)
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SaveResult: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := currentStatus(ctx, tx, listingID, res.Portal)
	if err != nil {
		return fmt.Errorf("SaveResult: %w", err)
	}
	if current != "" {
		if err := current.CheckTransition(res.Status); err != nil {
			return fmt.Errorf("SaveResult: %w", err)
		}
	}

	errJSON, err := marshalResultError(res.Error)
	if err != nil {
		return fmt.Errorf("SaveResult: %w", err)
	}

	const upsert = `
INSERT INTO listing_syndication (listing_id, portal, status, external_id, external_url, synced_at, expires_at, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (listing_id, portal) DO UPDATE SET
	status = EXCLUDED.status,
	external_id = COALESCE(NULLIF(EXCLUDED.external_id, ''), listing_syndication.external_id),
	external_url = COALESCE(NULLIF(EXCLUDED.external_url, ''), listing_syndication.external_url),
	synced_at = EXCLUDED.synced_at,
	expires_at = EXCLUDED.expires_at,
	error = EXCLUDED.error`
	if _, err := tx.ExecContext(ctx, upsert,
		listingID, res.Portal.String(), res.Status.String(),
		res.ExternalID, res.ExternalURL, res.SyncedAt, res.ExpiresAt, errJSON); err != nil {
		return fmt.Errorf("SaveResult: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveResult: commit: %w", err)
	}
	return nil
}

func currentStatus(ctx context.Context, tx *sql.Tx, listingID int64, portal entity.Portal) (entity.SyndicationStatus, error) {
	const query = `
SELECT status FROM listing_syndication
WHERE listing_id = $1 AND portal = $2
FOR UPDATE`
	var raw string
	err := tx.QueryRowContext(ctx, query, listingID, portal.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// Rows written before a status value was retired would fail here;
	// validation at the read boundary keeps them from propagating.
	return entity.ParseSyndicationStatus(raw)
}

func setStatus(ctx context.Context, tx *sql.Tx, listingID int64, portal entity.Portal, status entity.SyndicationStatus, at time.Time) error {
	const update = `
UPDATE listing_syndication SET status = $3, synced_at = $4
WHERE listing_id = $1 AND portal = $2`
	_, err := tx.ExecContext(ctx, update, listingID, portal.String(), status.String(), at)
	return err
}

// rowScanner lets scanResult serve both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (entity.SyndicationResult, error) {
	var (
		res        entity.SyndicationResult
		rawPortal  string
		rawStatus  string
		externalID sql.NullString
		externalU  sql.NullString
		expiresAt  sql.NullTime
		errJSON    []byte
	)
	if err := row.Scan(&rawPortal, &rawStatus, &externalID, &externalU, &res.SyncedAt, &expiresAt, &errJSON); err != nil {
		return entity.SyndicationResult{}, err
	}

	portal, err := entity.ParsePortal(rawPortal)
	if err != nil {
		return entity.SyndicationResult{}, err
	}
	status, err := entity.ParseSyndicationStatus(rawStatus)
	if err != nil {
		return entity.SyndicationResult{}, err
	}

	res.Portal = portal
	res.Status = status
	res.ExternalID = externalID.String
	res.ExternalURL = externalU.String
	if expiresAt.Valid {
		t := expiresAt.Time
		res.ExpiresAt = &t
	}
	if len(errJSON) > 0 {
		var se entity.SyndicationError
		if err := json.Unmarshal(errJSON, &se); err != nil {
			return entity.SyndicationResult{}, fmt.Errorf("decode result error: %w", err)
		}
		res.Error = &se
	}
	return res, nil
}

func marshalResultError(se *entity.SyndicationError) ([]byte, error) {
	if se == nil {
		return nil, nil
	}
	raw, err := json.Marshal(se)
	if err != nil {
		return nil, fmt.Errorf("encode result error: %w", err)
	}
	return raw, nil
}
