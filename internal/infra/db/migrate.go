package db

import (
	"database/sql"
)

// MigrateUp creates the syndication schema. Statements are idempotent so the
// migration can run on every boot.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS listings (
    id               BIGSERIAL PRIMARY KEY,
    owner_id         BIGINT NOT NULL,
    agent_id         BIGINT,
    published        BOOLEAN NOT NULL DEFAULT FALSE,
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    address_line1    TEXT NOT NULL,
    address_line2    TEXT,
    city             TEXT NOT NULL,
    state            TEXT NOT NULL,
    postal_code      TEXT NOT NULL,
    country          TEXT NOT NULL,
    rent_monthly     NUMERIC(12,2) NOT NULL,
    security_deposit NUMERIC(12,2) NOT NULL DEFAULT 0,
    currency         VARCHAR(3) NOT NULL DEFAULT 'USD',
    bedrooms         INTEGER NOT NULL DEFAULT 0,
    bathrooms        NUMERIC(3,1) NOT NULL DEFAULT 1,
    square_footage   INTEGER NOT NULL DEFAULT 0,
    unit_type        VARCHAR(30) NOT NULL DEFAULT 'apartment',
    furnished        BOOLEAN NOT NULL DEFAULT FALSE,
    pets_allowed     BOOLEAN NOT NULL DEFAULT FALSE,
    available_from   TIMESTAMPTZ NOT NULL DEFAULT now(),
    lease_term_min   INTEGER NOT NULL DEFAULT 12,
    media_urls       JSONB,
    amenities        JSONB,
    contact_name     TEXT NOT NULL DEFAULT '',
    contact_email    TEXT NOT NULL DEFAULT '',
    contact_phone    TEXT,
    screening        JSONB
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS listing_syndication (
    listing_id   BIGINT NOT NULL,
    portal       VARCHAR(20) NOT NULL,
    status       VARCHAR(20) NOT NULL,
    external_id  TEXT,
    external_url TEXT,
    synced_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at   TIMESTAMPTZ,
    error        JSONB,
    PRIMARY KEY (listing_id, portal)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS listing_portals (
    listing_id BIGINT NOT NULL,
    portal     VARCHAR(20) NOT NULL,
    PRIMARY KEY (listing_id, portal)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS syndication_audit (
    id         BIGSERIAL PRIMARY KEY,
    actor_id   BIGINT NOT NULL,
    action     VARCHAR(40) NOT NULL,
    listing_id BIGINT NOT NULL,
    details    JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id         UUID PRIMARY KEY,
    kind       VARCHAR(20) NOT NULL,
    portal     VARCHAR(20) NOT NULL,
    listing_id BIGINT NOT NULL,
    payload    BYTEA,
    signature  TEXT NOT NULL DEFAULT '',
    attempts   INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    status     VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	indexes := []string{
		// status lookups join from the listing side
		`CREATE INDEX IF NOT EXISTS idx_listing_syndication_listing_id ON listing_syndication(listing_id)`,
		// retry worker scans pending deliveries oldest first
		`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_status_created ON webhook_deliveries(status, created_at)`,
		// audit queries filter per listing
		`CREATE INDEX IF NOT EXISTS idx_syndication_audit_listing_id ON syndication_audit(listing_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown drops the syndication schema. Intended for tests and local
// resets, never for production.
func MigrateDown(db *sql.DB) error {
	drops := []string{
		`DROP TABLE IF EXISTS webhook_deliveries`,
		`DROP TABLE IF EXISTS syndication_audit`,
		`DROP TABLE IF EXISTS listing_portals`,
		`DROP TABLE IF EXISTS listing_syndication`,
		`DROP TABLE IF EXISTS listings`,
	}
	for _, stmt := range drops {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
