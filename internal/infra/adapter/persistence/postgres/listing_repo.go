package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"listing-syndication/internal/domain/entity"
	"listing-syndication/internal/repository"
)

// ListingRepo reads the syndication-facing view of property listings and
// maintains the per-listing syndicated-portal set.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo creates a ListingRepo over the connection pool.
func NewListingRepo(db *sql.DB) repository.ListingRepository {
	return &ListingRepo{db: db}
}

func (repo *ListingRepo) Get(ctx context.Context, id int64) (*entity.Listing, error) {
	const query = `
SELECT id, owner_id, COALESCE(agent_id, 0), published,
	title, description,
	address_line1, COALESCE(address_line2, ''), city, state, postal_code, country,
	rent_monthly, security_deposit, currency,
	bedrooms, bathrooms, square_footage, unit_type, furnished, pets_allowed,
	available_from, lease_term_min,
	media_urls, amenities,
	contact_name, contact_email, COALESCE(contact_phone, ''),
	screening
FROM listings
WHERE id = $1`

	var (
		l         entity.Listing
		mediaJSON []byte
		amenJSON  []byte
		screening []byte
	)
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.OwnerID, &l.AgentID, &l.Published,
		&l.Title, &l.Description,
		&l.Address.Line1, &l.Address.Line2, &l.Address.City, &l.Address.State, &l.Address.PostalCode, &l.Address.Country,
		&l.RentMonthly, &l.SecurityDeposit, &l.Currency,
		&l.Bedrooms, &l.Bathrooms, &l.SquareFootage, &l.UnitType, &l.Furnished, &l.PetsAllowed,
		&l.AvailableFrom, &l.LeaseTermMin,
		&mediaJSON, &amenJSON,
		&l.Contact.Name, &l.Contact.Email, &l.Contact.Phone,
		&screening,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	if len(mediaJSON) > 0 {
		if err := json.Unmarshal(mediaJSON, &l.MediaURLs); err != nil {
			return nil, fmt.Errorf("Get: decode media_urls: %w", err)
		}
	}
	if len(amenJSON) > 0 {
		if err := json.Unmarshal(amenJSON, &l.Amenities); err != nil {
			return nil, fmt.Errorf("Get: decode amenities: %w", err)
		}
	}
	if len(screening) > 0 {
		if err := json.Unmarshal(screening, &l.Screening); err != nil {
			return nil, fmt.Errorf("Get: decode screening: %w", err)
		}
	}

	portals, err := repo.syndicatedPortals(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	l.SyndicatedTo = portals
	return &l, nil
}

func (repo *ListingRepo) syndicatedPortals(ctx context.Context, listingID int64) ([]entity.Portal, error) {
	const query = `
SELECT portal FROM listing_portals
WHERE listing_id = $1
ORDER BY portal`
	rows, err := repo.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var portals []entity.Portal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		portal, err := entity.ParsePortal(raw)
		if err != nil {
			return nil, err
		}
		portals = append(portals, portal)
	}
	return portals, rows.Err()
}

// AddSyndicatedPortals inserts each portal into the listing's set.
// ON CONFLICT DO NOTHING makes the union idempotent.
func (repo *ListingRepo) AddSyndicatedPortals(ctx context.Context, listingID int64, portals []entity.Portal) error {
	if len(portals) == 0 {
		return nil
	}
	const insert = `
INSERT INTO listing_portals (listing_id, portal)
VALUES ($1, $2)
ON CONFLICT (listing_id, portal) DO NOTHING`
	for _, portal := range portals {
		if _, err := repo.db.ExecContext(ctx, insert, listingID, portal.String()); err != nil {
			return fmt.Errorf("AddSyndicatedPortals: %w", err)
		}
	}
	return nil
}

func (repo *ListingRepo) RemoveSyndicatedPortal(ctx context.Context, listingID int64, portal entity.Portal) error {
	const del = `
DELETE FROM listing_portals
WHERE listing_id = $1 AND portal = $2`
	if _, err := repo.db.ExecContext(ctx, del, listingID, portal.String()); err != nil {
		return fmt.Errorf("RemoveSyndicatedPortal: %w", err)
	}
	return nil
}
