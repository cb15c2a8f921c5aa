package entity

import "time"

// Address is the postal address of a listed unit.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ContactInfo is the inquiry contact published alongside a listing.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ScreeningRequirements describes tenant-screening criteria attached to a
// listing. Portals that support screening surface these to applicants.
type ScreeningRequirements struct {
	CreditCheck      bool    `json:"credit_check"`
	BackgroundCheck  bool    `json:"background_check"`
	MinimumIncome    float64 `json:"minimum_income,omitempty"`
	ReferencesNeeded int     `json:"references_needed,omitempty"`
}

// SyndicationListingData is the portal-neutral snapshot of one listing.
// It is constructed fresh per sync attempt and shared read-only across all
// portals in that attempt; it is never partially mutated in place.
//
// ExternalID is set only when the snapshot is used for an update of a
// listing the portal already knows about.
type SyndicationListingData struct {
	ListingID   int64
	Title       string
	Description string

	Address Address

	// Pricing
	RentMonthly     float64
	SecurityDeposit float64
	Currency        string

	// Unit details
	Bedrooms      int
	Bathrooms     float64
	SquareFootage int
	UnitType      string
	Furnished     bool
	PetsAllowed   bool

	AvailableFrom time.Time
	LeaseTermMin  int // months

	MediaURLs []string
	Amenities []string

	Contact   ContactInfo
	Screening ScreeningRequirements

	ExternalID string
}

// Listing is the narrow read model of a property listing consumed from the
// catalog service. Only the fields syndication needs are carried: identity,
// ownership for authorization, publishability, and the snapshot source data.
type Listing struct {
	ID        int64
	OwnerID   int64
	AgentID   int64 // 0 when no agent is assigned
	Published bool

	Title       string
	Description string
	Address     Address

	RentMonthly     float64
	SecurityDeposit float64
	Currency        string

	Bedrooms      int
	Bathrooms     float64
	SquareFootage int
	UnitType      string
	Furnished     bool
	PetsAllowed   bool

	AvailableFrom time.Time
	LeaseTermMin  int

	MediaURLs []string
	Amenities []string

	Contact   ContactInfo
	Screening ScreeningRequirements

	// SyndicatedTo is the set of portals the listing is currently
	// syndicated to. Maintained with idempotent adds and removes.
	SyndicatedTo []Portal
}
