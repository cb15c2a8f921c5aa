// Package entity defines the core domain types for listing syndication:
// portals, syndication statuses and their transition rules, listing
// snapshots, sync results, and webhook events.
package entity

import "fmt"

// Portal identifies an external listing-publishing destination.
// The value is used as a map and partition key everywhere, so it is
// immutable and validated at every deserialization boundary.
type Portal string

// Known portals. The set is closed; unknown values are rejected by
// ParsePortal.
const (
	PortalZillow     Portal = "zillow"
	PortalTrulia     Portal = "trulia"
	PortalRealtor    Portal = "realtor"
	PortalApartments Portal = "apartments"
	PortalStreetEasy Portal = "streeteasy"
	PortalZumper     Portal = "zumper"
	PortalCraigslist Portal = "craigslist"
	PortalFacebook   Portal = "facebook"
	PortalHotpads    Portal = "hotpads"
)

// AllPortals lists every known portal in a stable order.
// Used for provider status reports and configuration validation.
var AllPortals = []Portal{
	PortalZillow,
	PortalTrulia,
	PortalRealtor,
	PortalApartments,
	PortalStreetEasy,
	PortalZumper,
	PortalCraigslist,
	PortalFacebook,
	PortalHotpads,
}

var portalSet = func() map[Portal]struct{} {
	m := make(map[Portal]struct{}, len(AllPortals))
	for _, p := range AllPortals {
		m[p] = struct{}{}
	}
	return m
}()

// ParsePortal validates a raw string against the known portal set.
// Returns ErrUnknownPortal (wrapped with the offending value) for
// anything outside the set.
func ParsePortal(s string) (Portal, error) {
	p := Portal(s)
	if _, ok := portalSet[p]; !ok {
		return "", fmt.Errorf("portal %q: %w", s, ErrUnknownPortal)
	}
	return p, nil
}

// Valid reports whether the portal is one of the known values.
func (p Portal) Valid() bool {
	_, ok := portalSet[p]
	return ok
}

// String returns the portal identifier.
func (p Portal) String() string { return string(p) }
