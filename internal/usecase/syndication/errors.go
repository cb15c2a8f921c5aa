// Package syndication orchestrates pushing listings to external rental
// portals: authorization, rate limiting, per-pair sync locks, provider
// calls and durable per-portal status bookkeeping.
package syndication

import "errors"

// Sentinel errors for syndication use case operations. These abort the
// whole request; per-portal failures are reported inside the result map
// instead.
var (
	// ErrAuthRequired indicates the request carried no authenticated actor.
	ErrAuthRequired = errors.New("authentication required")

	// ErrForbidden indicates the actor is neither an administrator, the
	// listing's owner, nor its assigned agent.
	ErrForbidden = errors.New("actor may not manage this listing")

	// ErrListingNotFound indicates the listing does not exist.
	ErrListingNotFound = errors.New("listing not found")

	// ErrNotPublished indicates the listing is not in a publishable state.
	ErrNotPublished = errors.New("listing is not published")

	// ErrNoPortals indicates the request named no portals.
	ErrNoPortals = errors.New("no portals requested")
)
