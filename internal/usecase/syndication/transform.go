package syndication

import "listing-syndication/internal/domain/entity"

// snapshot builds the immutable portal-neutral payload for one sync
// attempt. Slices are copied so later catalog mutations cannot bleed into
// an in-flight request; all portals in the attempt share this one value.
func snapshot(l *entity.Listing) entity.SyndicationListingData {
	data := entity.SyndicationListingData{
		ListingID:       l.ID,
		Title:           l.Title,
		Description:     l.Description,
		Address:         l.Address,
		RentMonthly:     l.RentMonthly,
		SecurityDeposit: l.SecurityDeposit,
		Currency:        l.Currency,
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		SquareFootage:   l.SquareFootage,
		UnitType:        l.UnitType,
		Furnished:       l.Furnished,
		PetsAllowed:     l.PetsAllowed,
		AvailableFrom:   l.AvailableFrom,
		LeaseTermMin:    l.LeaseTermMin,
		Contact:         l.Contact,
		Screening:       l.Screening,
	}
	if len(l.MediaURLs) > 0 {
		data.MediaURLs = append([]string(nil), l.MediaURLs...)
	}
	if len(l.Amenities) > 0 {
		data.Amenities = append([]string(nil), l.Amenities...)
	}
	return data
}

// dedupePortals drops repeated portals while preserving request order, so
// the result map carries exactly one entry per distinct requested portal.
func dedupePortals(portals []entity.Portal) []entity.Portal {
	seen := make(map[entity.Portal]struct{}, len(portals))
	out := make([]entity.Portal, 0, len(portals))
	for _, p := range portals {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
