package provider

import (
	"fmt"
	"sync"
	"time"

	"listing-syndication/internal/domain/entity"
)

// ListingStateRecord is a provider's bookkeeping for one (listing, portal)
// pair: the portal-assigned external id, current status, external URL, and
// last-synced time. It decides publish-vs-update on the next attempt.
//
// Records are never physically deleted; removal transitions the status to
// removed so the history stays auditable.
type ListingStateRecord struct {
	ListingID   int64
	Portal      entity.Portal
	ExternalID  string
	Status      entity.SyndicationStatus
	ExternalURL string
	LastSynced  time.Time
}

// ListingStateStore holds ListingStateRecord entries keyed by (listing,
// portal). It is an explicit object with injected lifetime, constructed
// once per process or per test, so state never leaks across tests.
type ListingStateStore struct {
	mu      sync.RWMutex
	records map[string]*ListingStateRecord
}

// NewListingStateStore creates an empty state store.
func NewListingStateStore() *ListingStateStore {
	return &ListingStateStore{records: make(map[string]*ListingStateRecord)}
}

func stateKey(listingID int64, portal entity.Portal) string {
	return fmt.Sprintf("%d:%s", listingID, portal)
}

// Get returns a copy of the record for the pair, or nil when none exists.
func (s *ListingStateStore) Get(listingID int64, portal entity.Portal) *ListingStateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[stateKey(listingID, portal)]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// GetByExternalID returns a copy of the record carrying the external id,
// or nil when the id is unknown.
func (s *ListingStateStore) GetByExternalID(externalID string) *ListingStateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ExternalID == externalID {
			cp := *rec
			return &cp
		}
	}
	return nil
}

// Put upserts the record for its (listing, portal) pair.
func (s *ListingStateStore) Put(rec ListingStateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[stateKey(rec.ListingID, rec.Portal)] = &rec
}

// MarkRemoved transitions the pair's record to removed, keeping the record
// itself. Returns false when no record exists for the pair.
func (s *ListingStateStore) MarkRemoved(listingID int64, portal entity.Portal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[stateKey(listingID, portal)]
	if !ok {
		return false
	}
	rec.Status = entity.StatusRemoved
	rec.LastSynced = time.Now()
	return true
}

// Len returns the number of records held.
func (s *ListingStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
