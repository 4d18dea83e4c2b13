package store

import (
	"context"
	"sync"

	"screener/internal/screening/identity"
	"screener/internal/screening/models"
	"screener/pkg/requestcontext"
)

// InMemoryStore keeps person records in a map. Used for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[models.IdentityKey]models.StoredPersonRecord
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[models.IdentityKey]models.StoredPersonRecord),
	}
}

// BulkUpsert applies each record under one lock.
func (s *InMemoryStore) BulkUpsert(ctx context.Context, records []models.ScreenedPerson) error {
	if len(records) == 0 {
		return nil
	}
	now := requestcontext.Now(ctx).UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		key := identity.Key(r.Identity)
		existing, ok := s.records[key]
		createdAt := now
		if ok {
			createdAt = existing.CreatedAt
		}
		s.records[key] = models.StoredPersonRecord{
			Name:         r.Identity.Name,
			DOB:          r.Identity.DOB,
			Country:      r.Identity.Country,
			NameMatch:    r.Verdict.NameMatch,
			DOBMatch:     r.Verdict.DOBMatch,
			CountryMatch: r.Verdict.CountryMatch,
			CreatedAt:    createdAt,
			UpdatedAt:    now,
		}
	}
	return nil
}

// Find returns the stored record for an identity.
func (s *InMemoryStore) Find(_ context.Context, id models.Identity) (*models.StoredPersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[identity.Key(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// Count returns the number of stored identities.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Health always succeeds.
func (s *InMemoryStore) Health(context.Context) error {
	return nil
}
