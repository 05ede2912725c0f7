package store

import (
	"context"
	"sync"
	"time"

	"pixellocker/internal/did/models"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
)

// InMemoryStore keeps DID records in a map keyed by owner.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.Address]models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.Address]models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Owner]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.records[record.Owner] = *record
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, owner domain.Address, did string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[owner]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.DID = did
	rec.UpdatedAt = updatedAt
	s.records[owner] = rec
	return nil
}

func (s *InMemoryStore) FindByOwner(_ context.Context, owner domain.Address) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}
