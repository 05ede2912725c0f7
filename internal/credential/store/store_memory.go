package store

import (
	"context"
	"sync"
	"time"

	"pixellocker/internal/credential/models"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in process memory.
// Index slices are append-only, so issuance order is preserved without sorting.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*models.Credential
	byIssuer  map[domain.Address][]string
	bySubject map[domain.Address][]string
	byPointer map[string]string // pointer -> most recent id
	height    uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[string]*models.Credential),
		byIssuer:  make(map[domain.Address][]string),
		bySubject: make(map[domain.Address][]string),
		byPointer: make(map[string]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[credential.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.height++
	credential.IssuedHeight = s.height

	cp := *credential
	s.records[cp.ID] = &cp
	s.byIssuer[cp.Issuer] = append(s.byIssuer[cp.Issuer], cp.ID)
	s.bySubject[cp.Subject] = append(s.bySubject[cp.Subject], cp.ID)
	s.byPointer[cp.PayloadPointer] = cp.ID
	return nil
}

func (s *InMemoryStore) MarkRevoked(_ context.Context, id string, revokedAt time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if rec.IsRevoked {
		return 0, sentinel.ErrInvalidState
	}
	s.height++
	rec.IsRevoked = true
	rec.RevokedAt = revokedAt
	rec.RevokedHeight = s.height
	return s.height, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) FindLatestByPayloadPointer(ctx context.Context, pointer string) (*models.Credential, error) {
	s.mu.RLock()
	id, ok := s.byPointer[pointer]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *InMemoryStore) ListIDsByIssuer(_ context.Context, issuer domain.Address) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.byIssuer[issuer]...), nil
}

func (s *InMemoryStore) ListIDsBySubject(_ context.Context, subject domain.Address) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.bySubject[subject]...), nil
}

func (s *InMemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *InMemoryStore) Height(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}
