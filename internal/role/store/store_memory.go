package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"pixellocker/internal/role/models"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
)

type grantKey struct {
	principal domain.Address
	role      models.Role
}

// InMemoryStore keeps the owner and grants in memory. Grant order is kept
// in a slice so List matches the SQL store's ordering.
type InMemoryStore struct {
	mu     sync.RWMutex
	owner  domain.Address
	grants map[grantKey]struct{}
	order  []grantKey
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[grantKey]struct{})}
}

func (s *InMemoryStore) Owner(_ context.Context) (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner.IsNil() {
		return "", sentinel.ErrNotFound
	}
	return s.owner, nil
}

// OwnerForUpdate relies on the caller's shard lock for isolation.
func (s *InMemoryStore) OwnerForUpdate(ctx context.Context) (domain.Address, error) {
	return s.Owner(ctx)
}

func (s *InMemoryStore) SetOwner(_ context.Context, owner domain.Address, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
	return nil
}

func (s *InMemoryStore) Grant(_ context.Context, principal domain.Address, role models.Role, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{principal: principal, role: role}
	if _, ok := s.grants[key]; ok {
		return false, nil
	}
	s.grants[key] = struct{}{}
	s.order = append(s.order, key)
	return true, nil
}

func (s *InMemoryStore) Revoke(_ context.Context, principal domain.Address, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{principal: principal, role: role}
	if _, ok := s.grants[key]; !ok {
		return false, nil
	}
	delete(s.grants, key)
	s.order = slices.DeleteFunc(s.order, func(k grantKey) bool { return k == key })
	return true, nil
}

func (s *InMemoryStore) Has(_ context.Context, principal domain.Address, role models.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[grantKey{principal: principal, role: role}]
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context, role models.Role) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Address{}
	for _, k := range s.order {
		if k.role == role {
			out = append(out, k.principal)
		}
	}
	return out, nil
}
