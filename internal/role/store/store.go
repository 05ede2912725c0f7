package store

import (
	"context"
	"time"

	"pixellocker/internal/role/models"
	"pixellocker/pkg/domain"
)

// Store persists the owner and role grants.
// Owner and OwnerForUpdate return sentinel.ErrNotFound before an owner is set.
type Store interface {
	Owner(ctx context.Context) (domain.Address, error)

	// OwnerForUpdate is Owner with a row lock held until the transaction ends.
	OwnerForUpdate(ctx context.Context) (domain.Address, error)

	SetOwner(ctx context.Context, owner domain.Address, at time.Time) error

	// Grant and Revoke report whether the grant set changed.
	Grant(ctx context.Context, principal domain.Address, role models.Role, at time.Time) (bool, error)
	Revoke(ctx context.Context, principal domain.Address, role models.Role) (bool, error)

	Has(ctx context.Context, principal domain.Address, role models.Role) (bool, error)

	// List returns holders of role in grant order.
	List(ctx context.Context, role models.Role) ([]domain.Address, error)
}
