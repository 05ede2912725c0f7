package store

import (
	"context"
	"time"

	"pixellocker/internal/did/models"
	"pixellocker/pkg/domain"
)

// Store persists DID records. Records are never deleted.
//
// Create returns sentinel.ErrAlreadyExists when the owner has a record;
// Update and FindByOwner return sentinel.ErrNotFound when it has none.
type Store interface {
	Create(ctx context.Context, record *models.Record) error
	Update(ctx context.Context, owner domain.Address, did string, updatedAt time.Time) error
	FindByOwner(ctx context.Context, owner domain.Address) (*models.Record, error)
}
