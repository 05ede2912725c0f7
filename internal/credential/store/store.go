package store

import (
	"context"
	"time"

	"pixellocker/internal/credential/models"
	"pixellocker/pkg/domain"
)

// Store persists credential records and the ledger height.
//
// Errors: implementations return sentinel.ErrNotFound for absent ids,
// sentinel.ErrAlreadyExists on a duplicate id and sentinel.ErrInvalidState
// when revoking a credential that is already revoked.
type Store interface {
	// Create inserts a new record, bumps the ledger height and stamps
	// credential.IssuedHeight with the new height.
	Create(ctx context.Context, credential *models.Credential) error

	// MarkRevoked flips a record to revoked and returns the ledger height
	// at which the revocation committed.
	MarkRevoked(ctx context.Context, id string, revokedAt time.Time) (uint64, error)

	FindByID(ctx context.Context, id string) (*models.Credential, error)

	// FindLatestByPayloadPointer returns the most recently issued record for pointer.
	FindLatestByPayloadPointer(ctx context.Context, pointer string) (*models.Credential, error)

	// ListIDsByIssuer and ListIDsBySubject return ids in issuance order.
	ListIDsByIssuer(ctx context.Context, issuer domain.Address) ([]string, error)
	ListIDsBySubject(ctx context.Context, subject domain.Address) ([]string, error)

	Count(ctx context.Context) (int64, error)
	Height(ctx context.Context) (uint64, error)
}
