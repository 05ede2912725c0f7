package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pixellocker/internal/did/models"
	"pixellocker/internal/platform/database"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
)

// SQLStore persists DID records in the dids table.
type SQLStore struct {
	db      database.DBTX
	dialect database.Dialect
}

func NewSQLStore(db database.DBTX, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Create(ctx context.Context, record *models.Record) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO dids (owner, did, registered_at, updated_at) VALUES (?, ?, ?, ?)`),
		record.Owner.String(), record.DID, record.RegisteredAt.UTC(), record.UpdatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert did: %w", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, owner domain.Address, did string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE dids SET did = ?, updated_at = ? WHERE owner = ?`),
		did, updatedAt.UTC(), owner.String(),
	)
	if err != nil {
		return fmt.Errorf("update did: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update did: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLStore) FindByOwner(ctx context.Context, owner domain.Address) (*models.Record, error) {
	var (
		rec      models.Record
		ownerStr string
	)
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT owner, did, registered_at, updated_at FROM dids WHERE owner = ?`),
		owner.String(),
	).Scan(&ownerStr, &rec.DID, &rec.RegisteredAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find did by owner: %w", err)
	}
	rec.Owner = domain.Address(ownerStr)
	rec.RegisteredAt = rec.RegisteredAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}
