package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pixellocker/internal/platform/database"
	"pixellocker/internal/role/models"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
)

// SQLStore persists the owner in the single-row role_owner table and grants in role_grants.
type SQLStore struct {
	db      database.DBTX
	dialect database.Dialect
}

func NewSQLStore(db database.DBTX, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Owner(ctx context.Context) (domain.Address, error) {
	return s.owner(ctx, `SELECT principal FROM role_owner WHERE id = 1`)
}

func (s *SQLStore) OwnerForUpdate(ctx context.Context) (domain.Address, error) {
	return s.owner(ctx, `SELECT principal FROM role_owner WHERE id = 1`+s.dialect.ForUpdate())
}

func (s *SQLStore) owner(ctx context.Context, query string) (domain.Address, error) {
	var principal string
	if err := s.db.QueryRowContext(ctx, query).Scan(&principal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("read owner: %w", err)
	}
	return domain.Address(principal), nil
}

func (s *SQLStore) SetOwner(ctx context.Context, owner domain.Address, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO role_owner (id, principal, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET principal = excluded.principal, updated_at = excluded.updated_at`),
		owner.String(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}

func (s *SQLStore) Grant(ctx context.Context, principal domain.Address, role models.Role, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO role_grants (principal, role, granted_at) VALUES (?, ?, ?)
		 ON CONFLICT (principal, role) DO NOTHING`),
		principal.String(), role.String(), at.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("grant role: %w", err)
	}
	return changed(res)
}

func (s *SQLStore) Revoke(ctx context.Context, principal domain.Address, role models.Role) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM role_grants WHERE principal = ? AND role = ?`),
		principal.String(), role.String(),
	)
	if err != nil {
		return false, fmt.Errorf("revoke role: %w", err)
	}
	return changed(res)
}

func (s *SQLStore) Has(ctx context.Context, principal domain.Address, role models.Role) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT COUNT(*) FROM role_grants WHERE principal = ? AND role = ?`),
		principal.String(), role.String(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) List(ctx context.Context, role models.Role) ([]domain.Address, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT principal FROM role_grants WHERE role = ? ORDER BY granted_at ASC, principal ASC`),
		role.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list role holders: %w", err)
	}
	defer rows.Close()

	out := []domain.Address{}
	for rows.Next() {
		var principal string
		if err := rows.Scan(&principal); err != nil {
			return nil, fmt.Errorf("scan role holder: %w", err)
		}
		out = append(out, domain.Address(principal))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role holders: %w", err)
	}
	return out, nil
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
