package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pixellocker/internal/credential/models"
	"pixellocker/internal/platform/database"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
)

const credentialColumns = `id, issuer, subject, payload_pointer, issued_at, issued_height, is_revoked, revoked_at, revoked_height`

// SQLStore persists credentials in Postgres or SQLite. Bound to a *sql.Tx it
// joins the caller's transaction.
//
// Every mutation starts by bumping the single ledger_height row, so concurrent
// mutations serialise on that row lock and heights follow commit order.
type SQLStore struct {
	db      database.DBTX
	dialect database.Dialect
}

func NewSQLStore(db database.DBTX, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Create(ctx context.Context, credential *models.Credential) error {
	height, err := s.bumpHeight(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO credentials (id, issuer, subject, payload_pointer, issued_at, issued_height, is_revoked)
		 VALUES (?, ?, ?, ?, ?, ?, FALSE)`),
		credential.ID,
		credential.Issuer.String(),
		credential.Subject.String(),
		credential.PayloadPointer,
		credential.IssuedAt.UTC(),
		int64(height), //nolint:gosec // heights stay far below MaxInt64
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	credential.IssuedHeight = height
	return nil
}

func (s *SQLStore) MarkRevoked(ctx context.Context, id string, revokedAt time.Time) (uint64, error) {
	height, err := s.bumpHeight(ctx)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE credentials SET is_revoked = TRUE, revoked_at = ?, revoked_height = ?
		 WHERE id = ? AND is_revoked = FALSE`),
		revokedAt.UTC(), int64(height), id, //nolint:gosec // heights stay far below MaxInt64
	)
	if err != nil {
		return 0, fmt.Errorf("revoke credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke credential: %w", err)
	}
	if affected == 0 {
		// The caller's transaction rolls back the height bump.
		if _, err := s.FindByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, sentinel.ErrInvalidState
	}
	return height, nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Credential, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`), id)
	rec, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by id: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) FindLatestByPayloadPointer(ctx context.Context, pointer string) (*models.Credential, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+credentialColumns+` FROM credentials
		 WHERE payload_pointer = ? ORDER BY issued_height DESC LIMIT 1`), pointer)
	rec, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by payload pointer: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) ListIDsByIssuer(ctx context.Context, issuer domain.Address) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM credentials WHERE issuer = ? ORDER BY issued_height ASC`, issuer)
}

func (s *SQLStore) ListIDsBySubject(ctx context.Context, subject domain.Address) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM credentials WHERE subject = ? ORDER BY issued_height ASC`, subject)
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Height(ctx context.Context) (uint64, error) {
	var h int64
	if err := s.db.QueryRowContext(ctx, `SELECT height FROM ledger_height WHERE id = 1`).Scan(&h); err != nil {
		return 0, fmt.Errorf("read ledger height: %w", err)
	}
	return uint64(h), nil //nolint:gosec // height is never negative
}

func (s *SQLStore) bumpHeight(ctx context.Context) (uint64, error) {
	var h int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE ledger_height SET height = height + 1 WHERE id = 1 RETURNING height`).Scan(&h)
	if err != nil {
		return 0, fmt.Errorf("bump ledger height: %w", err)
	}
	return uint64(h), nil //nolint:gosec // height is never negative
}

func (s *SQLStore) listIDs(ctx context.Context, query string, principal domain.Address) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), principal.String())
	if err != nil {
		return nil, fmt.Errorf("list credential ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan credential id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential ids: %w", err)
	}
	return ids, nil
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.Credential, error) {
	var (
		rec           models.Credential
		issuer        string
		subject       string
		issuedHeight  int64
		revokedAt     sql.NullTime
		revokedHeight sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &issuer, &subject, &rec.PayloadPointer, &rec.IssuedAt,
		&issuedHeight, &rec.IsRevoked, &revokedAt, &revokedHeight); err != nil {
		return nil, err
	}
	rec.Issuer = domain.Address(issuer)
	rec.Subject = domain.Address(subject)
	rec.IssuedAt = rec.IssuedAt.UTC()
	rec.IssuedHeight = uint64(issuedHeight) //nolint:gosec // height is never negative
	if revokedAt.Valid {
		rec.RevokedAt = revokedAt.Time.UTC()
	}
	if revokedHeight.Valid {
		rec.RevokedHeight = uint64(revokedHeight.Int64) //nolint:gosec // height is never negative
	}
	return &rec, nil
}
