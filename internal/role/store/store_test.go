package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixellocker/internal/platform/database"
	"pixellocker/internal/role/models"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/platform/sentinel"
	"pixellocker/pkg/testutil"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Owner(ctx)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.SetOwner(ctx, testutil.Alice, testutil.FixedTime))
	owner, err := s.OwnerForUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.Alice, owner)

	added, err := s.Grant(ctx, testutil.Bob, models.RoleIssuer, testutil.FixedTime)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Grant(ctx, testutil.Bob, models.RoleIssuer, testutil.FixedTime)
	require.NoError(t, err)
	assert.False(t, added, "second grant is a no-op")

	_, _ = s.Grant(ctx, testutil.Dave, models.RoleIssuer, testutil.FixedTime)
	_, _ = s.Grant(ctx, testutil.Carol, models.RoleVerifier, testutil.FixedTime)

	issuers, err := s.List(ctx, models.RoleIssuer)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{testutil.Bob, testutil.Dave}, issuers)

	removed, err := s.Revoke(ctx, testutil.Bob, models.RoleIssuer)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Revoke(ctx, testutil.Bob, models.RoleIssuer)
	require.NoError(t, err)
	assert.False(t, removed)

	has, err := s.Has(ctx, testutil.Carol, models.RoleVerifier)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.Has(ctx, testutil.Carol, models.RoleIssuer)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLStore(t *testing.T) {
	newStore := func(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewSQLStore(db, database.Postgres), mock
	}

	t.Run("owner for update locks the row", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT principal FROM role_owner WHERE id = 1 FOR UPDATE`)).
			WillReturnRows(sqlmock.NewRows([]string{"principal"}).AddRow(testutil.Alice.String()))

		owner, err := s.OwnerForUpdate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testutil.Alice, owner)
	})

	t.Run("missing owner", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT principal FROM role_owner`)).WillReturnError(sql.ErrNoRows)

		_, err := s.Owner(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("set owner upserts", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO role_owner (id, principal, updated_at) VALUES (1, $1, $2)`)).
			WithArgs(testutil.Bob.String(), testutil.FixedTime).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SetOwner(context.Background(), testutil.Bob, testutil.FixedTime))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("grant reports whether a row was inserted", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO role_grants`)).
			WithArgs(testutil.Bob.String(), "issuer", testutil.FixedTime).
			WillReturnResult(sqlmock.NewResult(0, 0))

		added, err := s.Grant(context.Background(), testutil.Bob, models.RoleIssuer, testutil.FixedTime)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("list in grant order", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT principal FROM role_grants WHERE role = $1 ORDER BY granted_at ASC`)).
			WithArgs("verifier").
			WillReturnRows(sqlmock.NewRows([]string{"principal"}).AddRow(testutil.Carol.String()).AddRow(testutil.Bob.String()))

		got, err := s.List(context.Background(), models.RoleVerifier)
		require.NoError(t, err)
		assert.Equal(t, []domain.Address{testutil.Carol, testutil.Bob}, got)
	})
}
