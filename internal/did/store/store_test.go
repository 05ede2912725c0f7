package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pixellocker/internal/did/models"
	"pixellocker/internal/platform/database"
	"pixellocker/pkg/platform/sentinel"
	"pixellocker/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) TestCreateFindUpdate() {
	ctx := context.Background()
	rec := &models.Record{Owner: testutil.Alice, DID: "did:example:alice", RegisteredAt: testutil.FixedTime, UpdatedAt: testutil.FixedTime}
	s.Require().NoError(s.store.Create(ctx, rec))
	s.ErrorIs(s.store.Create(ctx, rec), sentinel.ErrAlreadyExists)

	later := testutil.FixedTime.Add(time.Hour)
	s.Require().NoError(s.store.Update(ctx, testutil.Alice, "did:example:alice-2", later))

	found, err := s.store.FindByOwner(ctx, testutil.Alice)
	s.Require().NoError(err)
	s.Equal("did:example:alice-2", found.DID)
	s.Equal(testutil.FixedTime, found.RegisteredAt)
	s.Equal(later, found.UpdatedAt)
}

func (s *InMemoryStoreSuite) TestMissingOwner() {
	ctx := context.Background()
	_, err := s.store.FindByOwner(ctx, testutil.Bob)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(ctx, testutil.Bob, "did:x", testutil.FixedTime), sentinel.ErrNotFound)
}

func TestSQLStore(t *testing.T) {
	newStore := func(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewSQLStore(db, database.SQLite), mock
	}

	t.Run("create maps unique violation", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dids (owner, did, registered_at, updated_at) VALUES (?, ?, ?, ?)`)).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := s.Create(context.Background(), &models.Record{Owner: testutil.Alice, DID: "did:x"})
		assert.ErrorIs(t, err, sentinel.ErrAlreadyExists)
	})

	t.Run("update of missing owner", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE dids SET did = ?, updated_at = ? WHERE owner = ?`)).
			WithArgs("did:y", testutil.FixedTime, testutil.Bob.String()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Update(context.Background(), testutil.Bob, "did:y", testutil.FixedTime)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("find by owner", func(t *testing.T) {
		s, mock := newStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT owner, did, registered_at, updated_at FROM dids WHERE owner = ?`)).
			WithArgs(testutil.Alice.String()).
			WillReturnRows(sqlmock.NewRows([]string{"owner", "did", "registered_at", "updated_at"}).
				AddRow(testutil.Alice.String(), "did:example:alice", testutil.FixedTime, testutil.FixedTime))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM dids WHERE owner = ?`)).WillReturnError(sql.ErrNoRows)

		rec, err := s.FindByOwner(context.Background(), testutil.Alice)
		require.NoError(t, err)
		assert.Equal(t, testutil.Alice, rec.Owner)
		assert.Equal(t, "did:example:alice", rec.DID)

		_, err = s.FindByOwner(context.Background(), testutil.Bob)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
