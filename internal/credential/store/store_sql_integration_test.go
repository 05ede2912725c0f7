//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"pixellocker/internal/credential/models"
	"pixellocker/internal/credential/store"
	"pixellocker/internal/platform/database"
	"pixellocker/pkg/platform/sentinel"
	"pixellocker/pkg/testutil"
	"pixellocker/pkg/testutil/containers"
)

type SQLStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.SQLStore
}

func TestSQLStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SQLStoreSuite))
}

func (s *SQLStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewSQLStore(s.postgres.DB, database.Postgres)
}

func (s *SQLStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *SQLStoreSuite) credential(id string) *models.Credential {
	return &models.Credential{
		ID:             id,
		Issuer:         testutil.Alice,
		Subject:        testutil.Bob,
		PayloadPointer: "ipfs://" + id,
		IssuedAt:       testutil.FixedTime,
	}
}

func (s *SQLStoreSuite) TestLifecycle() {
	ctx := context.Background()
	cred := s.credential("cred-1")
	s.Require().NoError(s.store.Create(ctx, cred))
	s.Equal(uint64(1), cred.IssuedHeight)

	s.ErrorIs(s.store.Create(ctx, s.credential("cred-1")), sentinel.ErrAlreadyExists)

	height, err := s.store.MarkRevoked(ctx, "cred-1", testutil.FixedTime.Add(1))
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, "cred-1")
	s.Require().NoError(err)
	s.True(found.IsRevoked)
	s.Equal(height, found.RevokedHeight)

	_, err = s.store.MarkRevoked(ctx, "cred-1", testutil.FixedTime)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

// Concurrent issues with the same id: exactly one insert wins and the
// height reflects only committed mutations.
func (s *SQLStoreSuite) TestConcurrentIssueSameID() {
	ctx := context.Background()
	runner := database.NewTxRunner(s.postgres.DB, 0, func(tx database.DBTX) *store.SQLStore {
		return store.NewSQLStore(tx, database.Postgres)
	})

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runner.RunInTx(ctx, "dup", func(ctx context.Context, tx *store.SQLStore) error {
				return tx.Create(ctx, s.credential("dup"))
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, sentinel.ErrAlreadyExists):
				conflicts++
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(workers-1, conflicts)
	height, err := s.store.Height(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), height)
}

func (s *SQLStoreSuite) TestIndexesFollowHeightOrder() {
	ctx := context.Background()
	for i := 3; i > 0; i-- {
		s.Require().NoError(s.store.Create(ctx, s.credential(fmt.Sprintf("c%d", i))))
	}
	ids, err := s.store.ListIDsByIssuer(ctx, testutil.Alice)
	s.Require().NoError(err)
	s.Equal([]string{"c3", "c2", "c1"}, ids)

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}
