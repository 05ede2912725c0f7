package service

//go:generate mockgen -source=../store/store.go -destination=mocks/store_mock.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pixellocker/internal/role/models"
	"pixellocker/internal/role/service/mocks"
	"pixellocker/internal/role/store"
	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/platform/outbox"
	"pixellocker/pkg/platform/sentinel"
	platformsync "pixellocker/pkg/platform/sync"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testutil.FixedTime)
}

func newMemoryService() (*Service, *outbox.InMemoryStore) {
	mem := store.NewInMemoryStore()
	events := outbox.NewInMemoryStore()
	svc := New(mem, platformsync.NewShardedTx(Tx{Roles: mem, Outbox: events}, 0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return svc, events
}

func (s *ServiceSuite) TestBootstrap() {
	svc, events := newMemoryService()

	owner, err := svc.Owner(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.ZeroAddress, owner)

	s.Require().NoError(svc.Bootstrap(s.ctx, testutil.Alice))
	s.Require().NoError(svc.Bootstrap(s.ctx, testutil.Bob))

	owner, err = svc.Owner(s.ctx)
	s.Require().NoError(err)
	s.Equal(testutil.Alice, owner, "existing owner survives a second bootstrap")
	s.Require().Len(events.All(), 1)
	s.Equal(models.EventOwnershipTransferred, events.All()[0].EventType)
}

func (s *ServiceSuite) TestRoleOfPriority() {
	svc, _ := newMemoryService()
	s.Require().NoError(svc.Bootstrap(s.ctx, testutil.Alice))
	s.Require().NoError(svc.AddIssuer(s.ctx, testutil.Alice, testutil.Alice))
	s.Require().NoError(svc.AddIssuer(s.ctx, testutil.Alice, testutil.Bob))
	s.Require().NoError(svc.AddVerifier(s.ctx, testutil.Alice, testutil.Bob))
	s.Require().NoError(svc.AddVerifier(s.ctx, testutil.Alice, testutil.Carol))

	cases := map[domain.Address]models.Role{
		testutil.Alice:     models.RoleOwner,
		testutil.Bob:       models.RoleIssuer,
		testutil.Carol:     models.RoleVerifier,
		testutil.Dave:      models.RoleUser,
		domain.ZeroAddress: models.RoleUser,
	}
	for principal, want := range cases {
		got, err := svc.RoleOf(s.ctx, principal)
		s.Require().NoError(err)
		s.Equal(want, got, principal.String())
	}

	canIssue, err := svc.CanIssue(s.ctx, testutil.Carol)
	s.Require().NoError(err)
	s.False(canIssue)
	canIssue, err = svc.CanIssue(s.ctx, testutil.Alice)
	s.Require().NoError(err)
	s.True(canIssue)
}

func (s *ServiceSuite) TestGrantsAreOwnerGatedAndIdempotent() {
	svc, events := newMemoryService()
	s.Require().NoError(svc.Bootstrap(s.ctx, testutil.Alice))

	err := svc.AddIssuer(s.ctx, testutil.Bob, testutil.Bob)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.Require().NoError(svc.AddIssuer(s.ctx, testutil.Alice, testutil.Bob))
	s.Require().NoError(svc.AddIssuer(s.ctx, testutil.Alice, testutil.Bob))
	s.Require().NoError(svc.RemoveIssuer(s.ctx, testutil.Alice, testutil.Bob))
	s.Require().NoError(svc.RemoveIssuer(s.ctx, testutil.Alice, testutil.Bob))

	isIssuer, err := svc.IsIssuer(s.ctx, testutil.Bob)
	s.Require().NoError(err)
	s.False(isIssuer)

	var types []string
	for _, e := range events.All() {
		types = append(types, e.EventType)
	}
	s.Equal([]string{models.EventOwnershipTransferred, models.EventRoleGranted, models.EventRoleRevoked}, types)

	err = svc.AddVerifier(s.ctx, testutil.Alice, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestTransferOwnership() {
	svc, _ := newMemoryService()
	s.Require().NoError(svc.Bootstrap(s.ctx, testutil.Alice))

	err := svc.TransferOwnership(s.ctx, testutil.Bob, testutil.Bob)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	err = svc.TransferOwnership(s.ctx, testutil.Alice, domain.ZeroAddress)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.Require().NoError(svc.TransferOwnership(s.ctx, testutil.Alice, testutil.Bob))
	role, err := svc.RoleOf(s.ctx, testutil.Alice)
	s.Require().NoError(err)
	s.Equal(models.RoleUser, role)

	err = svc.AddIssuer(s.ctx, testutil.Alice, testutil.Carol)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "former owner lost management rights")
}

func (s *ServiceSuite) TestNoOwnerConfigured() {
	svc, _ := newMemoryService()
	err := svc.AddIssuer(s.ctx, testutil.Alice, testutil.Bob)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestStoreFailures() {
	ctrl := gomock.NewController(s.T())
	mockStore := mocks.NewMockStore(ctrl)
	svc := New(mockStore, platformsync.NewShardedTx(Tx{Roles: mockStore, Outbox: outbox.NewInMemoryStore()}, 0))

	mockStore.EXPECT().Owner(gomock.Any()).Return(domain.Address(""), errors.New("connection refused"))
	_, err := svc.RoleOf(s.ctx, testutil.Bob)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	mockStore.EXPECT().OwnerForUpdate(gomock.Any()).Return(testutil.Alice, nil)
	mockStore.EXPECT().Grant(gomock.Any(), testutil.Bob, models.RoleIssuer, testutil.FixedTime).Return(false, errors.New("disk full"))
	err = svc.AddIssuer(s.ctx, testutil.Alice, testutil.Bob)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	mockStore.EXPECT().Owner(gomock.Any()).Return(domain.Address(""), sentinel.ErrNotFound)
	mockStore.EXPECT().Has(gomock.Any(), testutil.Bob, models.RoleIssuer).Return(false, nil)
	mockStore.EXPECT().Has(gomock.Any(), testutil.Bob, models.RoleVerifier).Return(true, nil)
	role, err := svc.RoleOf(s.ctx, testutil.Bob)
	s.Require().NoError(err)
	s.Equal(models.RoleVerifier, role)
}

func (s *ServiceSuite) TestGrantsIgnoreAddressCase() {
	svc, events := newMemoryService()
	s.Require().NoError(svc.Bootstrap(s.ctx, domain.Address(strings.ToLower(testutil.Alice.String()))))
	lowerBob := domain.Address(strings.ToLower(testutil.Bob.String()))

	owner, err := svc.Owner(s.ctx)
	s.Require().NoError(err)
	s.Equal(testutil.Alice, owner)

	s.Require().NoError(svc.AddIssuer(s.ctx, testutil.Alice, lowerBob))
	s.Require().NoError(svc.AddIssuer(s.ctx, testutil.Alice, testutil.Bob))
	s.Len(events.All(), 2, "second grant is the same principal")

	isIssuer, err := svc.IsIssuer(s.ctx, testutil.Bob)
	s.Require().NoError(err)
	s.True(isIssuer)
	role, err := svc.RoleOf(s.ctx, lowerBob)
	s.Require().NoError(err)
	s.Equal(models.RoleIssuer, role)

	s.Require().NoError(svc.RemoveIssuer(s.ctx, testutil.Alice, lowerBob))
	isIssuer, err = svc.IsIssuer(s.ctx, testutil.Bob)
	s.Require().NoError(err)
	s.False(isIssuer)
}
