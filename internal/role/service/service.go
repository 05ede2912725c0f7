package service

import (
	"context"
	"errors"
	"log/slog"

	"pixellocker/internal/role/models"
	"pixellocker/internal/role/store"
	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/platform/outbox"
	"pixellocker/pkg/platform/sentinel"
	"pixellocker/pkg/requestcontext"
)

// txKey serialises every role mutation on in-memory runners: the owner check
// and the write it guards must not interleave with a transfer.
const txKey = "roles"

// Tx is the set of stores a role mutation writes to.
type Tx struct {
	Roles  store.Store
	Outbox outbox.Appender
}

// TxRunner provides the transactional boundary for role mutations.
type TxRunner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context, tx Tx) error) error
}

type Option func(*Service)

// Service manages the owner and the issuer and verifier sets.
type Service struct {
	store  store.Store
	tx     TxRunner
	logger *slog.Logger
}

func New(st store.Store, tx TxRunner, opts ...Option) *Service {
	svc := &Service{store: st, tx: tx}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Bootstrap installs owner when no owner is set yet. An existing owner is kept,
// so a restart with a different configured owner does not take over the ledger.
func (s *Service) Bootstrap(ctx context.Context, owner domain.Address) error {
	if owner.IsNil() {
		return nil
	}
	owner = owner.Canonical()
	return s.tx.RunInTx(ctx, txKey, func(ctx context.Context, tx Tx) error {
		current, err := tx.Roles.OwnerForUpdate(ctx)
		switch {
		case err == nil:
			if !current.Equal(owner) {
				s.logger.WarnContext(ctx, "configured owner ignored; ledger already has an owner",
					"owner", current,
					"configured", owner,
				)
			}
			return nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read owner")
		}

		now := requestcontext.Now(ctx)
		if err := tx.Roles.SetOwner(ctx, owner, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set owner")
		}
		s.logger.InfoContext(ctx, "owner bootstrapped", "owner", owner)
		return appendEvent(ctx, tx, owner.String(), models.EventOwnershipTransferred, models.OwnershipEvent{
			Owner: owner.String(),
			At:    now,
		})
	})
}

// Owner returns the current owner, or ZeroAddress when none is set.
func (s *Service) Owner(ctx context.Context) (domain.Address, error) {
	owner, err := s.store.Owner(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.ZeroAddress, nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read owner")
	}
	return owner, nil
}

// RoleOf returns the highest role held by principal.
func (s *Service) RoleOf(ctx context.Context, principal domain.Address) (models.Role, error) {
	if principal.IsNil() {
		return models.RoleUser, nil
	}
	principal = principal.Canonical()
	owner, err := s.Owner(ctx)
	if err != nil {
		return "", err
	}
	if owner.Equal(principal) {
		return models.RoleOwner, nil
	}
	for _, role := range []models.Role{models.RoleIssuer, models.RoleVerifier} {
		ok, err := s.store.Has(ctx, principal, role)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role")
		}
		if ok {
			return role, nil
		}
	}
	return models.RoleUser, nil
}

// IsIssuer reports whether principal holds the issuer grant.
func (s *Service) IsIssuer(ctx context.Context, principal domain.Address) (bool, error) {
	ok, err := s.store.Has(ctx, principal.Canonical(), models.RoleIssuer)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role")
	}
	return ok, nil
}

// CanIssue reports whether principal is the owner or an issuer.
func (s *Service) CanIssue(ctx context.Context, principal domain.Address) (bool, error) {
	role, err := s.RoleOf(ctx, principal)
	if err != nil {
		return false, err
	}
	return role == models.RoleOwner || role == models.RoleIssuer, nil
}

// Summary lists the owner and every grant holder.
func (s *Service) Summary(ctx context.Context) (*models.Summary, error) {
	owner, err := s.Owner(ctx)
	if err != nil {
		return nil, err
	}
	issuers, err := s.store.List(ctx, models.RoleIssuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	verifiers, err := s.store.List(ctx, models.RoleVerifier)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifiers")
	}
	return &models.Summary{Owner: owner, Issuers: issuers, Verifiers: verifiers}, nil
}

func (s *Service) AddIssuer(ctx context.Context, caller, principal domain.Address) error {
	return s.grant(ctx, caller, principal, models.RoleIssuer)
}

func (s *Service) RemoveIssuer(ctx context.Context, caller, principal domain.Address) error {
	return s.revoke(ctx, caller, principal, models.RoleIssuer)
}

func (s *Service) AddVerifier(ctx context.Context, caller, principal domain.Address) error {
	return s.grant(ctx, caller, principal, models.RoleVerifier)
}

func (s *Service) RemoveVerifier(ctx context.Context, caller, principal domain.Address) error {
	return s.revoke(ctx, caller, principal, models.RoleVerifier)
}

// TransferOwnership hands the owner role to newOwner. Only the owner may call it.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner domain.Address) error {
	if newOwner.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "new owner cannot be the null principal")
	}
	newOwner = newOwner.Canonical()
	err := s.tx.RunInTx(ctx, txKey, func(ctx context.Context, tx Tx) error {
		previous, err := requireOwner(ctx, tx, caller)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if err := tx.Roles.SetOwner(ctx, newOwner, now); err != nil {
			return err
		}
		return appendEvent(ctx, tx, newOwner.String(), models.EventOwnershipTransferred, models.OwnershipEvent{
			Previous: previous.String(),
			Owner:    newOwner.String(),
			At:       now,
		})
	})
	if err != nil {
		return translate(err, "failed to transfer ownership")
	}
	s.logger.InfoContext(ctx, "ownership transferred",
		"request_id", requestcontext.RequestID(ctx),
		"previous", caller,
		"owner", newOwner,
	)
	return nil
}

// grant is idempotent: granting a held role succeeds without an event.
func (s *Service) grant(ctx context.Context, caller, principal domain.Address, role models.Role) error {
	if principal.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "principal cannot be the null principal")
	}
	principal = principal.Canonical()
	err := s.tx.RunInTx(ctx, txKey, func(ctx context.Context, tx Tx) error {
		if _, err := requireOwner(ctx, tx, caller); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		added, err := tx.Roles.Grant(ctx, principal, role, now)
		if err != nil || !added {
			return err
		}
		return appendEvent(ctx, tx, principal.String(), models.EventRoleGranted, models.GrantEvent{
			Principal: principal.String(),
			Role:      role.String(),
			By:        caller.String(),
			At:        now,
		})
	})
	if err != nil {
		return translate(err, "failed to grant role")
	}
	s.logger.InfoContext(ctx, "role granted",
		"request_id", requestcontext.RequestID(ctx),
		"principal", principal,
		"role", role,
	)
	return nil
}

// revoke is idempotent: revoking an absent grant succeeds without an event.
func (s *Service) revoke(ctx context.Context, caller, principal domain.Address, role models.Role) error {
	if principal.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "principal cannot be the null principal")
	}
	principal = principal.Canonical()
	err := s.tx.RunInTx(ctx, txKey, func(ctx context.Context, tx Tx) error {
		if _, err := requireOwner(ctx, tx, caller); err != nil {
			return err
		}
		removed, err := tx.Roles.Revoke(ctx, principal, role)
		if err != nil || !removed {
			return err
		}
		return appendEvent(ctx, tx, principal.String(), models.EventRoleRevoked, models.GrantEvent{
			Principal: principal.String(),
			Role:      role.String(),
			By:        caller.String(),
			At:        requestcontext.Now(ctx),
		})
	})
	if err != nil {
		return translate(err, "failed to revoke role")
	}
	s.logger.InfoContext(ctx, "role revoked",
		"request_id", requestcontext.RequestID(ctx),
		"principal", principal,
		"role", role,
	)
	return nil
}

func requireOwner(ctx context.Context, tx Tx, caller domain.Address) (domain.Address, error) {
	owner, err := tx.Roles.OwnerForUpdate(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeForbidden, "no owner is configured")
		}
		return "", err
	}
	if caller.IsNil() || !owner.Equal(caller) {
		return "", dErrors.New(dErrors.CodeForbidden, "only the owner can manage roles")
	}
	return owner, nil
}

func translate(err error, msg string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func appendEvent(ctx context.Context, tx Tx, aggregateID, eventType string, data any) error {
	entry, err := outbox.NewEntry(ctx, models.AggregateType, aggregateID, eventType, data)
	if err != nil {
		return err
	}
	return tx.Outbox.Append(ctx, entry)
}
