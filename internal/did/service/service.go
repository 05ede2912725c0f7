package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"pixellocker/internal/did/models"
	"pixellocker/internal/did/store"
	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/platform/outbox"
	"pixellocker/pkg/platform/sentinel"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

// Tx is the set of stores a directory mutation writes to.
type Tx struct {
	DIDs   store.Store
	Outbox outbox.Appender
}

// TxRunner provides the transactional boundary for directory mutations.
type TxRunner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context, tx Tx) error) error
}

type Option func(*Service)

// Service is the DID directory: one self-asserted DID per owner. Owners are
// keyed by their canonical address, whatever case the caller used.
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

// Register binds did to owner. An owner registers at most once.
func (s *Service) Register(ctx context.Context, owner domain.Address, did string) (*models.Record, error) {
	owner = owner.Canonical()
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner cannot be the null principal")
	}
	if err := validateDID(did); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	rec := &models.Record{Owner: owner, DID: did, RegisteredAt: now, UpdatedAt: now}
	err := s.tx.RunInTx(ctx, owner.String(), func(ctx context.Context, tx Tx) error {
		if err := tx.DIDs.Create(ctx, rec); err != nil {
			return err
		}
		return appendEvent(ctx, tx, models.EventDIDRegistered, rec)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "owner already has a registered DID")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register DID")
	}

	s.logger.InfoContext(ctx, "did registered",
		"request_id", requestcontext.RequestID(ctx),
		"owner", owner,
	)
	return rec, nil
}

// Update replaces the DID of an existing record. Existence is checked before the new value.
func (s *Service) Update(ctx context.Context, owner domain.Address, did string) (*models.Record, error) {
	owner = owner.Canonical()
	var updated *models.Record
	err := s.tx.RunInTx(ctx, owner.String(), func(ctx context.Context, tx Tx) error {
		rec, err := tx.DIDs.FindByOwner(ctx, owner)
		if err != nil {
			return err
		}
		if err := validateDID(did); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		if err := tx.DIDs.Update(ctx, owner, did, now); err != nil {
			return err
		}
		rec.DID = did
		rec.UpdatedAt = now
		if err := appendEvent(ctx, tx, models.EventDIDUpdated, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "no DID registered for owner")
		case dErrors.CodeOf(err) != dErrors.CodeInternal:
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update DID")
		}
	}

	s.logger.InfoContext(ctx, "did updated",
		"request_id", requestcontext.RequestID(ctx),
		"owner", owner,
	)
	return updated, nil
}

// Lookup returns the owner's record, or nil when none exists.
func (s *Service) Lookup(ctx context.Context, owner domain.Address) (*models.Record, error) {
	rec, err := s.store.FindByOwner(ctx, owner.Canonical())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read DID")
	}
	return rec, nil
}

// Get returns the owner's DID, or "" when none is registered.
func (s *Service) Get(ctx context.Context, owner domain.Address) (string, error) {
	rec, err := s.Lookup(ctx, owner)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.DID, nil
}

// Exists reports whether owner has a record.
func (s *Service) Exists(ctx context.Context, owner domain.Address) (bool, error) {
	rec, err := s.Lookup(ctx, owner)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

func validateDID(did string) error {
	if strings.TrimSpace(did) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "did cannot be empty")
	}
	if len(did) > validation.MaxDIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, "did is too long")
	}
	return nil
}

func appendEvent(ctx context.Context, tx Tx, eventType string, rec *models.Record) error {
	entry, err := outbox.NewEntry(ctx, models.AggregateType, rec.Owner.String(), eventType, models.ChangedEvent{
		Owner: rec.Owner.String(),
		DID:   rec.DID,
		At:    rec.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return tx.Outbox.Append(ctx, entry)
}
