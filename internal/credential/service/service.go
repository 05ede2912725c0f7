package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pixellocker/internal/credential/metrics"
	"pixellocker/internal/credential/models"
	"pixellocker/internal/credential/store"
	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/platform/outbox"
	"pixellocker/pkg/platform/sentinel"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

// Tx is the set of stores a ledger mutation writes to. Both are bound to the
// same transaction, so a mutation and its event commit together.
type Tx struct {
	Credentials store.Store
	Outbox      outbox.Appender
}

// TxRunner provides the transactional boundary for ledger mutations.
// key scopes isolation for runners that shard by key.
type TxRunner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context, tx Tx) error) error
}

// RoleChecker answers whether a principal may issue credentials.
type RoleChecker interface {
	CanIssue(ctx context.Context, principal domain.Address) (bool, error)
}

// CommitHook observes a credential after an issue or revoke has committed.
type CommitHook func(ctx context.Context, cred *models.Credential)

type Option func(*Service)

// Service is the credential ledger: issuance, one-way revocation and lookups.
type Service struct {
	store   store.Store
	tx      TxRunner
	roles   RoleChecker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hooks   []CommitHook
}

// New creates a ledger service. reads go through st; mutations through tx.
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIssuerRoleGate restricts issuance to principals the checker accepts.
func WithIssuerRoleGate(checker RoleChecker) Option {
	return func(s *Service) {
		s.roles = checker
	}
}

// WithCommitHook runs fn after every committed issue or revoke, in
// registration order. Hooks cannot fail the mutation.
func WithCommitHook(fn CommitHook) Option {
	return func(s *Service) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

// Issue records a new credential attributed to caller.
func (s *Service) Issue(ctx context.Context, caller domain.Address, cmd models.IssueCommand) (*models.Credential, error) {
	start := time.Now()
	caller = caller.Canonical()
	cmd.Issuer = caller
	cmd.Subject = cmd.Subject.Canonical()
	if err := s.validateIssue(cmd); err != nil {
		s.observe("issue", "invalid", start)
		return nil, err
	}
	if err := s.requireIssuer(ctx, caller); err != nil {
		s.observe("issue", "forbidden", start)
		return nil, err
	}

	rec := &models.Credential{
		ID:             cmd.ID,
		Issuer:         caller,
		Subject:        cmd.Subject,
		PayloadPointer: cmd.PayloadPointer,
		IssuedAt:       requestcontext.Now(ctx),
	}
	err := s.tx.RunInTx(ctx, rec.ID, func(ctx context.Context, tx Tx) error {
		if err := tx.Credentials.Create(ctx, rec); err != nil {
			return err
		}
		entry, err := outbox.NewEntry(ctx, models.AggregateType, rec.ID, models.EventCredentialIssued, models.IssuedEvent{
			ID:             rec.ID,
			Issuer:         rec.Issuer.String(),
			Subject:        rec.Subject.String(),
			PayloadPointer: rec.PayloadPointer,
			IssuedAt:       rec.IssuedAt,
			Height:         rec.IssuedHeight,
		})
		if err != nil {
			return err
		}
		return tx.Outbox.Append(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			s.observe("issue", "conflict", start)
			return nil, dErrors.New(dErrors.CodeConflict, "credential id already exists")
		}
		s.observe("issue", "error", start)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue credential")
	}

	s.observe("issue", "success", start)
	s.setHeight(rec.IssuedHeight)
	s.afterCommit(ctx, rec)
	s.logger.InfoContext(ctx, "credential issued",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", rec.ID,
		"issuer", rec.Issuer,
		"subject", rec.Subject,
		"height", rec.IssuedHeight,
	)
	return rec, nil
}

// Revoke permanently revokes a credential. Only its issuer may revoke it.
func (s *Service) Revoke(ctx context.Context, caller domain.Address, id string) (*models.Credential, error) {
	start := time.Now()
	caller = caller.Canonical()
	if caller.IsNil() {
		s.observe("revoke", "forbidden", start)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller principal required")
	}

	var revoked *models.Credential
	err := s.tx.RunInTx(ctx, id, func(ctx context.Context, tx Tx) error {
		rec, err := tx.Credentials.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !rec.Issuer.Equal(caller) {
			return dErrors.New(dErrors.CodeForbidden, "only the issuer can revoke this credential")
		}
		if rec.IsRevoked {
			return sentinel.ErrInvalidState
		}

		revokedAt := requestcontext.Now(ctx)
		height, err := tx.Credentials.MarkRevoked(ctx, id, revokedAt)
		if err != nil {
			return err
		}
		rec.IsRevoked = true
		rec.RevokedAt = revokedAt
		rec.RevokedHeight = height

		entry, err := outbox.NewEntry(ctx, models.AggregateType, rec.ID, models.EventCredentialRevoked, models.RevokedEvent{
			ID:        rec.ID,
			Issuer:    rec.Issuer.String(),
			RevokedAt: revokedAt,
			Height:    height,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox.Append(ctx, entry); err != nil {
			return err
		}
		revoked = rec
		return nil
	})
	if err != nil {
		err = translateRevokeErr(err)
		s.observe("revoke", string(dErrors.CodeOf(err)), start)
		return nil, err
	}

	s.observe("revoke", "success", start)
	s.setHeight(revoked.RevokedHeight)
	s.afterCommit(ctx, revoked)
	s.logger.InfoContext(ctx, "credential revoked",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", revoked.ID,
		"issuer", revoked.Issuer,
		"height", revoked.RevokedHeight,
	)
	return revoked, nil
}

// Verify reports whether id exists on the ledger and is not revoked.
// Unknown ids are not an error.
func (s *Service) Verify(ctx context.Context, id string) (bool, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.statusLookup("not_found")
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	if rec.IsRevoked {
		s.statusLookup("revoked")
	} else {
		s.statusLookup("active")
	}
	return rec.IsActive(), nil
}

// Get returns the full ledger record for id.
func (s *Service) Get(ctx context.Context, id string) (*models.Credential, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return rec, nil
}

// FindByPayloadPointer returns the most recently issued credential pointing at pointer.
func (s *Service) FindByPayloadPointer(ctx context.Context, pointer string) (*models.Credential, error) {
	rec, err := s.store.FindLatestByPayloadPointer(ctx, pointer)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return rec, nil
}

// ByIssuer lists credential ids issued by issuer in issuance order.
func (s *Service) ByIssuer(ctx context.Context, issuer domain.Address) ([]string, error) {
	ids, err := s.store.ListIDsByIssuer(ctx, issuer.Canonical())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials by issuer")
	}
	return ids, nil
}

// BySubject lists credential ids held by subject in issuance order.
func (s *Service) BySubject(ctx context.Context, subject domain.Address) ([]string, error) {
	ids, err := s.store.ListIDsBySubject(ctx, subject.Canonical())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials by subject")
	}
	return ids, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count credentials")
	}
	return n, nil
}

func (s *Service) Height(ctx context.Context) (uint64, error) {
	h, err := s.store.Height(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger height")
	}
	return h, nil
}

// Stats returns height and count together for the ledger summary endpoint.
func (s *Service) Stats(ctx context.Context) (*models.LedgerStats, error) {
	height, err := s.Height(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &models.LedgerStats{Height: height, Count: count}, nil
}

func (s *Service) validateIssue(cmd models.IssueCommand) error {
	if cmd.Issuer.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller principal required")
	}
	if cmd.PayloadPointer == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "payload pointer is required")
	}
	if len(cmd.PayloadPointer) > validation.MaxPayloadPointerLength {
		return dErrors.New(dErrors.CodeInvalidInput, "payload pointer is too long")
	}
	if cmd.Subject.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject cannot be the null principal")
	}
	if cmd.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential id is required")
	}
	if len(cmd.ID) > validation.MaxCredentialIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, "credential id is too long")
	}
	return nil
}

func (s *Service) requireIssuer(ctx context.Context, caller domain.Address) error {
	if s.roles == nil {
		return nil
	}
	ok, err := s.roles.CanIssue(ctx, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer role")
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "caller is not an authorized issuer")
	}
	return nil
}

func translateRevokeErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeAlreadyRevoked, "credential has already been revoked")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke credential")
	}
}

func (s *Service) observe(operation, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(operation, outcome, time.Since(start).Seconds())
	}
}

func (s *Service) afterCommit(ctx context.Context, cred *models.Credential) {
	for _, hook := range s.hooks {
		hook(ctx, cred)
	}
}

func (s *Service) setHeight(height uint64) {
	if s.metrics != nil {
		s.metrics.SetLastMutationHeight(height)
	}
}

func (s *Service) statusLookup(result string) {
	if s.metrics != nil {
		s.metrics.IncrementStatusLookup(result)
	}
}
