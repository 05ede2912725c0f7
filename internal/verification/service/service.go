package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	credentialmodels "pixellocker/internal/credential/models"
	"pixellocker/internal/verification/cache"
	"pixellocker/internal/verification/document"
	"pixellocker/internal/verification/metrics"
	"pixellocker/internal/verification/models"
	"pixellocker/internal/verification/tracer"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/validation"
)

const defaultBatchConcurrency = 16

// lookup kinds, also the first segment of cache keys.
const (
	kindID   = "id"
	kindHash = "hash"
)

// Ledger is the read side of the credential ledger used for status resolution.
// Get and FindByPayloadPointer return a not_found domain error for unknown keys.
type Ledger interface {
	Get(ctx context.Context, id string) (*credentialmodels.Credential, error)
	FindByPayloadPointer(ctx context.Context, pointer string) (*credentialmodels.Credential, error)
	Height(ctx context.Context) (uint64, error)
}

type Option func(*Service)

// Service evaluates verification requests. It never writes to the ledger.
type Service struct {
	ledger           Ledger
	cache            cache.Cache
	tracer           tracer.Tracer
	metrics          *metrics.Metrics
	logger           *slog.Logger
	requireProof     bool
	batchConcurrency int
}

func New(ledger Ledger, opts ...Option) *Service {
	svc := &Service{
		ledger:           ledger,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
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

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithCache enables the resolution cache. A resolution does not depend on the
// evaluation time, so keys are the lookup kind and key alone.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithRequireProof makes documents without a proof member invalid.
func WithRequireProof(require bool) Option {
	return func(s *Service) {
		s.requireProof = require
	}
}

func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// target is what a request resolved to before touching the ledger.
type target struct {
	kind string
	key  string
	doc  *document.Document
}

// Verify evaluates req against the ledger and, when a document is supplied, its expiry.
// Identical requests at the same evaluation time yield identical verdicts.
func (s *Service) Verify(ctx context.Context, req models.Request) (verdict *models.Verdict, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify)
	defer func() {
		if verdict != nil {
			span.SetAttributes(
				tracer.String(tracer.AttrOnChainStatus, string(verdict.OnChainStatus)),
				tracer.String(tracer.AttrExpiryStatus, string(verdict.ExpiryStatus)),
				tracer.Bool(tracer.AttrValid, verdict.Valid),
			)
			s.observeVerdict(verdict, start)
		}
		span.End(err)
	}()

	t, err := s.targetOf(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrKeyKind, t.kind))

	at := req.At
	if at.IsZero() {
		at = requestcontext.Now(ctx)
	}
	at = at.UTC()

	res, err := s.resolution(ctx, span, t, req.MinLedgerHeight)
	if err != nil {
		return nil, err
	}

	verdict = s.evaluate(t, res, at)
	s.logger.DebugContext(ctx, "credential verified",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", verdict.CredentialID,
		"on_chain_status", verdict.OnChainStatus,
		"valid", verdict.Valid,
	)
	return verdict, nil
}

// VerifyBatch verifies up to MaxVerificationBatchSize requests concurrently.
// Verdicts are returned in request order; the first failure fails the batch.
// Requests without an evaluation time share the batch's.
func (s *Service) VerifyBatch(ctx context.Context, reqs []models.Request) ([]*models.Verdict, error) {
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch must contain at least one request")
	}
	if len(reqs) > validation.MaxVerificationBatchSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("batch must contain at most %d requests", validation.MaxVerificationBatchSize))
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanVerifyBatch, tracer.Int64(tracer.AttrBatchSize, int64(len(reqs))))
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))
	if s.metrics != nil {
		s.metrics.ObserveBatch(len(reqs))
	}

	verdicts := make([]*models.Verdict, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			v, err := s.Verify(gctx, req)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("request %d: %s", i, err.Error()))
			}
			verdicts[i] = v
			return nil
		})
	}
	err := g.Wait()
	span.End(err)
	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (s *Service) targetOf(req models.Request) (target, error) {
	hasDocument := len(req.Document) > 0 && strings.TrimSpace(string(req.Document)) != "null"
	hash := strings.TrimSpace(req.Hash)
	id := strings.TrimSpace(req.CredentialID)

	supplied := 0
	for _, present := range []bool{hasDocument, hash != "", id != ""} {
		if present {
			supplied++
		}
	}
	if supplied != 1 {
		return target{}, dErrors.New(dErrors.CodeInvalidInput,
			"exactly one of document, hash or credential_id is required")
	}

	switch {
	case id != "":
		return target{kind: kindID, key: id}, nil
	case hash != "":
		return target{kind: kindHash, key: hash}, nil
	}

	doc, err := document.Parse(req.Document)
	if err != nil {
		return target{}, err
	}
	if doc.ID != "" {
		return target{kind: kindID, key: doc.ID, doc: doc}, nil
	}
	return target{kind: kindHash, key: doc.Hash, doc: doc}, nil
}

// resolution reads through the cache unless the caller demands a minimum ledger height.
func (s *Service) resolution(ctx context.Context, span tracer.Span, t target, minHeight uint64) (*models.Resolution, error) {
	if minHeight > 0 || s.cache == nil {
		if s.cache != nil {
			span.SetAttributes(tracer.Bool(tracer.AttrCacheBypassed, true))
			s.recordCache("bypass")
		}
		res, err := s.resolve(ctx, t)
		if err != nil {
			return nil, err
		}
		if res.Height < minHeight {
			if s.metrics != nil {
				s.metrics.IncrementStaleRead()
			}
			return nil, dErrors.New(dErrors.CodeStaleRead,
				fmt.Sprintf("ledger height %d is behind requested height %d", res.Height, minHeight))
		}
		return res, nil
	}

	res, hit, err := s.cache.GetOrLoad(ctx, cacheKey(t.kind, t.key), func(ctx context.Context) (*models.Resolution, error) {
		return s.resolve(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, hit))
	if hit {
		s.recordCache("hit")
	} else {
		s.recordCache("miss")
	}
	return res, nil
}

// Forget evicts the cached resolutions of cred's id and payload pointer. It is
// registered as a credential commit hook, so an eviction failure is logged and
// the entries expire with their TTL.
func (s *Service) Forget(ctx context.Context, cred *credentialmodels.Credential) {
	if s.cache == nil || cred == nil {
		return
	}
	err := s.cache.Delete(ctx, cacheKey(kindID, cred.ID), cacheKey(kindHash, cred.PayloadPointer))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to evict cached resolutions",
			"credential_id", cred.ID,
			"error", err,
		)
	}
}

func cacheKey(kind, key string) string {
	return kind + ":" + key
}

// resolve reads the height before the record, so the reported height is a
// lower bound of the state the lookup observed.
func (s *Service) resolve(ctx context.Context, t target) (*models.Resolution, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanResolve, tracer.String(tracer.AttrKeyKind, t.kind))
	height, err := s.ledger.Height(ctx)
	if err != nil {
		span.End(err)
		return nil, translate(err, "failed to read ledger height")
	}
	span.SetAttributes(tracer.Int64(tracer.AttrLedgerHeight, int64(height)))

	var cred *credentialmodels.Credential
	if t.kind == kindID {
		cred, err = s.ledger.Get(ctx, t.key)
	} else {
		cred, err = s.ledger.FindByPayloadPointer(ctx, t.key)
	}
	span.End(err)
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return &models.Resolution{Status: models.OnChainNotFound, Height: height}, nil
	case err != nil:
		return nil, translate(err, "failed to resolve credential")
	}

	status := models.OnChainActive
	if cred.IsRevoked {
		status = models.OnChainRevoked
	}
	return &models.Resolution{CredentialID: cred.ID, Status: status, Height: height}, nil
}

func (s *Service) evaluate(t target, res *models.Resolution, at time.Time) *models.Verdict {
	v := &models.Verdict{
		OnChainStatus: res.Status,
		CredentialID:  res.CredentialID,
		CheckedAt:     at,
		LedgerHeight:  res.Height,
		Reasons:       []string{},
		Limitations:   []string{},
	}

	proofMissing := false
	switch {
	case t.doc == nil:
		v.ExpiryStatus = models.ExpiryNone
		v.Limitations = append(v.Limitations, models.LimitationExpiryNotEvaluated)
		if s.requireProof {
			v.Limitations = append(v.Limitations, models.LimitationProofNotEvaluated)
		}
	case t.doc.ExpiresAt == nil:
		v.ExpiryStatus = models.ExpiryNone
	case t.doc.ExpiresAt.After(at):
		v.ExpiryStatus = models.ExpiryNotExpired
	default:
		v.ExpiryStatus = models.ExpiryExpired
	}
	if t.doc != nil && s.requireProof && !t.doc.HasProof {
		proofMissing = true
	}

	if res.Status == models.OnChainNotFound {
		v.Reasons = append(v.Reasons, models.ReasonNotFound)
	}
	if res.Status == models.OnChainRevoked {
		v.Reasons = append(v.Reasons, models.ReasonRevoked)
	}
	if v.ExpiryStatus == models.ExpiryExpired {
		v.Reasons = append(v.Reasons, models.ReasonExpired)
	}
	if proofMissing {
		v.Reasons = append(v.Reasons, models.ReasonProofMissing)
	}
	v.Valid = len(v.Reasons) == 0
	return v
}

func (s *Service) observeVerdict(v *models.Verdict, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveVerdict(string(v.OnChainStatus), v.Valid, time.Since(start).Seconds())
}

func (s *Service) recordCache(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCache(result)
}

func translate(err error, msg string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
