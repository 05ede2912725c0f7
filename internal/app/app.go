// Package app is the composition root: it turns a config.Server into running
// services, their HTTP surface and the background outbox worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	credentialhandler "pixellocker/internal/credential/handler"
	credentialmetrics "pixellocker/internal/credential/metrics"
	credentialmodels "pixellocker/internal/credential/models"
	credentialservice "pixellocker/internal/credential/service"
	credentialstore "pixellocker/internal/credential/store"
	didhandler "pixellocker/internal/did/handler"
	didservice "pixellocker/internal/did/service"
	didstore "pixellocker/internal/did/store"
	jwttoken "pixellocker/internal/jwt_token"
	"pixellocker/internal/platform/config"
	"pixellocker/internal/platform/database"
	"pixellocker/internal/platform/health"
	"pixellocker/internal/platform/kafka/producer"
	platformmetrics "pixellocker/internal/platform/metrics"
	redisclient "pixellocker/internal/platform/redis"
	rolehandler "pixellocker/internal/role/handler"
	roleservice "pixellocker/internal/role/service"
	rolestore "pixellocker/internal/role/store"
	httptransport "pixellocker/internal/transport/http"
	"pixellocker/internal/verification/cache"
	verificationhandler "pixellocker/internal/verification/handler"
	verificationmetrics "pixellocker/internal/verification/metrics"
	verificationservice "pixellocker/internal/verification/service"
	"pixellocker/internal/verification/tracer"
	"pixellocker/pkg/platform/middleware/request"
	"pixellocker/pkg/platform/outbox"
	outboxmetrics "pixellocker/pkg/platform/outbox/metrics"
	"pixellocker/pkg/platform/outbox/worker"
	platformsync "pixellocker/pkg/platform/sync"
)

const statsInterval = 15 * time.Second

type collectors struct {
	credential   *credentialmetrics.Metrics
	verification *verificationmetrics.Metrics
	outbox       *outboxmetrics.Metrics
	request      *request.Metrics
	platform     *platformmetrics.Metrics
}

// newCollectors registers every collector on reg. Metric names must be unique
// across packages or registration panics.
func newCollectors(reg prometheus.Registerer) *collectors {
	return &collectors{
		credential:   credentialmetrics.NewWithRegisterer(reg),
		verification: verificationmetrics.NewWithRegisterer(reg),
		outbox:       outboxmetrics.NewWithRegisterer(reg),
		request:      request.NewMetricsWithRegisterer(reg),
		platform:     platformmetrics.NewWithRegisterer(reg),
	}
}

// sharedCollectors live on the default registry once per process, so
// several App instances (tests) share them.
var sharedCollectors = sync.OnceValue(func() *collectors {
	return newCollectors(prometheus.DefaultRegisterer)
})

// publisher is what the outbox worker needs from a Kafka producer.
type publisher interface {
	worker.Publisher
	Healthy(ctx context.Context) bool
	Close() error
}

// App holds the wired services. Start launches background work; Close
// releases every resource New acquired.
type App struct {
	Router       http.Handler
	DIDs         *didservice.Service
	Credentials  *credentialservice.Service
	Roles        *roleservice.Service
	Verification *verificationservice.Service
	Tokens       *jwttoken.JWTService
	Health       *health.Handler
	Outbox       outbox.Store

	cfg        config.Server
	logger     *slog.Logger
	metrics    *collectors
	pool       *database.Pool
	redis      *redisclient.Client
	localCache *cache.LocalCache
	publisher  publisher
	worker     *worker.Worker

	stopStats context.CancelFunc
	statsDone chan struct{}
}

type ledgerStores struct {
	dids        didstore.Store
	credentials credentialstore.Store
	roles       rolestore.Store
	outbox      outbox.Store
	didTx       didservice.TxRunner
	credTx      credentialservice.TxRunner
	roleTx      roleservice.TxRunner
}

// New wires every component for cfg. SQL drivers are migrated before use.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, metrics: sharedCollectors()}

	stores, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	a.Outbox = stores.outbox
	a.DIDs = didservice.New(stores.dids, stores.didTx, didservice.WithLogger(logger))
	a.Roles = roleservice.New(stores.roles, stores.roleTx, roleservice.WithLogger(logger))
	if err := a.Roles.Bootstrap(ctx, cfg.RoleOwner); err != nil {
		a.closeResources()
		return nil, fmt.Errorf("bootstrap role owner: %w", err)
	}

	credOpts := []credentialservice.Option{
		credentialservice.WithLogger(logger),
		credentialservice.WithMetrics(a.metrics.credential),
		credentialservice.WithCommitHook(a.forgetResolutions),
	}
	if cfg.RequireIssuerRole {
		credOpts = append(credOpts, credentialservice.WithIssuerRoleGate(a.Roles))
	}
	a.Credentials = credentialservice.New(stores.credentials, stores.credTx, credOpts...)

	verifyOpts := []verificationservice.Option{
		verificationservice.WithLogger(logger),
		verificationservice.WithMetrics(a.metrics.verification),
		verificationservice.WithTracer(tracer.NewOTel()),
		verificationservice.WithRequireProof(cfg.RequireProof),
	}
	verdictCache, err := a.openCache(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	if verdictCache != nil {
		verifyOpts = append(verifyOpts, verificationservice.WithCache(verdictCache))
	}
	a.Verification = verificationservice.New(a.Credentials, verifyOpts...)

	a.publisher = a.openPublisher(ctx)
	a.worker = worker.New(stores.outbox, a.publisher,
		worker.WithTopic(cfg.Kafka.Topic),
		worker.WithPollInterval(250*time.Millisecond),
		worker.WithRetention(24*time.Hour),
		worker.WithMetrics(a.metrics.outbox),
		worker.WithLogger(logger),
	)

	a.Tokens = jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	a.Tokens.SetEnv(cfg.Environment)

	a.Health = health.New(cfg.Environment)
	a.Health.SetLedgerHeight(a.Credentials.Height)
	a.registerChecks()

	a.metrics.platform.SetBuildInfo(health.Version, cfg.Environment, cfg.Database.Driver)

	a.Router = httptransport.NewRouter(httptransport.Config{
		Logger:         logger,
		Validator:      jwttoken.NewJWTServiceAdapter(a.Tokens),
		Health:         a.Health,
		RequestMetrics: a.metrics.request,
	},
		didhandler.New(a.DIDs, logger),
		credentialhandler.New(a.Credentials, logger),
		rolehandler.New(a.Roles, logger),
		verificationhandler.New(a.Verification, logger),
	)

	return a, nil
}

// forgetResolutions evicts the verdict cache entries a committed issue or
// revoke made stale.
func (a *App) forgetResolutions(ctx context.Context, cred *credentialmodels.Credential) {
	if a.Verification != nil {
		a.Verification.Forget(ctx, cred)
	}
}

func (a *App) openStores(ctx context.Context) (*ledgerStores, error) {
	timeout := a.cfg.LedgerTxTimeout
	if a.cfg.Database.Driver == config.DriverMemory {
		ob := outbox.NewInMemoryStore()
		dids := didstore.NewInMemoryStore()
		creds := credentialstore.NewInMemoryStore()
		roles := rolestore.NewInMemoryStore()
		return &ledgerStores{
			dids:        dids,
			credentials: creds,
			roles:       roles,
			outbox:      ob,
			didTx:       platformsync.NewShardedTx(didservice.Tx{DIDs: dids, Outbox: ob}, timeout),
			credTx:      platformsync.NewShardedTx(credentialservice.Tx{Credentials: creds, Outbox: ob}, timeout),
			roleTx:      platformsync.NewShardedTx(roleservice.Tx{Roles: roles, Outbox: ob}, timeout),
		}, nil
	}

	pool, err := database.New(database.Config{
		Driver:          a.cfg.Database.Driver,
		URL:             a.cfg.Database.URL,
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.pool = pool

	db, dialect := pool.DB(), pool.Dialect()
	applied, err := database.Migrate(ctx, db, dialect)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if len(applied) > 0 {
		a.logger.InfoContext(ctx, "applied migrations", "versions", applied)
	}

	return &ledgerStores{
		dids:        didstore.NewSQLStore(db, dialect),
		credentials: credentialstore.NewSQLStore(db, dialect),
		roles:       rolestore.NewSQLStore(db, dialect),
		outbox:      outbox.NewSQLStore(db, dialect),
		didTx: database.NewTxRunner(db, timeout, func(tx database.DBTX) didservice.Tx {
			return didservice.Tx{DIDs: didstore.NewSQLStore(tx, dialect), Outbox: outbox.NewSQLStore(tx, dialect)}
		}),
		credTx: database.NewTxRunner(db, timeout, func(tx database.DBTX) credentialservice.Tx {
			return credentialservice.Tx{Credentials: credentialstore.NewSQLStore(tx, dialect), Outbox: outbox.NewSQLStore(tx, dialect)}
		}),
		roleTx: database.NewTxRunner(db, timeout, func(tx database.DBTX) roleservice.Tx {
			return roleservice.Tx{Roles: rolestore.NewSQLStore(tx, dialect), Outbox: outbox.NewSQLStore(tx, dialect)}
		}),
	}, nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	switch a.cfg.VerdictCacheBackend {
	case config.CacheLocal:
		c, err := cache.NewLocalCache(a.cfg.VerdictCacheTTL, 0)
		if err != nil {
			return nil, err
		}
		a.localCache = c
		return c, nil
	case config.CacheRedis:
		client, err := redisclient.New(ctx, a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		return cache.NewRedisCache(client.Client, a.cfg.VerdictCacheTTL, a.logger), nil
	default:
		return nil, nil
	}
}

// openPublisher falls back to the no-op publisher when Kafka is absent or
// unreachable, leaving events in the outbox log.
func (a *App) openPublisher(ctx context.Context) publisher {
	if a.cfg.Kafka.Brokers == "" {
		return producer.NewNoopProducer(a.logger)
	}
	p, err := producer.New(producer.DefaultConfig(a.cfg.Kafka.Brokers), a.logger)
	if err != nil {
		a.logger.WarnContext(ctx, "kafka producer unavailable, events stay in the outbox", "error", err)
		return producer.NewNoopProducer(a.logger)
	}
	if err := p.EnsureTopic(ctx, a.cfg.Kafka.Topic, 3, 1); err != nil {
		a.logger.WarnContext(ctx, "could not ensure ledger events topic", "topic", a.cfg.Kafka.Topic, "error", err)
	}
	return p
}

func (a *App) registerChecks() {
	if a.pool != nil {
		a.Health.RegisterCheck("database", a.pool.Health)
	}
	if a.redis != nil {
		a.Health.RegisterCheck("redis", a.redis.Health)
	}
	if a.cfg.Kafka.Brokers != "" {
		a.Health.RegisterCheck("kafka", func(ctx context.Context) error {
			if !a.publisher.Healthy(ctx) {
				return errors.New("no kafka brokers reachable")
			}
			return nil
		})
	}
}

// Start launches the outbox worker and the periodic pool/height reporter.
func (a *App) Start() {
	a.worker.Start()

	ctx, cancel := context.WithCancel(context.Background())
	a.stopStats = cancel
	a.statsDone = make(chan struct{})
	go a.reportStats(ctx)
}

func (a *App) reportStats(ctx context.Context) {
	defer close(a.statsDone)
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		a.recordStats(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) recordStats(ctx context.Context) {
	if a.pool != nil {
		a.metrics.platform.RecordDBStats(a.pool.Stats())
	}
	if a.redis != nil {
		a.redis.RecordPoolStats()
	}
	if height, err := a.Credentials.Height(ctx); err == nil {
		a.metrics.platform.SetLedgerHeight(height)
	}
	if err := a.worker.UpdateMetrics(ctx); err != nil && ctx.Err() == nil {
		a.logger.WarnContext(ctx, "failed to update outbox metrics", "error", err)
	}
}

// FlushEvents publishes pending outbox entries synchronously.
func (a *App) FlushEvents(ctx context.Context) int {
	return a.worker.PollOnce(ctx)
}

// Close stops background work, then releases connections. ctx bounds the
// outbox drain.
func (a *App) Close(ctx context.Context) error {
	if a.stopStats != nil {
		a.stopStats()
		<-a.statsDone
	}
	var errs []error
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop outbox worker: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.localCache != nil {
		a.localCache.Close()
		a.localCache = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.pool = nil
	}
	return errors.Join(errs...)
}
