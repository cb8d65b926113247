package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/handlers"
	"github.com/upb/governance-gateway/internal/observability"
	"github.com/upb/governance-gateway/middleware"
	"github.com/upb/governance-gateway/repositories"
	"github.com/upb/governance-gateway/repositories/postgres"
	"github.com/upb/governance-gateway/services/audit"
	"github.com/upb/governance-gateway/services/auth"
	"github.com/upb/governance-gateway/services/decision"
	"github.com/upb/governance-gateway/services/policy"
	"github.com/upb/governance-gateway/services/quota"
)

// Dependencies holds all application dependencies.
// Everything the HTTP layer needs is constructed and connected here.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Customers   repositories.CustomerRepository
	Credentials repositories.CredentialRepository
	Policies    repositories.PolicyRepository
	AuditLogs   repositories.AuditRepository
	TxManager   repositories.TransactionManager

	// Pipeline services
	Metrics      observability.Metrics
	Verifier     *auth.Verifier
	QuotaStore   quota.Store
	Limiter      *quota.Limiter
	PolicyCache  *policy.PolicyCache
	Evaluator    *policy.Evaluator
	AuditEmitter *audit.Emitter
	Engine       *decision.Engine

	// HTTP layer
	CredentialMiddleware *middleware.CredentialMiddleware
	RequestLogger        observability.Logger
	CheckHandler         *handlers.CheckHandler
	HealthHandler        *handlers.HealthHandler
	DebugHandler         *handlers.DebugHandler

	cacheStopCh chan struct{}
	quotaCancel context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.initRepositories()
	if err := deps.initServices(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := deps.initAudit(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit emitter: %w", err)
	}
	deps.initHTTP()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Initialize audit schema when using separate audit DB
	if err := factory.InitAuditSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Customers = repos.Customers
	d.Credentials = repos.Credentials
	d.Policies = repos.Policies
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices wires the decision pipeline stages
func (d *Dependencies) initServices(ctx context.Context, cfg *config.Config) error {
	d.Metrics = observability.NewMetrics()

	d.Verifier = auth.NewVerifier(d.Credentials, cfg.Auth, d.Logger)

	if err := d.initQuotaStore(ctx, cfg); err != nil {
		return err
	}
	d.Limiter = quota.NewLimiter(d.QuotaStore, cfg.Quota, d.Logger)

	d.PolicyCache = policy.NewPolicyCache(1024, 30*time.Second)
	d.cacheStopCh = make(chan struct{})
	go d.PolicyCache.StartCleanupWorker(time.Minute, d.cacheStopCh)
	d.Evaluator = policy.NewEvaluator(d.Policies, d.Customers, d.PolicyCache, d.Logger)

	d.Logger.Info("pipeline services initialized",
		zap.String("quota_backend", cfg.Quota.Backend))
	return nil
}

// initQuotaStore selects the quota backend. The in-memory bucket map is the
// default; the postgres store shares one pool across gateway instances.
func (d *Dependencies) initQuotaStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Quota.Backend == "postgres" {
		store := quota.NewPostgresStore(d.DB.DB, d.Logger)
		if err := store.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize quota schema: %w", err)
		}
		workerCtx, cancel := context.WithCancel(context.Background())
		d.quotaCancel = cancel
		go store.StartCleanupWorker(workerCtx, cfg.Quota.CleanupInterval, cfg.Quota.IdleTTL)
		d.QuotaStore = store
		return nil
	}

	store := quota.NewMemoryStore(d.Logger)
	store.StartCleanupWorker(cfg.Quota.CleanupInterval, cfg.Quota.IdleTTL)
	d.QuotaStore = store
	return nil
}

// initAudit starts the async audit emitter and assembles the engine
func (d *Dependencies) initAudit(cfg *config.Config) error {
	d.AuditEmitter = audit.NewEmitter(d.AuditLogs, d.TxManager, d.Metrics, d.Logger, cfg.Audit)
	if err := d.AuditEmitter.Start(); err != nil {
		return err
	}

	d.Engine = decision.NewEngine(d.Verifier, d.Limiter, d.Evaluator, d.AuditEmitter, d.Metrics, d.Logger)
	return nil
}

// initHTTP wires middleware and handlers
func (d *Dependencies) initHTTP() {
	d.RequestLogger = observability.NewLogger(d.Logger)
	d.CredentialMiddleware = middleware.NewCredentialMiddleware(d.Verifier, d.Logger)
	d.CheckHandler = handlers.NewCheckHandler(d.Engine, d.Verifier, d.Limiter, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger)
	d.DebugHandler = handlers.NewDebugHandler(d.AuditEmitter, d.Metrics, d.Logger)
}

// Close gracefully shuts down all dependencies. The HTTP server must stop
// accepting requests before this runs so no producer races the emitter drain.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditEmitter != nil {
		if err := d.AuditEmitter.Stop(d.Config.Audit.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit emitter: %w", err))
		}
	}

	if store, ok := d.QuotaStore.(*quota.MemoryStore); ok {
		store.Stop()
	}
	if d.quotaCancel != nil {
		d.quotaCancel()
	}
	if d.cacheStopCh != nil {
		close(d.cacheStopCh)
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
