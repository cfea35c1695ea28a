package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lgu-hrms/internal/domain/audit"
	"lgu-hrms/internal/domain/auth"
	payrolldomain "lgu-hrms/internal/domain/payroll"
	"lgu-hrms/internal/payroll"
	"lgu-hrms/internal/platform/config"
	cryptoutil "lgu-hrms/internal/platform/crypto"
	"lgu-hrms/internal/platform/db"
	"lgu-hrms/internal/platform/jobs"
	"lgu-hrms/internal/platform/metrics"
	"lgu-hrms/internal/transport/http/api"
	payrollhandler "lgu-hrms/internal/transport/http/handlers/payroll"
	"lgu-hrms/internal/transport/http/middleware"
)

const (
	shutdownTimeout = 15 * time.Second
	readyTimeout    = 2 * time.Second
	jobQueueDepth   = 64
)

// Deps are the collaborators the router needs. Tests build them without a database.
type Deps struct {
	Config      config.Config
	Pool        *pgxpool.Pool
	Payroll     payrollhandler.PayrollService
	Perms       middleware.PermissionStore
	Audit       audit.Recorder
	Jobs        payrollhandler.JobQueue
	Idempotency middleware.IdempotencyStore
	Metrics     *metrics.Collector
}

// Run wires the application and serves until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("payroll engine: %w", err)
	}
	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	enforcer, err := auth.NewDefaultEnforcer()
	if err != nil {
		return fmt.Errorf("rbac policy: %w", err)
	}

	collector := metrics.New()
	service := payrolldomain.NewService(
		payrolldomain.NewStore(pool),
		engine,
		crypto,
		payrolldomain.WithWorkers(cfg.PayrollWorkers),
		payrolldomain.WithPayslipDir(cfg.PayslipDir),
		payrolldomain.WithMetrics(collector),
	)

	jobCtx, stopJobs := context.WithCancel(context.WithoutCancel(ctx))
	queue := jobs.New(jobs.NewPGRunStore(pool), 2, jobQueueDepth)
	queue.Start(jobCtx)

	router := NewRouter(Deps{
		Config:      cfg,
		Pool:        pool,
		Payroll:     service,
		Perms:       enforcer,
		Audit:       audit.New(pool),
		Jobs:        queue,
		Idempotency: middleware.NewIdempotencyStore(pool),
		Metrics:     collector,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("payroll server listening",
			"addr", cfg.Addr,
			"env", cfg.Environment,
			"ruleSet", engine.RuleSet(),
			"taxTable", engine.TaxTable().Label(),
			"payslipEncryption", crypto.Configured(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stopJobs()
		queue.Wait()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stopJobs()
	queue.Wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server exited gracefully")
	return nil
}

func buildEngine(cfg config.Config) (*payroll.Engine, error) {
	if cfg.TaxTablePath == "" && cfg.RulesPath == "" {
		return payroll.NewDefault()
	}
	rules, err := payroll.DefaultRuleSet()
	if cfg.RulesPath != "" {
		rules, err = payroll.LoadRuleSet(cfg.RulesPath)
	}
	if err != nil {
		return nil, err
	}
	table, err := payroll.DefaultTaxTable()
	if cfg.TaxTablePath != "" {
		table, err = payroll.LoadTaxTable(cfg.TaxTablePath)
	}
	if err != nil {
		return nil, err
	}
	return payroll.New(rules, table)
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.New()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Pool == nil {
			api.Fail(w, http.StatusServiceUnavailable, "not_ready", "database not configured", middleware.GetRequestID(r.Context()))
			return
		}
		if err := db.Ping(r.Context(), deps.Pool, readyTimeout); err != nil {
			api.Fail(w, http.StatusServiceUnavailable, "not_ready", "database not ready", middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, map[string]string{"status": "ready"}, middleware.GetRequestID(r.Context()))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		payrollhandler.NewHandler(deps.Payroll, deps.Perms, deps.Audit, deps.Jobs, deps.Idempotency).RegisterRoutes(r)
	})

	return router
}
