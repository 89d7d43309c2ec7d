package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paylesscars/internal/events"
	apphttp "paylesscars/internal/http"
	"paylesscars/internal/http/router"
	"paylesscars/internal/negotiation"
	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/internal/negotiation/repository"
	"paylesscars/internal/notification"
	"paylesscars/internal/scheduler"
	"paylesscars/platform/config"
	"paylesscars/platform/db"
	"paylesscars/platform/logger"
	"paylesscars/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "storage", cfg.Storage)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defaultCurrency, err := domain.ParseCurrency(cfg.GetDefaultCurrency())
	if err != nil {
		panic("invalid DEFAULT_CURRENCY: " + err.Error())
	}
	domain.DefaultCurrency = defaultCurrency

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	repo, health, closeRepo := initRepository(ctx, cfg, log)
	defer closeRepo()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	expiryScheduler, closeScheduler := initExpiryScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	negotiationModule := negotiation.NewModule(repo, eventBus, expiryScheduler, cfg.GetNegotiationTTL(), val, log)

	notificationModule := notification.New(log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			negotiationModule,
			notificationModule,
		},
	}

	app.SubscribeModules()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.CloseModules()
		err := srv.Shutdown(shutdownCtx)
		eventBus.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// initRepository picks the negotiation storage. The memory backend exists
// for local runs and demos; it loses everything on restart.
func initRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.Repository, apphttp.HealthChecker, func()) {
	if cfg.UsesMemoryStorage() {
		log.Warn("NEGOTIATION_STORAGE=memory; negotiations are not persisted")
		return repository.NewMemory(), apphttp.HealthFunc(func(context.Context) error { return nil }), func() {}
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, repository.MigrationsFS(), log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	return repository.New(pool), pool, pool.Close
}

func initExpiryScheduler(cfg config.SchedulerConfig, log *logger.Logger) (ports.ExpiryScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; negotiations expire on read and by the scheduler sweep only")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize expiry scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
