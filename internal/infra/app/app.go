package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/database"
	kafkainfra "github.com/ulut0002/base-backend/internal/infra/kafka"
	"github.com/ulut0002/base-backend/internal/infra/mail"
	redisinfra "github.com/ulut0002/base-backend/internal/infra/redis"
	"github.com/ulut0002/base-backend/internal/infra/security"
	"github.com/ulut0002/base-backend/internal/infra/telemetry"
	postgresrepo "github.com/ulut0002/base-backend/internal/repository/postgres"
	redisrepo "github.com/ulut0002/base-backend/internal/repository/redis"
	"github.com/ulut0002/base-backend/internal/transport/http/middleware"
	"github.com/ulut0002/base-backend/internal/transport/http/routes"
	"github.com/ulut0002/base-backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	tracer  *telemetry.TracerProvider
	sweeper *usecase.Sweeper
	closers []func() error
}

// New wires the service. log is owned by the caller until Run returns.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Application, error) {
	if log == nil {
		log = zap.NewNop()
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		a.tracer = tp
	}

	if cfg.Postgres.MigrateOnStart {
		if err := migrate(ctx, cfg.Postgres, log); err != nil {
			return err
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	repos := postgresrepo.NewRepositories(pool, cfg.Store.Timeout)

	var rateLimiter *middleware.RateLimiter
	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.redis = client

		store := redisrepo.NewRateLimitRepository(client.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       rateLimitTTL(cfg.RateLimit),
		})
		rateLimiter = middleware.NewRateLimiter(store, log)
	} else {
		log.Info("redis disabled, per-IP rate limits are off")
	}

	events := a.eventPublisher()

	mailer, closeMail, err := mail.New(cfg.Mail, log)
	if err != nil {
		return fmt.Errorf("init mail: %w", err)
	}
	a.closers = append(a.closers, closeMail)

	hasher, err := security.NewHasher(security.HasherConfig{
		Algorithm:  cfg.Auth.Hashing.Algorithm,
		BcryptCost: cfg.Auth.Hashing.BcryptCost,
		Argon2: security.Argon2Config{
			Memory:      cfg.Auth.Hashing.Argon2.Memory,
			Iterations:  cfg.Auth.Hashing.Argon2.Iterations,
			Parallelism: cfg.Auth.Hashing.Argon2.Parallelism,
			SaltLength:  cfg.Auth.Hashing.Argon2.SaltLength,
			KeyLength:   cfg.Auth.Hashing.Argon2.KeyLength,
		},
	})
	if err != nil {
		return fmt.Errorf("init hasher: %w", err)
	}

	var sessions port.SessionIssuer
	issuer, err := security.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	switch {
	case errors.Is(err, security.ErrSecretMissing):
		log.Error("session secret is not configured, sign-in is disabled")
	case err != nil:
		return fmt.Errorf("init session issuer: %w", err)
	default:
		sessions = issuer
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recoveryMetrics, err := telemetry.NewRecoveryMetrics(registry)
	if err != nil {
		return fmt.Errorf("init recovery metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	auth := usecase.NewAuthService(cfg, repos.Users, hasher, sessions, events, log)
	ledger := usecase.NewVerificationCodeLedger(repos.VerificationCodes, cfg.Recovery.CodeLength).
		WithMaxAttempts(cfg.Recovery.MaxAttempts)
	recovery := usecase.NewRecoveryEngine(cfg, auth, repos.Users, ledger, mailer, events, recoveryMetrics, log)
	a.sweeper = usecase.NewSweeper(recovery, cfg.Recovery.SweepInterval, log)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Services:    routes.ServiceSet{Auth: auth, Recovery: recovery},
		Database:    pool,
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)
	return nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	cfg, log := a.cfg, a.logger
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.closers = append(a.closers, producer.Close)
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

func migrate(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) error {
	db, err := database.OpenSQL(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg, database.MigrateUp, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// The store keeps attempts for the longest window in use.
func rateLimitTTL(cfg config.RateLimitSettings) time.Duration {
	ttl := max(cfg.GeneralWindow, cfg.LoginWindow, cfg.WindowDuration)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return ttl * 2
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	a.sweeper.Start(ctx)
	defer a.sweeper.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting credential API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close dependency", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(context.Background())
	}
}
