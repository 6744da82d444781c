package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/logger"
	"github.com/ulut0002/base-backend/internal/transport/http/handlers"
	"github.com/ulut0002/base-backend/internal/transport/http/middleware"
	"github.com/ulut0002/base-backend/internal/transport/http/pipeline"
	"github.com/ulut0002/base-backend/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Recovery *usecase.RecoveryEngine
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Enrich(deps.Logger, c.Request.Context()).Error("handler panic", zap.Any("panic", rec))
		pipeline.WriteError(c, "", issue.CodeAPIError, nil)
	}))
	r.Use(middleware.Tracing(middleware.TracingOptions{}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))

	healthOptions := []handlers.HealthOption{handlers.WithHealthLogger(deps.Logger)}
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", metricsHandler(deps.Gatherer))

	cookie := pipeline.Cookie{
		Name:   deps.Config.Session.CookieName,
		Secure: deps.Config.SecureCookie(),
	}
	session := middleware.RequireSession(deps.Services.Auth, cookie.Name)

	api := r.Group("/api/v1")
	api.Use(rateLimit(deps, "api_ip", deps.Config.RateLimit.GeneralMaxAttempts, deps.Config.RateLimit.GeneralWindow, 15*time.Minute)...)
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, cookie)
		loginLimits := rateLimit(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, deps.Config.RateLimit.LoginWindow, deps.Config.RateLimit.WindowDuration)
		authHandler.RegisterRoutes(api.Group("/auth"), session, loginLimits...)

		recoveryHandler := handlers.NewRecoveryHandler(deps.Services.Recovery, deps.Config.App.IsDevelopment())
		recoveryLimits := rateLimit(deps, "recovery_ip", deps.Config.RateLimit.RecoveryMaxAttempts, deps.Config.RateLimit.WindowDuration, time.Minute)
		recoveryHandler.RegisterRoutes(api.Group("/recovery"), session, recoveryLimits...)
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	if gatherer == nil {
		return gin.WrapH(promhttp.Handler())
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// rateLimit builds a per-IP rule; a non-positive limit disables it.
func rateLimit(deps Dependencies, name string, limit int, window, fallback time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = fallback
	}
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
