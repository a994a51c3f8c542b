package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/infra/config"
	"github.com/odysseycup/admin-gate/internal/transport/http/credential"
	"github.com/odysseycup/admin-gate/internal/transport/http/handlers"
	"github.com/odysseycup/admin-gate/internal/transport/http/middleware"
	"github.com/odysseycup/admin-gate/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Sessions *usecase.SessionService
	News     *usecase.NewsService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Carrier     *credential.Carrier
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
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if origins := deps.Config.App.AllowedOrigins; len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authorized := domain.NewAllowList(deps.Config.Auth.AuthorizedIdentities)
	gate := middleware.NewSessionGate(deps.Services.Sessions, authorized, deps.Carrier, deps.Logger)

	authGroup := r.Group("/auth")
	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Sessions, deps.Carrier, deps.Logger)
	issueLimits := buildRateLimit(deps, "auth_code_ip", deps.Config.RateLimit.IssueMaxAttempts)
	verifyLimits := buildRateLimit(deps, "auth_verify_ip", deps.Config.RateLimit.VerifyMaxAttempts)
	authHandler.RegisterRoutes(authGroup, issueLimits, verifyLimits)

	r.GET("/login", gate.RedirectAuthenticated(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(gate.Require())

	handlers.NewWhoAmIHandler().RegisterRoutes(adminGroup)
	handlers.NewNewsHandler(deps.Services.News, deps.Logger).RegisterRoutes(adminGroup)

	return r
}

func buildRateLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
