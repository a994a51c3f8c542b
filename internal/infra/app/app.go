package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/infra/config"
	"github.com/odysseycup/admin-gate/internal/infra/database"
	kafkainfra "github.com/odysseycup/admin-gate/internal/infra/kafka"
	"github.com/odysseycup/admin-gate/internal/infra/logger"
	"github.com/odysseycup/admin-gate/internal/infra/mail"
	redisinfra "github.com/odysseycup/admin-gate/internal/infra/redis"
	postgresrepo "github.com/odysseycup/admin-gate/internal/repository/postgres"
	redisrepo "github.com/odysseycup/admin-gate/internal/repository/redis"
	"github.com/odysseycup/admin-gate/internal/transport/http/credential"
	"github.com/odysseycup/admin-gate/internal/transport/http/middleware"
	"github.com/odysseycup/admin-gate/internal/transport/http/routes"
	"github.com/odysseycup/admin-gate/internal/usecase"
)

// Application owns the wired service graph and its lifecycle.
type Application struct {
	cfg          *config.AppConfig
	engine       *gin.Engine
	logger       *zap.Logger
	pool         *pgxpool.Pool
	redis        *redisinfra.Client
	producer     *kafkainfra.Producer
	mailConsumer *kafkainfra.MailConsumer
}

// New builds the application from configuration: storage, queue, services,
// and the HTTP surface.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	otpRepo := redisrepo.NewOTPRepository(redisClient.Client(), cfg.Redis.OTPPrefix)

	var (
		dispatcher   port.MailDispatcher
		producer     *kafkainfra.Producer
		mailConsumer *kafkainfra.MailConsumer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub dispatcher", zap.Error(err))
			dispatcher = kafkainfra.NewStubDispatcher(log)
		} else {
			dispatcher = kafkainfra.NewMailDispatcher(producer, log)
			mailConsumer, err = kafkainfra.NewMailConsumer(
				cfg.Kafka.Brokers,
				cfg.Kafka.ConsumerGroup,
				kafkainfra.MailTopic(cfg.Kafka.TopicPrefix),
				mail.NewLoggingSender(log),
				log,
			)
			if err != nil {
				log.Warn("failed to init kafka mail consumer", zap.Error(err))
				mailConsumer = nil
			}
			log.Info("kafka mail queue initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub dispatcher")
		dispatcher = kafkainfra.NewStubDispatcher(log)
	}

	sessionService, err := usecase.NewSessionService(repos.Sessions, cfg.Auth.SessionIdleTTL, cfg.Auth.SessionAbsoluteCap, log)
	if err != nil {
		closeAll(pool, redisClient, producer, mailConsumer)
		return nil, fmt.Errorf("init session service: %w", err)
	}
	sessionService.WithStoreTimeout(cfg.Auth.StoreTimeout)

	authService, err := usecase.NewAuthService(
		otpRepo,
		sessionService,
		dispatcher,
		domain.NewAllowList(cfg.Auth.EligibleIdentities),
		cfg.Auth.CodeTTL,
		cfg.Auth.CodeCooldown,
		cfg.Auth.MaxAttempts,
		log,
	)
	if err != nil {
		closeAll(pool, redisClient, producer, mailConsumer)
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	authService.WithStoreTimeout(cfg.Auth.StoreTimeout)

	newsService, err := usecase.NewNewsService(repos.News, log)
	if err != nil {
		closeAll(pool, redisClient, producer, mailConsumer)
		return nil, fmt.Errorf("init news service: %w", err)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "gate:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	// The credential never travels over plain HTTP in production, whatever
	// the flag says.
	cookieSecure := cfg.Cookie.Secure || cfg.App.Env == "production"
	carrier := credential.New(cfg.Cookie.Name, cfg.Cookie.Domain, cookieSecure, sessionService.IdleTTL())

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Carrier:     carrier,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Sessions: sessionService,
			News:     newsService,
		},
	})

	return &Application{
		cfg:          cfg,
		engine:       engine,
		logger:       log,
		pool:         pool,
		redis:        redisClient,
		producer:     producer,
		mailConsumer: mailConsumer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	if a.mailConsumer != nil {
		go func() {
			if err := a.mailConsumer.Run(ctx); err != nil {
				a.logger.Error("mail consumer stopped", zap.Error(err))
			}
		}()
		defer func() {
			_ = a.mailConsumer.Close()
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting admin gate API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func closeAll(pool *pgxpool.Pool, redisClient *redisinfra.Client, producer *kafkainfra.Producer, consumer *kafkainfra.MailConsumer) {
	if consumer != nil {
		_ = consumer.Close()
	}
	if producer != nil {
		_ = producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		pool.Close()
	}
}
