package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-churiwal/rate-limiter/internal/circuitbreaker"
	"github.com/aman-churiwal/rate-limiter/internal/config"
	"github.com/aman-churiwal/rate-limiter/internal/healthcheck"
	"github.com/aman-churiwal/rate-limiter/internal/logging"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/aman-churiwal/rate-limiter/internal/repository"
	"github.com/aman-churiwal/rate-limiter/internal/server"
	"github.com/aman-churiwal/rate-limiter/internal/service"
	"github.com/aman-churiwal/rate-limiter/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	// Load env if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := healthcheck.NewChecker(cfg.HealthCheck, logger)
	deps := server.Dependencies{Logger: logger, Health: checker}

	var store ratelimit.Store
	switch cfg.Storage.Type {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, limits are per process")
		memory := ratelimit.NewMemoryStore()
		go memory.Run(ctx, cfg.Storage.SweepInterval)
		store = memory
	default:
		redis, err := storage.NewRedis(ctx, cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redis.Close()
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.GetRedisAddr()))

		breaker := circuitbreaker.New("redis", cfg.CircuitBreaker, logger)
		deps.Breakers = append(deps.Breakers, breaker)
		checker.Register("redis", true, redis.Ping)

		store = storage.NewRateLimitStore(redis, logger,
			storage.WithBreaker(breaker),
			storage.WithOperationTimeout(cfg.Redis.OperationTimeout),
		)
	}

	limiter, err := ratelimit.NewLimiter(store, cfg.RateLimit, logger)
	if err != nil {
		logger.Fatal("invalid rate limit configuration", zap.Error(err))
	}
	deps.Limiter = limiter

	if cfg.Auth.JWTSecret != "" {
		deps.Auth, err = service.NewAuthService(cfg.Auth)
		if err != nil {
			logger.Fatal("invalid auth configuration", zap.Error(err))
		}
	}

	// Decisions keep flowing while in-flight requests finish, so the journal
	// stops only after the HTTP server has shut down.
	decisionCtx, stopDecisions := context.WithCancel(context.Background())
	defer stopDecisions()

	decisionsDone := make(chan struct{})
	close(decisionsDone)
	if cfg.DecisionLog.Enabled {
		postgres, err := storage.NewPostgres(cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(); err != nil {
			logger.Fatal("failed to migrate decision log schema", zap.Error(err))
		}
		checker.Register("postgres", false, postgres.Ping)

		repo := repository.NewDecisionLogRepository(postgres)
		analytics := service.NewAnalyticsService(repo)
		decisionLogger := service.NewDecisionLogger(repo, cfg.DecisionLog, logger)
		deps.Analytics = analytics
		deps.Decisions = decisionLogger

		decisionsDone = make(chan struct{})
		go func() {
			defer close(decisionsDone)
			decisionLogger.Run(decisionCtx)
		}()

		go analytics.RunCleanup(ctx, cfg.DecisionLog.RetentionDays, cfg.DecisionLog.CleanupInterval, logger)
	}

	checker.Start(ctx)
	defer checker.Stop()

	srv, err := server.New(cfg, deps)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	go func() {
		if err := srv.Run(":" + cfg.Server.Port); err != nil {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdown(shutdownCtx, srv, stopDecisions, decisionsDone, logger)

	logger.Info("server exited")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Stops the HTTP server, then the decision journal, and waits for the
// journal to flush or ctx to expire.
func shutdown(ctx context.Context, srv shutdowner, stopDecisions context.CancelFunc, decisionsDone <-chan struct{}, logger *zap.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	stopDecisions()

	select {
	case <-decisionsDone:
	case <-ctx.Done():
		logger.Warn("decision log flush timed out")
	}
}
