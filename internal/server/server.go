package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/circuitbreaker"
	"github.com/aman-churiwal/rate-limiter/internal/config"
	"github.com/aman-churiwal/rate-limiter/internal/handler"
	"github.com/aman-churiwal/rate-limiter/internal/middleware"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/aman-churiwal/rate-limiter/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dependencies wires the HTTP surface. Only Limiter is required; the admin
// API is mounted when Auth is set, the decision endpoints when Analytics is.
type Dependencies struct {
	Limiter   *ratelimit.Limiter
	Health    handler.HealthReporter
	Breakers  []*circuitbreaker.Breaker
	Auth      *service.AuthService
	Analytics *service.AnalyticsService
	Decisions middleware.DecisionSink
	Logger    *zap.Logger
}

type Server struct {
	router           *gin.Engine
	config           *config.Config
	deps             Dependencies
	logger           *zap.Logger
	systemHandler    *handler.SystemHandler
	analyticsHandler *handler.AnalyticsHandler
	httpServer       *http.Server
}

func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Limiter == nil {
		return nil, errors.New("server requires a rate limiter")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, errors.WithMessage(err, "set trusted proxies")
	}

	s := &Server{
		router:        router,
		config:        cfg,
		deps:          deps,
		logger:        deps.Logger,
		systemHandler: handler.NewSystemHandler(deps.Limiter, deps.Health, cfg.Storage.Type, deps.Breakers...),
	}
	if deps.Analytics != nil {
		s.analyticsHandler = handler.NewAnalyticsHandler(deps.Analytics)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.systemHandler.Health)

	limited := []gin.HandlerFunc{}
	if s.deps.Decisions != nil {
		limited = append(limited, middleware.DecisionRecorder(s.deps.Decisions, s.deps.Limiter))
	}
	limited = append(limited, middleware.RateLimit(s.deps.Limiter, s.logger))

	api := s.router.Group("/api", limited...)
	{
		api.GET("/ping", s.systemHandler.Ping)
		api.POST("/ping", s.systemHandler.Ping)
	}

	if s.deps.Auth == nil {
		s.logger.Warn("auth.jwt_secret not set, admin API disabled")
		return
	}

	admin := s.router.Group("/admin", middleware.RequireAuth(s.deps.Auth))
	{
		admin.GET("/status", s.systemHandler.Status)
		admin.GET("/circuit-breakers", s.systemHandler.CircuitBreakerStatus)
		admin.POST("/circuit-breakers/:name/reset", s.systemHandler.ResetCircuitBreaker)

		if s.analyticsHandler != nil {
			admin.GET("/decisions", s.analyticsHandler.GetDecisions)
			admin.GET("/decisions/summary", s.analyticsHandler.GetSummary)
			admin.GET("/decisions/timeseries", s.analyticsHandler.GetTimeSeries)
		}
	}
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting rate limiter",
		zap.String("addr", addr),
		zap.String("environment", s.config.Server.Environment),
		zap.String("algorithm", string(s.deps.Limiter.Algorithm())),
		zap.String("identity", string(s.deps.Limiter.Type())),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
