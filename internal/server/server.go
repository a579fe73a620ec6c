// Package server sets up the dev business-model HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/cache"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/config"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/health"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/metrics"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/planapi"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/ratelimit"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/realtime"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/security"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	plans        planapi.Store
	realtimeHub  *realtime.Hub
	health       *health.Registry
	rateLimiter  *ratelimit.Limiter
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	drainDelay   time.Duration
	caches       map[string]cache.Cache

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPlanStore replaces the in-memory plan store
func WithPlanStore(store planapi.Store) Option {
	return func(s *Server) {
		s.plans = store
	}
}

// WithCacheCheck reports the reachability of a cache shared with plan
// store clients on /health.
func WithCacheCheck(name string, c cache.Cache) Option {
	return func(s *Server) {
		if s.caches == nil {
			s.caches = make(map[string]cache.Cache)
		}
		s.caches[name] = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		drainDelay: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	spelling, err := planapi.ParseSpelling(cfg.Spelling)
	if err != nil {
		return nil, err
	}

	if s.plans == nil {
		s.plans = planapi.NewMemoryStore()
		if cfg.TenantID != "" {
			if err := s.seed(context.Background()); err != nil {
				return nil, err
			}
		}
	}

	s.realtimeHub = realtime.NewHub(s.logger)
	s.health = health.NewRegistry()
	s.health.Register("plan_store", s.planStoreCheck)
	for name, c := range s.caches {
		s.health.Register(name, health.CacheChecker(name, c))
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes(planapi.NewHandler(s.plans,
		planapi.WithSpelling(spelling),
		planapi.WithBroadcaster(s.realtimeHub),
		planapi.WithLogger(s.logger),
	))

	s.healthy.Store(true)
	s.logger.Info("server initialized", "spelling", spelling, "seeded_tenant", cfg.TenantID)
	return s, nil
}

// seed loads the demo catalogue into both environments of the configured tenant.
func (s *Server) seed(ctx context.Context) error {
	for _, live := range []bool{true, false} {
		scope := tenant.Context{TenantID: s.cfg.TenantID, IsLive: live}
		if err := planapi.Seed(ctx, s.plans, scope, planapi.DemoPlans()...); err != nil {
			return fmt.Errorf("seed %s: %w", scope.Key(), err)
		}
	}
	return nil
}

func (s *Server) planStoreCheck(ctx context.Context) health.Status {
	probe := tenant.Context{TenantID: "health-probe"}
	if _, err := s.plans.List(ctx, probe, businessmodel.Filters{}); err != nil {
		return health.Status{Healthy: false, Detail: err.Error()}
	}
	return health.Status{Healthy: true}
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins in development - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (the plan store client always sends one)
		requestID := c.GetHeader(businessmodel.HeaderRequestID)
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header(businessmodel.HeaderRequestID, requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context()).With(
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"tenant_id", c.GetHeader(businessmodel.HeaderTenantID),
		)

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed", "client_ip", c.ClientIP())
		case status >= 400:
			logger.Warn("request completed")
		default:
			logger.Info("request completed")
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes(plans *planapi.Handler) {
	// Health & metrics endpoints
	s.router.GET("/health", s.health.Handler())
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// environment_changed / plan_changed push channel
	s.router.GET("/ws", gin.WrapF(s.realtimeHub.HandleWebSocket))

	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	api := s.router.Group(businessmodel.BasePath, s.rateLimiter.Middleware())
	plans.RegisterRoutes(api)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "realtime": s.realtimeHub.Stats()})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		cancel()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (realtime hub)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
