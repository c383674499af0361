// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
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
	"github.com/redis/go-redis/v9"

	"github.com/mbd888/moodguard/internal/alertgate"
	"github.com/mbd888/moodguard/internal/auth"
	"github.com/mbd888/moodguard/internal/circuitbreaker"
	"github.com/mbd888/moodguard/internal/config"
	"github.com/mbd888/moodguard/internal/counseling"
	"github.com/mbd888/moodguard/internal/diary"
	"github.com/mbd888/moodguard/internal/health"
	"github.com/mbd888/moodguard/internal/idgen"
	"github.com/mbd888/moodguard/internal/logging"
	"github.com/mbd888/moodguard/internal/metrics"
	"github.com/mbd888/moodguard/internal/ratelimit"
	"github.com/mbd888/moodguard/internal/retry"
	"github.com/mbd888/moodguard/internal/risk"
	"github.com/mbd888/moodguard/internal/security"
	"github.com/mbd888/moodguard/internal/storage"
	"github.com/mbd888/moodguard/internal/traces"
	"github.com/mbd888/moodguard/internal/validation"
)

const (
	redisKeyPrefix    = "moodguard"
	poolStatsInterval = 15 * time.Second
	defaultDrainDelay = 5 * time.Second

	// Store circuit breaker for the analysis reads.
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger
	policy  retry.Policy

	db  *sql.DB               // nil if using in-memory
	rdb redis.UniversalClient // nil without REDIS_URL

	diaryStore      diary.Store
	counselingStore counseling.Store
	riskService     *risk.Service
	gate            *alertgate.Gate
	limiter         ratelimit.Limiter
	memLimiter      *ratelimit.Memory
	health          *health.Registry

	router          *gin.Engine
	httpSrv         *http.Server
	shutdownTracing func(context.Context) error
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run
	drainDelay      time.Duration

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

// WithVersion sets the version reported by /health and tracing.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithRetryPolicy overrides the policy used to connect to backing stores.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Server) {
		s.policy = p
	}
}

// WithDiaryStore replaces the diary store (for tests and alternate sources).
func WithDiaryStore(store diary.Store) Option {
	return func(s *Server) {
		s.diaryStore = store
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		version:    "dev",
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		policy:     retry.Startup,
		drainDelay: defaultDrainDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	shutdownTracing, err := traces.Init(ctx, traces.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Version:     s.version,
		Environment: cfg.Env,
		SampleRatio: cfg.OTelSampleRatio,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTracing = shutdownTracing

	if err := s.setupStores(ctx); err != nil {
		return nil, err
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// setupStores picks Postgres/Redis when configured and in-memory stores
// otherwise.
func (s *Server) setupStores(ctx context.Context) error {
	if s.cfg.DatabaseURL != "" {
		db, err := storage.OpenPostgres(ctx, s.cfg.DatabaseURL, s.policy, s.logger)
		if err != nil {
			return err
		}
		s.db = db
	}
	if s.cfg.RedisURL != "" {
		client, err := storage.OpenRedis(ctx, s.cfg.RedisURL, s.policy, s.logger)
		if err != nil {
			s.closeStores()
			return err
		}
		s.rdb = client
	}

	var (
		configs     risk.ConfigStore
		assessments risk.AssessmentStore
		gateStore   alertgate.Store
	)
	if s.db != nil {
		if s.diaryStore == nil {
			s.diaryStore = diary.NewPostgresStore(s.db)
		}
		s.counselingStore = counseling.NewPostgresStore(s.db)
		configs = risk.NewPostgresConfigStore(s.db)
		assessments = risk.NewPostgresAssessmentStore(s.db)
		gateStore = alertgate.NewPostgresStore(s.db, s.cfg.SessionTTL)
	} else {
		s.logger.Warn("DATABASE_URL not set, using in-memory storage (data is lost on restart)")
		if s.diaryStore == nil {
			s.diaryStore = diary.NewMemoryStore()
		}
		s.counselingStore = counseling.NewMemoryStore()
		configs = risk.NewMemoryConfigStore()
		assessments = risk.NewMemoryAssessmentStore()
		gateStore = alertgate.NewMemoryStore(s.cfg.SessionTTL)
	}

	// Redis takes the session gate when available: it expires records natively.
	if s.rdb != nil {
		gateStore = alertgate.NewRedisStore(s.rdb, redisKeyPrefix+":alert", s.cfg.SessionTTL)
	}

	s.gate = alertgate.New(gateStore, s.logger)
	s.riskService = risk.NewService(configs, s.diaryStore, s.counselingStore, assessments, s.logger).
		WithBreaker(circuitbreaker.New(breakerThreshold, breakerCooldown))

	s.health = health.NewRegistry(health.DefaultTimeout)
	if s.db != nil {
		s.health.Register("postgres", health.SQL(s.db))
	}
	if s.rdb != nil {
		s.health.Register("redis", health.Redis(s.rdb))
	}
	return nil
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
			"success": false,
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(traces.Middleware())
	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting: shared window in Redis, per-process buckets otherwise
	rl := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rl.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	if s.rdb != nil {
		s.limiter = ratelimit.NewRedis(s.rdb, redisKeyPrefix+":ratelimit", rl)
	} else {
		s.memLimiter = ratelimit.NewMemory(rl)
		s.limiter = s.memLimiter
	}
	s.router.Use(ratelimit.Middleware(s.limiter, ratelimit.ClientIP, s.logger))

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := validation.SanitizeString(c.GetHeader("X-Request-ID"), 128)
		if requestID == "" {
			requestID = idgen.WithPrefix(idgen.PrefixRequest)
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
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
		logger := logging.L(c.Request.Context())
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
		}

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1", auth.Middleware(auth.NewVerifier(s.cfg.JWTSecret, s.cfg.JWTIssuer)))

	riskHandler := risk.NewHandler(s.riskService, s.gate, s.cfg.AnalyzeTimeout)
	counselingHandler := counseling.NewHandler(s.counselingStore)

	user := v1.Group("/risk", auth.RequireAuth())
	riskHandler.RegisterRoutes(user)
	diary.NewHandler(s.diaryStore).RegisterRoutes(user)
	counselingHandler.RegisterRoutes(user)

	admin := v1.Group("/admin", auth.RequireAdmin(s.cfg.AdminSecret))
	riskHandler.RegisterAdminRoutes(admin)
	counselingHandler.RegisterAdminRoutes(admin)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "not_found",
			"message": "No route for " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   s.version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

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
	if healthy, checks := s.health.CheckAll(c.Request.Context()); !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
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

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.cfg.JanitorEvery > 0 {
		go s.gate.StartJanitor(runCtx, s.cfg.SessionTTL, s.cfg.JanitorEvery)
	}
	go metrics.StartPoolStatsCollector(runCtx, s.db, s.rdb, poolStatsInterval)

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		_ = s.Shutdown()
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

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	var shutdownErr error
	if s.httpSrv != nil {
		// Give load balancers time to stop sending traffic
		time.Sleep(s.drainDelay)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if s.memLimiter != nil {
		s.memLimiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdownTracing(ctx); err != nil {
		s.logger.Error("tracing shutdown error", "error", err)
	}

	s.closeStores()
	s.logger.Info("server stopped")
	return shutdownErr
}

func (s *Server) closeStores() {
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
