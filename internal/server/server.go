// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/wagervault/internal/arbiters"
	"github.com/mbd888/wagervault/internal/auth"
	"github.com/mbd888/wagervault/internal/betting"
	"github.com/mbd888/wagervault/internal/config"
	"github.com/mbd888/wagervault/internal/dicegame"
	"github.com/mbd888/wagervault/internal/health"
	"github.com/mbd888/wagervault/internal/ledger"
	"github.com/mbd888/wagervault/internal/logging"
	"github.com/mbd888/wagervault/internal/metrics"
	"github.com/mbd888/wagervault/internal/ratelimit"
	"github.com/mbd888/wagervault/internal/realtime"
	"github.com/mbd888/wagervault/internal/security"
	"github.com/mbd888/wagervault/internal/traces"
	"github.com/mbd888/wagervault/internal/validation"
	"github.com/mbd888/wagervault/internal/webhooks"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg      *config.Config
	authMgr  *auth.Manager
	ledger   *ledger.Ledger
	dice     *dicegame.Service
	bets     *betting.Service
	arbiters *arbiters.Service

	diceSweeper *dicegame.Sweeper
	betSweeper  *betting.Sweeper

	webhooks     *webhooks.Dispatcher
	webhookStore webhooks.Store
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthReg    *health.Registry

	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	stopTracing  func(context.Context) error

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

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	var (
		ledgerStore  ledger.Store
		authStore    auth.Store
		webhookStore webhooks.Store
		diceStore    dicegame.Store
		betStore     betting.Store
		arbiterStore arbiters.Store
	)

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		pgAuth := auth.NewPostgresStore(db)
		if err := pgAuth.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate auth store", "error", err)
		}
		authStore = pgAuth

		ledgerStore = ledger.NewPostgresStore(db)
		webhookStore = webhooks.NewPostgresStore(db)
		diceStore = dicegame.NewPostgresStore(db)
		betStore = betting.NewPostgresStore(db)
		arbiterStore = arbiters.NewPostgresStore(db)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		authStore = auth.NewMemoryStore()
		ledgerStore = ledger.NewMemoryStore()
		webhookStore = webhooks.NewMemoryStore()
		diceStore = dicegame.NewMemoryStore()
		betStore = betting.NewMemoryStore()
		arbiterStore = arbiters.NewMemoryStore()
	}

	s.authMgr = auth.NewManager(authStore)
	s.ledger = ledger.New(ledgerStore)
	s.webhookStore = webhookStore
	s.webhooks = webhooks.NewDispatcher(webhookStore)
	s.realtimeHub = realtime.NewHub(s.logger)

	events := webhooks.NewEmitter(s.webhooks, s.realtimeHub)

	s.arbiters = arbiters.NewService(arbiterStore)

	s.dice = dicegame.NewService(diceStore, s.ledger, cfg.DicePlatformFeeBps, cfg.DiceExpiry).
		WithEvents(events)
	s.diceSweeper = dicegame.NewSweeper(s.dice, cfg.SweepInterval, s.logger)

	s.bets = betting.NewService(betStore, s.ledger, betting.Config{
		PlatformFeeBps: cfg.BetPlatformFeeBps,
		ArbiterFeeBps:  cfg.ArbiterFeeBps,
		MinDecision:    cfg.BetMinDecision,
		ExpiryWindow:   cfg.BetExpiry,
	}).WithEvents(events).WithArbiterRecorder(s.arbiters)
	s.betSweeper = betting.NewSweeper(s.bets, cfg.SweepInterval, s.logger)

	// Health checks
	s.healthReg = health.NewRegistry()
	if s.db != nil {
		db := s.db
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}

	// Tracing (no-op when OTLP endpoint unset)
	stopTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.stopTracing = stopTracing
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
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

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	s.router.GET("/ws/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	v1.Use(validation.AddressParamMiddleware())

	authHandler := auth.NewHandler(s.authMgr)
	ledgerHandler := ledger.NewHandler(s.ledger)
	diceHandler := dicegame.NewHandler(s.dice)
	betHandler := betting.NewHandler(s.bets)
	arbiterHandler := arbiters.NewHandler(s.arbiters)
	webhookHandler := webhooks.NewHandler(s.webhookStore)

	// REGISTRATION (public but returns API key)
	v1.POST("/players", authHandler.Register)

	// AUTH INFO (public)
	v1.GET("/auth/info", authHandler.Info)

	// PUBLIC ROUTES (no auth required): reads, leaderboards, balances
	v1.GET("/platform", s.platformHandler)
	diceHandler.RegisterRoutes(v1)
	betHandler.RegisterRoutes(v1)
	arbiterHandler.RegisterRoutes(v1)
	ledgerHandler.RegisterRoutes(v1)

	// PROTECTED ROUTES (require API key)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr), auth.RequireAuth(s.authMgr))
	{
		diceHandler.RegisterProtectedRoutes(protected)
		betHandler.RegisterProtectedRoutes(protected)
		ledgerHandler.RegisterProtectedRoutes(protected)

		// API key management
		protected.GET("/auth/keys", authHandler.ListKeys)
		protected.POST("/auth/keys", authHandler.CreateKey)
		protected.DELETE("/auth/keys/:keyId", authHandler.RevokeKey)
		protected.POST("/auth/keys/:keyId/regenerate", authHandler.RegenerateKey)
		protected.GET("/auth/me", authHandler.GetCurrentPlayer)
	}

	// Webhook management requires auth AND ownership of the address
	protectedWebhooks := v1.Group("")
	protectedWebhooks.Use(
		auth.Middleware(s.authMgr),
		auth.RequireAuth(s.authMgr),
		auth.RequireOwnership(s.authMgr, "address"),
	)
	webhookHandler.RegisterRoutes(protectedWebhooks)
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

	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"checks": statuses,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": statuses,
	})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "WagerVault",
		"description": "Pooled-stake wagering with escrowed settlement",
		"version":     "0.1.0",
		"currency":    "credits",
	})
}

// platformHandler returns fee schedules and timing rules
func (s *Server) platformHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platform": gin.H{
			"name":    "WagerVault",
			"version": "0.1.0",
		},
		"diceGames": gin.H{
			"platformFeeBps": s.cfg.DicePlatformFeeBps,
			"expiry":         s.cfg.DiceExpiry.String(),
			"minPlayers":     dicegame.MinPlayers,
			"maxPlayers":     dicegame.MaxPlayers,
		},
		"bets": gin.H{
			"platformFeeBps": s.cfg.BetPlatformFeeBps,
			"arbiterFeeBps":  s.cfg.ArbiterFeeBps,
			"minDecision":    s.cfg.BetMinDecision.String(),
			"expiry":         s.cfg.BetExpiry.String(),
		},
		"instructions": gin.H{
			"register": "POST /v1/players with your address to get an API key",
			"deposit":  "POST /v1/balances/{address}/deposit to credit your balance",
			"play":     "POST /v1/games to open a dice game, or /v1/bets for an arbitrated bet",
		},
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
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
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start expiry sweepers
	go s.diceSweeper.Start(runCtx)
	go s.betSweeper.Start(runCtx)

	// Sample DB pool stats into Prometheus
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
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

	// Cancel the context for all background goroutines (hub, sweepers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.diceSweeper.Stop()
	s.betSweeper.Stop()
	s.logger.Info("sweepers stopped")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			s.logger.Error("tracing shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
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
