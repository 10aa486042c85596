// Package server
//
// @title AI Lawyer API
// @version 1.0
// @description Session gate, identity routes and SPA host for AI Lawyer
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ailawyer-pro/ailawyer/internal/auth"
	"github.com/ailawyer-pro/ailawyer/internal/billing"
	"github.com/ailawyer-pro/ailawyer/internal/config"
	"github.com/ailawyer-pro/ailawyer/internal/models"
	"github.com/ailawyer-pro/ailawyer/internal/tasks"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	provider  *auth.Provider
	resolver  auth.IdentityResolver
	sessions  auth.SessionStore
	origins   *OriginPolicy
	catalog   *billing.Catalog
	enqueuer  tasks.Enqueuer
	version   string

	// owned connections, closed on shutdown
	asynqClient *asynq.Client
	redisClient redis.UniversalClient
}

// Options carries pre-built dependencies. Zero fields are filled from config
// by New; NewWithOptions requires DB.
type Options struct {
	DB       *gorm.DB
	Sessions auth.SessionStore
	Enqueuer tasks.Enqueuer        // nil runs maintenance inline
	Resolver auth.IdentityResolver // nil builds one from config
	Version  string

	// PasswordCost overrides the bcrypt cost (tests)
	PasswordCost int
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sessions, redisClient, err := newSessionStore(cfg, db, zlog)
	if err != nil {
		return nil, err
	}

	// Initialize Asynq client for enqueueing maintenance tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	srv, err := NewWithOptions(cfg, zlog, Options{
		DB:       db,
		Sessions: sessions,
		Enqueuer: asynqClient,
		Version:  version,
	})
	if err != nil {
		asynqClient.Close()
		return nil, err
	}
	srv.asynqClient = asynqClient
	srv.redisClient = redisClient
	return srv, nil
}

// NewWithOptions wires a server around existing dependencies
func NewWithOptions(cfg *config.Config, zlog zerolog.Logger, opts Options) (*Server, error) {
	if opts.DB == nil {
		return nil, errors.New("server requires a database")
	}
	if opts.Sessions == nil {
		opts.Sessions = auth.NewGormSessionStore(opts.DB)
	}

	issuer := cfg.Auth.BaseURL
	if issuer == "" {
		issuer = "ailawyer"
	}
	provider, err := auth.NewProvider(opts.DB, opts.Sessions, auth.ProviderConfig{
		Secret:       cfg.Auth.Secret,
		Issuer:       issuer,
		AdminEmail:   cfg.Auth.AdminEmail,
		SessionTTL:   cfg.Auth.SessionTTL,
		CookieName:   cfg.Auth.CookieName,
		PasswordCost: opts.PasswordCost,
	}, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	if !cfg.Auth.SecretConfigured {
		zlog.Warn().Msg("AUTH_SECRET not set - using development secret")
	}
	if cfg.Auth.DemoFallbackEnabled {
		zlog.Warn().Msg("Demo fallback enabled - unauthenticated requests resolve to the demo user")
	}
	if cfg.CORS.WildcardFallback {
		zlog.Warn().Msg("CORS wildcard fallback enabled - any origin is accepted")
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = auth.NewResolver(provider, cfg.Auth.DemoFallbackEnabled)
	}

	catalog, err := billing.Default()
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:        opts.DB,
		config:    cfg,
		logger:    zlog,
		validator: validator.New(),
		provider:  provider,
		resolver:  resolver,
		sessions:  opts.Sessions,
		origins:   NewOriginPolicy(cfg.CORS, zlog),
		catalog:   catalog,
		enqueuer:  opts.Enqueuer,
		version:   opts.Version,
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 5 * time.Minute
		busyTimeout     = 5000 // ms
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	var journalMode string
	db.Raw("PRAGMA journal_mode").Scan(&journalMode)
	zlog.Debug().Str("journal_mode", journalMode).Str("url", cfg.Database.URL).Msg("Database ready")

	return db, nil
}

// newSessionStore picks the session backend from config
func newSessionStore(cfg *config.Config, db *gorm.DB, zlog zerolog.Logger) (auth.SessionStore, redis.UniversalClient, error) {
	if cfg.Auth.SessionStore != config.SessionStoreRedis {
		return auth.NewGormSessionStore(db), nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to reach redis session store at %s: %w", cfg.Redis.Address, err)
	}

	zlog.Info().Str("address", cfg.Redis.Address).Msg("Using Redis session store")
	return auth.NewRedisSessionStore(rdb), rdb, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Order matters: recovery wraps everything, CORS answers preflights
	// before any session lookup.
	s.router.Use(s.recoveryMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.origins.Middleware())
	s.router.Use(AuthGate(s.resolver, s.db, s.logger))

	// Diagnostics (no auth required)
	s.router.GET("/ping", s.ping)
	s.router.GET("/api/health", s.healthCheck)

	// Session-guarded
	s.router.GET("/protected", AuthenticatedOnly(s.logger), s.protected)
	s.router.GET("/me", AuthenticatedOnly(s.logger), s.getCurrentUser)

	// Identity provider
	authRoutes := s.router.Group("/api/auth")
	{
		authRoutes.POST("/sign-up/email", s.signUp)
		authRoutes.POST("/sign-in/email", s.signIn)
		authRoutes.POST("/sign-out", s.signOut)
		authRoutes.GET("/get-session", s.getSession)
	}

	// Pricing page
	s.router.GET("/api/billing/plans", s.listPlans)

	// Admin only
	admin := s.router.Group("/api/admin")
	admin.Use(RequireAdmin(s.logger))
	{
		admin.GET("/users", s.listUsers)
		admin.POST("/sessions/purge", s.purgeSessions)
	}

	// Everything else is the SPA or its assets
	s.router.NoRoute(s.serveSPA)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Provider returns the identity provider for use by workers
func (s *Server) Provider() *auth.Provider {
	return s.provider
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("version", s.version).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		s.Close()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.Close()
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Close releases the connections the server owns
func (s *Server) Close() {
	if s.asynqClient != nil {
		if err := s.asynqClient.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Asynq client")
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Redis client")
		}
	}
	// Flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}
}
