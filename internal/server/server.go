// Package server
//
// @title tripsplit API
// @version 1.0
// @description Shared travel expenses, groups and balances
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/auth"
	"github.com/tripsplit/tripsplit/internal/config"
	"github.com/tripsplit/tripsplit/internal/database"
	"github.com/tripsplit/tripsplit/internal/expenses"
	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/models"
	"github.com/tripsplit/tripsplit/internal/tasks"
	"github.com/tripsplit/tripsplit/internal/web"
)

// Server represents the HTTP server
type Server struct {
	router          *gin.Engine
	db              *gorm.DB
	config          *config.Config
	logger          zerolog.Logger
	validator       *validator.Validate
	revoker         auth.Revoker
	groupsService   *groups.Service
	expensesService *expenses.Service
	version         string

	// owned connections, closed on shutdown
	asynqClient *asynq.Client
	redisClient *redis.Client
}

// Dependencies are the collaborators a Server needs besides configuration
type Dependencies struct {
	DB       *gorm.DB
	Enqueuer tasks.Enqueuer // optional
	Revoker  auth.Revoker
}

// New creates a new server instance with production connections
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := database.Open(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	if err := EnsureJWTSecret(db, zlog); err != nil {
		return nil, err
	}

	// Initialize Asynq client for enqueueing balance digests
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})

	server := NewWithDependencies(cfg, zlog, version, Dependencies{
		DB:       db,
		Enqueuer: asynqClient,
		Revoker:  auth.NewRedisRevoker(redisClient),
	})
	server.asynqClient = asynqClient
	server.redisClient = redisClient

	return server, nil
}

// NewWithDependencies builds a server around existing connections
func NewWithDependencies(cfg *config.Config, zlog zerolog.Logger, version string, deps Dependencies) *Server {
	groupsService := groups.NewService(deps.DB, zlog)

	server := &Server{
		db:              deps.DB,
		config:          cfg,
		logger:          zlog,
		validator:       newValidator(),
		revoker:         deps.Revoker,
		groupsService:   groupsService,
		expensesService: expenses.NewService(deps.DB, groupsService, deps.Enqueuer, zlog),
		version:         version,
	}

	server.setupRouter()
	return server
}

// EnsureJWTSecret loads the persisted signing secret, generating and
// storing one on first boot
func EnsureJWTSecret(db *gorm.DB, zlog zerolog.Logger) error {
	var settings models.Settings
	err := db.First(&settings).Error
	if err == nil {
		auth.InitializeJWT(settings.JWTSecret)
		zlog.Debug().Msg("Loaded JWT secret from database")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// 64 hex characters = 32 bytes of randomness
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	settings = models.Settings{JWTSecret: hex.EncodeToString(secretBytes)}
	if err := db.Create(&settings).Error; err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}

	auth.InitializeJWT(settings.JWTSecret)
	zlog.Info().Msg("Generated new JWT secret")
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// ISO 4217 style code: three ASCII letters, any case
	validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if len(value) != 3 {
			return false
		}
		for _, char := range value {
			if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')) {
				return false
			}
		}
		return true
	})

	return validate
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(web.Middleware(web.DefaultMatcher, s.logger))

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Browser page shell
	web.LoadTemplates(s.router)
	web.RegisterPages(s.router)

	// Public auth endpoints
	s.router.POST("/api/auth/register", s.register)
	s.router.POST("/api/auth/login", s.login)

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.db, s.revoker, s.logger))
	{
		api.GET("/auth/me", s.getCurrentUser)
		api.POST("/auth/logout", s.logout)

		api.GET("/groups", s.listGroups)
		api.POST("/groups", s.createGroup)
		api.GET("/groups/:id", s.getGroup)
		api.POST("/groups/:id/members", s.addMember)

		api.GET("/groups/:id/expenses", s.listExpenses)
		api.POST("/groups/:id/expenses", s.createExpense)
		api.DELETE("/groups/:id/expenses/:expenseId", s.deleteExpense)

		api.GET("/groups/:id/balances", s.getBalances)
		api.GET("/groups/:id/balances/history", s.getBalanceHistory)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "tripsplit-api",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Expenses returns the expense service for use by workers
func (s *Server) Expenses() *expenses.Service {
	return s.expensesService
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
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

	// Close database connection to flush WAL writes
	if err := database.Close(s.db); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	} else {
		s.logger.Info().Msg("Database closed successfully")
	}
}
