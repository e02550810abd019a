package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	oauthService       driving.OAuthService
	tokenService       driving.TokenService
	authnService       driving.AuthnService
	integrationService driving.IntegrationService

	// Infrastructure
	db          Pinger // PostgreSQL health check (optional)
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	oauthService driving.OAuthService,
	tokenService driving.TokenService,
	authnService driving.AuthnService,
	integrationService driving.IntegrationService,
	db Pinger, // can be nil
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:             http.NewServeMux(),
		version:            cfg.Version,
		oauthService:       oauthService,
		tokenService:       tokenService,
		authnService:       authnService,
		integrationService: integrationService,
		db:                 db,
		redisClient:        redisClient,
	}

	s.setupRoutes()

	handler := NewRecoveryMiddleware().Handler(
		NewLoggingMiddleware().Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authnService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// OAuth flow endpoints (public: these establish identity)
	s.router.HandleFunc("GET /api/v1/oauth/providers", s.handleListProviders)
	s.router.HandleFunc("POST /api/v1/oauth/{provider}/authorize", s.handleOAuthAuthorize)
	// Callback is public - receives redirects from OAuth providers
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)

	// Token endpoints
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)
	s.router.Handle("POST /api/v1/auth/logout",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLogout)))
	s.router.Handle("GET /api/v1/auth/me",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetMe)))

	// Session endpoints (authenticated; owner or admin)
	s.router.Handle("GET /api/v1/sessions",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListSessions)))
	s.router.Handle("DELETE /api/v1/sessions/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDeleteSession)))

	// API key management (mutations are admin-only)
	s.router.Handle("POST /api/v1/apikeys",
		authMiddleware.RequireAdmin(http.HandlerFunc(s.handleCreateAPIKey)))
	s.router.Handle("GET /api/v1/apikeys",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListAPIKeys)))
	s.router.Handle("DELETE /api/v1/apikeys/{id}",
		authMiddleware.RequireAdmin(http.HandlerFunc(s.handleDeleteAPIKey)))

	// Admin endpoints
	s.router.Handle("GET /api/v1/admin/users",
		authMiddleware.Handle(driving.MiddlewareOptions{
			AllowedRoles: []domain.Role{domain.RoleAdmin},
		})(http.HandlerFunc(s.handleListUsers)))
	s.router.Handle("DELETE /api/v1/admin/users/{id}/sessions",
		authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRevokeUserSessions)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
