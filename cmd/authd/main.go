package main

// @title           Authd API
// @version         1.0
// @description     OAuth 2.1 authorization engine. Authd brokers provider logins (GitHub, Google), issues JWT session tokens, and authenticates requests by Bearer token or API key.

// @contact.name   Authd OSS
// @contact.url    https://github.com/riatzukiza/mcp-sub003/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key
// @description API key of the form mcp_<keyId>_<secret>

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/auth"
	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/memory"
	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/postgres"
	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/providers"
	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/providers/github"
	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/providers/google"
	redisadapter "github.com/riatzukiza/mcp-sub003/internal/adapters/driven/redis"
	"github.com/riatzukiza/mcp-sub003/internal/adapters/driving/http"
	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
	"github.com/riatzukiza/mcp-sub003/internal/core/services"
	"github.com/riatzukiza/mcp-sub003/internal/worker"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("authd %s starting in %s mode", version, mode)

	// Configuration from environment
	jwtSecret := getEnv("JWT_SECRET", "development-secret-change-in-production")
	if jwtSecret == "development-secret-change-in-production" {
		log.Println("Warning: JWT_SECRET not set, using development default")
	}
	jwtIssuer := getEnv("JWT_ISSUER", "authd")
	jwtAudience := getEnv("JWT_AUDIENCE", "authd-clients")
	host := getEnv("AUTH_HOST", "0.0.0.0")
	port := getEnvInt("AUTH_PORT", 8080)
	databaseURL := getEnv("DATABASE_URL", "")
	redisAddr := getEnv("REDIS_ADDR", "")

	accessExpiry := getEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
	refreshExpiry := getEnvDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
	stateTimeout := getEnvDuration("STATE_TIMEOUT", 10*time.Minute)
	sessionTimeout := getEnvDuration("SESSION_TIMEOUT", 24*time.Hour)
	cleanupInterval := getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL (optional) =====
	var db *postgres.DB
	if databaseURL != "" {
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.Config{
			URL:             databaseURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300)) * time.Second,
			ConnMaxIdleTime: time.Duration(getEnvInt("DB_CONN_MAX_IDLE_SEC", 60)) * time.Second,
		}
		var err error
		db, err = postgres.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("PostgreSQL connected and schema initialized")
	}

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if redisAddr != "" {
		log.Println("Connecting to Redis...")
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// ===== Crypto adapters =====
	signer := auth.NewAdapter(auth.Config{
		Secret:     jwtSecret,
		Issuer:     jwtIssuer,
		Audience:   jwtAudience,
		BcryptCost: getEnvInt("BCRYPT_COST", 0),
	})

	// ===== Provider registry =====
	registry := providers.NewRegistry()
	if clientID := getEnv("GITHUB_CLIENT_ID", ""); clientID != "" {
		registry.Register(github.New(domain.ProviderConfig{
			ClientID:     clientID,
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GITHUB_REDIRECT_URL", ""),
			Scopes:       splitList(getEnv("GITHUB_SCOPES", "")),
		}))
		log.Println("GitHub provider registered")
	}
	if clientID := getEnv("GOOGLE_CLIENT_ID", ""); clientID != "" {
		registry.Register(google.New(domain.ProviderConfig{
			ClientID:     clientID,
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
			Scopes:       splitList(getEnv("GOOGLE_SCOPES", "")),
		}))
		log.Println("Google provider registered")
	}
	if len(registry.Types()) == 0 {
		log.Println("Warning: no OAuth providers configured (set GITHUB_CLIENT_ID or GOOGLE_CLIENT_ID)")
	}

	var trusted []domain.ProviderType
	for _, name := range splitList(getEnv("OAUTH_PROVIDERS", "")) {
		trusted = append(trusted, domain.ProviderType(name))
	}

	// ===== OAuth state and session stores (Redis if available, otherwise in-memory) =====
	var stateStore driven.OAuthStateStore
	var sessionStore driven.OAuthSessionStore
	var blacklist driven.TokenBlacklist
	if redisClient != nil {
		cipher, err := redisadapter.NewTokenCipher(sessionEncryptionKey(jwtSecret))
		if err != nil {
			log.Fatalf("Failed to build session cipher: %v", err)
		}
		stateStore = redisadapter.NewStateStore(redisClient, cipher)
		sessionStore = redisadapter.NewSessionStore(redisClient, cipher, sessionTimeout)
		blacklist = redisadapter.NewBlacklist(redisClient, refreshExpiry)
		log.Println("Using Redis OAuth stores")
	} else {
		stateStore = memory.NewStateStore()
		sessionStore = memory.NewSessionStore(memory.SessionStoreConfig{SessionTimeout: sessionTimeout})
		blacklist = memory.NewBlacklist()
		log.Println("Using in-memory OAuth stores")
	}

	// ===== User registry and API key store (PostgreSQL if available, otherwise in-memory) =====
	var userRegistry driven.UserRegistry
	var keyStore driven.APIKeyStore
	if db != nil {
		userRegistry = postgres.NewUserRegistry(db)
		keyStore = postgres.NewAPIKeyStore(db)
		log.Println("Using PostgreSQL user registry")
	} else {
		userRegistry = memory.NewUserRegistry()
		keyStore = memory.NewAPIKeyStore()
		log.Println("Using in-memory user registry")
	}

	// ===== Distributed Lock (Redis if available, otherwise PostgreSQL advisory locks) =====
	var distributedLock driven.DistributedLock
	if redisClient != nil {
		distributedLock = redisadapter.NewLock(redisClient)
		log.Println("Using Redis distributed lock")
	} else if db != nil {
		distributedLock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL advisory lock")
	}

	// Services (core business logic)
	oauthService := services.NewOAuthService(services.OAuthServiceConfig{
		Registry:         registry,
		StateStore:       stateStore,
		SessionStore:     sessionStore,
		TrustedProviders: trusted,
		StateTimeout:     stateTimeout,
		SessionTimeout:   sessionTimeout,
		Logger:           slog.Default(),
	})
	tokenService := services.NewTokenService(services.TokenServiceConfig{
		Signer:             signer,
		Blacklist:          blacklist,
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
		Logger:             slog.Default(),
	})
	authnService := services.NewAuthnService(services.AuthnServiceConfig{
		Keys:   keyStore,
		Tokens: tokenService,
		Hasher: signer,
		DefaultRateLimit: domain.RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
			RequestsPerHour:   getEnvInt("RATE_LIMIT_PER_HOUR", 1000),
		},
		Logger: slog.Default(),
	})
	integrationService := services.NewIntegrationService(services.IntegrationServiceConfig{
		Registry: userRegistry,
		OAuth:    oauthService,
		Tokens:   tokenService,
		Logger:   slog.Default(),
	})

	// Janitor sweeps expired states, sessions, blacklist entries, and
	// rate-limit windows
	janitor := worker.NewJanitor(worker.JanitorConfig{
		Sessions:  oauthService,
		Blacklist: tokenService,
		Limiters:  authnService,
		Lock:      distributedLock,
		Logger:    slog.Default(),
		Interval:  cleanupInterval,
	})

	server := http.NewServer(
		http.Config{
			Host:           host,
			Port:           port,
			Version:        version,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		oauthService,
		tokenService,
		authnService,
		integrationService,
		dbPinger(db),
		redisPinger(redisClient),
	)

	switch mode {
	case "api":
		// API-only mode: HTTP server, no janitor
		runAPI(server, port)

	case "worker":
		// Worker-only mode: janitor sweeps, no HTTP server
		runJanitorMode(ctx, janitor)

	case "all":
		// Combined mode: janitor in background, API in foreground
		go runJanitorMode(ctx, janitor)
		runAPI(server, port)

	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, or all)", mode)
	}
}

func runAPI(server *http.Server, port int) {
	log.Printf("API server starting on :%d", port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runJanitorMode starts the janitor and blocks until shutdown.
func runJanitorMode(ctx context.Context, janitor *worker.Janitor) {
	log.Println("Starting janitor...")
	if err := janitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}

	<-ctx.Done()

	log.Println("Stopping janitor...")
	janitor.Stop()
}

// sessionEncryptionKey resolves the at-rest key for Redis-held secrets.
// SESSION_ENCRYPTION_KEY takes a 64-char hex string; without it the key
// is derived from the JWT secret so single-secret deployments still work.
func sessionEncryptionKey(jwtSecret string) []byte {
	if encoded := getEnv("SESSION_ENCRYPTION_KEY", ""); encoded != "" {
		key, err := hex.DecodeString(encoded)
		if err != nil || len(key) != 32 {
			log.Fatalf("SESSION_ENCRYPTION_KEY must be 64 hex characters")
		}
		return key
	}
	log.Println("Warning: SESSION_ENCRYPTION_KEY not set, deriving session key from JWT_SECRET")
	sum := sha256.Sum256([]byte(jwtSecret))
	return sum[:]
}

// dbPinger returns the database as a health target, or nil when the
// deployment runs without PostgreSQL. A typed nil would defeat the
// server's nil check.
func dbPinger(db *postgres.DB) http.Pinger {
	if db == nil {
		return nil
	}
	return db
}

type redisHealth struct {
	client *redis.Client
}

func (p redisHealth) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func redisPinger(client *redis.Client) http.Pinger {
	if client == nil {
		return nil
	}
	return redisHealth{client: client}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration from the environment. Plain numbers
// are taken as seconds; otherwise Go duration syntax applies (15m, 24h).
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil && fmt.Sprintf("%d", seconds) == value {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
