package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// Context keys
type contextKey string

const authContextKey contextKey = "auth_context"

// AuthMiddleware resolves request identity through the authentication
// service and enforces per-route role and permission requirements.
type AuthMiddleware struct {
	authnService driving.AuthnService
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authnService driving.AuthnService) *AuthMiddleware {
	return &AuthMiddleware{
		authnService: authnService,
	}
}

// Handle builds a middleware enforcing the given options. The identity
// is resolved in order: Bearer JWT, API key, then guest. On optional
// routes an authentication failure lets the request through without an
// identity; rate-limited credentials are rejected either way.
func (m *AuthMiddleware) Handle(opts driving.MiddlewareOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := m.authnService.AuthenticateRequest(r.Context(), driving.Request{
				Authorization: r.Header.Get("Authorization"),
				APIKeyHeader:  r.Header.Get("X-API-Key"),
				APIKeyQuery:   r.URL.Query().Get("api_key"),
			})

			if !result.Success {
				if result.ErrorCode == domain.AuthErrorRateLimited {
					writeOAuthError(w, http.StatusTooManyRequests, driving.ErrRateLimitExceeded)
					return
				}
				if opts.IsRequired() {
					writeOAuthError(w, http.StatusUnauthorized, driving.ErrAuthenticationRequired)
					return
				}
				// Optional route: proceed with no identity attached.
				next.ServeHTTP(w, r)
				return
			}

			if result.Method == domain.AuthMethodNone && opts.IsRequired() {
				writeOAuthError(w, http.StatusUnauthorized, driving.ErrAuthenticationRequired)
				return
			}

			authCtx := result.Context()

			if len(opts.AllowedRoles) > 0 && !roleAllowed(authCtx.Role, opts.AllowedRoles) {
				writeOAuthError(w, http.StatusForbidden, driving.ErrInsufficientPrivileges)
				return
			}

			// Admins hold every permission implicitly
			if !authCtx.IsAdmin() {
				for _, perm := range opts.RequiredPermissions {
					if !authCtx.HasPermission(perm) {
						writeOAuthError(w, http.StatusForbidden, driving.ErrInsufficientPermissions)
						return
					}
				}
			}

			ctx := context.WithValue(r.Context(), authContextKey, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate enforces the default options: authentication required,
// any role, no permission requirements
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return m.Handle(driving.MiddlewareOptions{})(next)
}

// RequireAdmin restricts the route to admin callers
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.Handle(driving.MiddlewareOptions{
		AllowedRoles: []domain.Role{domain.RoleAdmin},
	})(next)
}

func roleAllowed(role domain.Role, allowed []domain.Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// GetAuthContext retrieves the auth context from request context
func GetAuthContext(ctx context.Context) *domain.AuthContext {
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.Value(authContextKey).(*domain.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// extractBearerToken extracts the Bearer token from Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// Logging middleware

// LoggingMiddleware logs HTTP requests
type LoggingMiddleware struct{}

// NewLoggingMiddleware creates a new LoggingMiddleware
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{}
}

// Handler wraps an http.Handler with request logging
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Recovery middleware

// RecoveryMiddleware recovers from panics
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new RecoveryMiddleware
func NewRecoveryMiddleware() *RecoveryMiddleware {
	return &RecoveryMiddleware{}
}

// Handler wraps an http.Handler with panic recovery
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS middleware

// CORSMiddleware handles CORS
type CORSMiddleware struct {
	allowedOrigins []string
}

// NewCORSMiddleware creates a new CORSMiddleware
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
	}
}

// Handler wraps an http.Handler with CORS headers
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, o := range m.allowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Handle preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
