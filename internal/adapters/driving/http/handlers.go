package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks connectivity to the configured storage backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			checks["postgres"] = "unavailable"
			ready = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			checks["redis"] = "unavailable"
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, checks)
		return
	}
	checks["status"] = "ready"
	writeJSON(w, http.StatusOK, checks)
}

// handleVersion godoc
// @Summary      API version
// @Description  Returns the running service version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// OAuth flow endpoints

type authorizeRequest struct {
	RedirectURI   string `json:"redirect_uri,omitempty"`
	CodeVerifier  string `json:"code_verifier,omitempty"`
	CodeChallenge string `json:"code_challenge,omitempty"`
}

// handleListProviders godoc
// @Summary      List OAuth providers
// @Description  Returns the registered, trusted identity providers
// @Tags         OAuth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/oauth/providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.oauthService.ListProviders()
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": providers,
		"count":     len(providers),
	})
}

// handleOAuthAuthorize godoc
// @Summary      Start OAuth flow
// @Description  Begins an authorization flow and returns the provider URL to redirect to
// @Tags         OAuth
// @Accept       json
// @Produce      json
// @Param        provider  path  string            true   "Provider type (github, google)"
// @Param        request   body  authorizeRequest  false  "Optional PKCE material and redirect override"
// @Success      200  {object}  driving.StartFlowResponse
// @Failure      400  {object}  driving.OAuthError
// @Router       /api/v1/oauth/{provider}/authorize [post]
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.oauthService.StartFlow(r.Context(), driving.StartFlowRequest{
		Provider:      domain.ProviderType(provider),
		RedirectURI:   req.RedirectURI,
		CodeVerifier:  req.CodeVerifier,
		CodeChallenge: req.CodeChallenge,
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, exchanges the code, and issues application tokens
// @Tags         OAuth
// @Produce      json
// @Param        code   query  string  false  "Authorization code"
// @Param        state  query  string  true   "Anti-CSRF state token"
// @Param        error  query  string  false  "Provider error code"
// @Success      200  {object}  driving.LoginResult
// @Failure      400  {object}  driving.OAuthError
// @Failure      403  {object}  driving.OAuthError
// @Failure      502  {object}  driving.OAuthError
// @Router       /api/v1/oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	callback, err := s.oauthService.HandleCallback(r.Context(), driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}

	login, err := s.integrationService.HandleLogin(r.Context(), callback)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, "account is deactivated")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid callback")
		default:
			writeFlowError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, login)
}

// Token endpoints

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh godoc
// @Summary      Refresh tokens
// @Description  Exchanges a valid refresh token for a rotated access/refresh pair
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body  refreshRequest  true  "Refresh token"
// @Success      200  {object}  domain.TokenPair
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /api/v1/auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	claims := s.tokenService.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	// The claims carry everything the rotated pair needs; no registry
	// or provider round-trip on the refresh path.
	userInfo := &domain.OAuthUserInfo{
		ID:       claims.Subject,
		Provider: claims.Provider,
		Metadata: claims.Metadata,
	}

	pair, err := s.tokenService.RefreshAccessToken(r.Context(), req.RefreshToken, userInfo)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// handleLogout godoc
// @Summary      Logout
// @Description  Blacklists the presented access token and revokes its provider session
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  driving.OAuthError
// @Router       /api/v1/auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := s.tokenService.ValidateAccessToken(r.Context(), extractBearerToken(r))
	if claims == nil {
		// API-key callers have no token session to log out of
		writeError(w, http.StatusBadRequest, "no active token session")
		return
	}

	if err := s.tokenService.BlacklistToken(r.Context(), claims.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}

	// Best-effort: the token is dead either way
	if claims.SessionID != "" {
		if err := s.oauthService.RevokeSession(r.Context(), claims.SessionID); err != nil {
			log.Printf("logout: revoke session %s: %v", claims.SessionID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleGetMe godoc
// @Summary      Current identity
// @Description  Returns the authenticated caller's resolved identity
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AuthContext
// @Failure      401  {object}  driving.OAuthError
// @Router       /api/v1/auth/me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeOAuthError(w, http.StatusUnauthorized, driving.ErrAuthenticationRequired)
		return
	}
	writeJSON(w, http.StatusOK, authCtx)
}

// Session endpoints

// handleListSessions godoc
// @Summary      List sessions
// @Description  Lists the caller's live provider sessions; admins may inspect any user via user_id
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Param        user_id  query  string  false  "Inspect another user's sessions (admin only)"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  driving.OAuthError
// @Router       /api/v1/sessions [get]
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeOAuthError(w, http.StatusUnauthorized, driving.ErrAuthenticationRequired)
		return
	}

	userID := authCtx.UserID
	if requested := r.URL.Query().Get("user_id"); requested != "" && authCtx.IsAdmin() {
		userID = requested
	}

	sessions, err := s.oauthService.ListUserSessions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleDeleteSession godoc
// @Summary      Revoke session
// @Description  Revokes a provider session owned by the caller (or any session, for admins)
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Session ID"
// @Success      200  {object}  StatusResponse
// @Failure      403  {object}  driving.OAuthError
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/sessions/{id} [delete]
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeOAuthError(w, http.StatusUnauthorized, driving.ErrAuthenticationRequired)
		return
	}

	id := r.PathValue("id")
	session, err := s.oauthService.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if session.UserID != authCtx.UserID && !authCtx.IsAdmin() {
		writeOAuthError(w, http.StatusForbidden, driving.ErrInsufficientPrivileges)
		return
	}

	if err := s.oauthService.RevokeSession(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// API key endpoints

// handleCreateAPIKey godoc
// @Summary      Create API key
// @Description  Mints an API key; the plaintext is returned exactly once
// @Tags         APIKeys
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  driving.CreateAPIKeyRequest  true  "Key to mint"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  driving.OAuthError
// @Router       /api/v1/apikeys [post]
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plaintext, key, err := s.authnService.CreateAPIKey(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "name and user_id are required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create API key")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": plaintext,
		"key":     key,
	})
}

// handleListAPIKeys godoc
// @Summary      List API keys
// @Description  Lists the caller's keys; admins see all keys or filter by user_id
// @Tags         APIKeys
// @Produce      json
// @Security     BearerAuth
// @Param        user_id  query  string  false  "Filter by owner (admin only)"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  driving.OAuthError
// @Router       /api/v1/apikeys [get]
func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeOAuthError(w, http.StatusUnauthorized, driving.ErrAuthenticationRequired)
		return
	}

	userID := authCtx.UserID
	if authCtx.IsAdmin() {
		userID = r.URL.Query().Get("user_id") // empty means all keys
	}

	keys, err := s.authnService.ListAPIKeys(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list API keys")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// handleDeleteAPIKey godoc
// @Summary      Revoke API key
// @Description  Deletes an API key; requests presenting it fail immediately
// @Tags         APIKeys
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Key ID"
// @Success      200  {object}  StatusResponse
// @Failure      403  {object}  driving.OAuthError
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/apikeys/{id} [delete]
func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.authnService.RevokeAPIKey(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to revoke API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Admin endpoints

// handleListUsers godoc
// @Summary      List users
// @Description  Returns all registered users (admin only)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  driving.OAuthError
// @Router       /api/v1/admin/users [get]
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.integrationService.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleRevokeUserSessions godoc
// @Summary      Revoke user sessions
// @Description  Revokes all application and provider sessions for a user (admin only)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  map[string]int
// @Failure      403  {object}  driving.OAuthError
// @Router       /api/v1/admin/users/{id}/sessions [delete]
func (s *Server) handleRevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	revoked, err := s.integrationService.RevokeUserSessions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": revoked})
}

// Response helpers

// statusForOAuthError maps flow error codes onto HTTP statuses
func statusForOAuthError(oe *driving.OAuthError) int {
	switch oe.Code {
	case "invalid_state", "validation_error", "provider_not_found":
		return http.StatusBadRequest
	case "access_denied":
		return http.StatusForbidden
	case "session_not_found":
		return http.StatusNotFound
	case "rate_limit_exceeded":
		return http.StatusTooManyRequests
	case "token_exchange_failed", "user_info_failed", "refresh_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFlowError renders an OAuth flow failure. Non-OAuth errors are
// masked as a plain 500; no internal detail leaks to the caller.
func writeFlowError(w http.ResponseWriter, err error) {
	var oe *driving.OAuthError
	if errors.As(err, &oe) {
		writeJSON(w, statusForOAuthError(oe), oe)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeOAuthError renders a known OAuth error at the given status
func writeOAuthError(w http.ResponseWriter, status int, oe *driving.OAuthError) {
	writeJSON(w, status, oe)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
