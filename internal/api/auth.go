package api

import (
	"encoding/json"
	"net/http"

	"fieldmock/internal/auth"
	"fieldmock/internal/events"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	credAuth     *auth.CredentialsAuth
	jwtManager   *auth.JWTManager
	wsTokenStore *auth.WSTokenStore
	eventStore   *events.Store
	rateLimiter  *auth.LoginRateLimiter
}

// NewAuthHandler creates new auth handler
func NewAuthHandler(credAuth *auth.CredentialsAuth, jwtManager *auth.JWTManager, wsTokenStore *auth.WSTokenStore, eventStore *events.Store) *AuthHandler {
	return &AuthHandler{
		credAuth:     credAuth,
		jwtManager:   jwtManager,
		wsTokenStore: wsTokenStore,
		eventStore:   eventStore,
		rateLimiter:  auth.NewLoginRateLimiter(),
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Token   string     `json:"token,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)

	// Check rate limit first - reject immediately without wasting resources
	if allowed, _ := h.rateLimiter.Allow(clientIP); !allowed {
		writeJSON(w, http.StatusTooManyRequests, LoginResponse{
			Success: false,
			Message: "Too many login attempts",
		})
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Username and password are required",
		})
		return
	}

	user, err := h.credAuth.Authenticate(req.Username, req.Password)
	if err != nil {
		h.eventStore.Add(events.EventLoginFailed, clientIP, req.Username, false, "")
		writeJSON(w, http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Invalid username or password",
		})
		return
	}

	h.rateLimiter.Reset(clientIP)

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	// Cookie for browser clients; the token in the body serves API clients
	auth.SetAuthCookie(w, r, token, 86400)

	h.eventStore.Add(events.EventLogin, clientIP, user.Username, true, "")

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		User:    user,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// WSToken handles GET /api/auth/ws-token
// Returns a one-time token for WebSocket connections
func (h *AuthHandler) WSToken(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}

	token, err := h.wsTokenStore.Generate(user.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
