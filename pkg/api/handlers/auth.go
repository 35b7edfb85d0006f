package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/pkg/identity"
)

// TokenIssuer is implemented by identity managers that can exchange a
// username and password for a Bearer token.
type TokenIssuer interface {
	Login(username, password string) (*identity.Token, error)
}

// AuthHandler issues tokens for realms whose manager is a TokenIssuer.
type AuthHandler struct {
	provider identity.Provider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(provider identity.Provider) *AuthHandler {
	return &AuthHandler{provider: provider}
}

// LoginRequest is the request body for POST /auth/{realm}/token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Token handles POST /auth/{realm}/token.
// Authenticates the account and returns a Bearer token for the realm.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	realm := chi.URLParam(r, "realm")

	m, err := h.provider.IdentityManager(realm)
	if err != nil {
		NotFound(w, "Unknown realm")
		return
	}

	issuer, ok := m.(TokenIssuer)
	if !ok {
		NotFound(w, "Realm does not issue tokens")
		return
	}

	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	token, err := issuer.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			Unauthorized(w, "Invalid username or password")
			return
		}
		logger.WarnCtx(r.Context(), "Token issuing failed", logger.KeyRealm, realm, logger.KeyError, err)
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, token)
}
