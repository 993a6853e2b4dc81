package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// AuthService is what the HTTP boundary needs from the session protocol.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) valid() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

type meResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type handlers struct {
	svc          AuthService
	cookieSecure bool
	logger       logging.Logger
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	respondError(w, status, msg)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil || !in.valid() {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if _, err := h.svc.Register(r.Context(), in.Email, in.Password); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if cookieValue(r, common.AccessTokenCookieName) != "" || cookieValue(r, common.RefreshTokenCookieName) != "" {
		respondError(w, http.StatusConflict, "You already logged in")
		return
	}

	var in credentials
	if err := decodeJSON(r, &in); err != nil || !in.valid() {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	setTokenCookies(w, pair, h.cookieSecure)
	respondJSON(w, http.StatusOK, pair)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	pair, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	setTokenCookies(w, pair, h.cookieSecure)
	respondJSON(w, http.StatusOK, pair)
}

// logout always clears the cookies, even if the stored session could not be
// removed.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)

	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.logger.Error(r.Context(), "logout failed", "error", err)
	}

	clearTokenCookies(w, h.cookieSecure)
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	respondJSON(w, http.StatusOK, meResponse{ID: user.ID, Email: user.Email})
}
