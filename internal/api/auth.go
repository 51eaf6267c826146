package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sxbin-backend/internal/auth"
	"sxbin-backend/internal/config"
	"sxbin-backend/internal/models"
	"sxbin-backend/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
	oauthLandingPage = "/dashboard"
)

type AuthHandler struct {
	users      *service.UserService
	jwtManager *auth.JWTManager
	oauth      *auth.OAuth2Provider
	cookie     config.JWTConfig
	logger     *zap.Logger
}

// NewAuthHandler builds the session endpoints. oauth may be nil when no
// provider is configured.
func NewAuthHandler(users *service.UserService, jwtManager *auth.JWTManager, oauth *auth.OAuth2Provider, cookie config.JWTConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtManager: jwtManager,
		oauth:      oauth,
		cookie:     cookie,
		logger:     logger.Named("auth"),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	h.startSession(w, r, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username/email and password are required")
		return
	}

	user, err := h.users.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	h.startSession(w, r, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.UserRecord) {
	token, err := h.jwtManager.Generate(user)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, token, int(h.jwtManager.Expiry().Seconds()))
	writeJSON(w, http.StatusOK, models.AuthResponse{Success: true, User: user.Info()})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	user, err := h.users.Me(r.Context(), p.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.MeResponse{User: user.Info()})
}

func (h *AuthHandler) OAuth2Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/oauth2",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *AuthHandler) OAuth2Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "Invalid OAuth2 state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/api/auth/oauth2", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	identity, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth2 exchange failed", zap.String("provider", h.oauth.GetName()), zap.Error(err))
		writeError(w, http.StatusBadGateway, "OAuth2 login failed")
		return
	}

	user, err := h.users.ProvisionExternal(r.Context(), identity)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, token, int(h.jwtManager.Expiry().Seconds()))
	http.Redirect(w, r, oauthLandingPage, http.StatusFound)
}
