package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/go-chi/chi/v5"
)

// Credentials is the account service for one role.
type Credentials interface {
	Role() models.Role
	SessionValidity() time.Duration
	Register(ctx context.Context, name, email, password, confirmPassword string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (string, *models.Account, error)
	Authorize(ctx context.Context, token string) (*models.Account, error)
	IssueAPIKey(ctx context.Context, accountID, dbURI string) (string, error)
	RevokeAPIKey(ctx context.Context, accountID string) error
	AuthorizeAPIKey(ctx context.Context, key string) (*models.Account, error)
	SendResetCode(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) (*models.Account, error)
}

type authHandler struct {
	creds        Credentials
	secureCookie bool
	apiKeys      bool
	log          logging.Logger
}

func (h *authHandler) routes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/verify-reset-code", h.verifyResetCode)
	r.Post("/reset-password", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.protect)
		r.Get("/logout", h.logout)
		if h.apiKeys {
			r.Post("/apiKey", h.issueAPIKey)
			r.Delete("/apiKey", h.revokeAPIKey)
		}
	})
}

// sessionToken reads the session cookie, falling back to a bearer token.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// protect is the session guard.
func (h *authHandler) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := h.creds.Authorize(r.Context(), sessionToken(r))
		if err != nil {
			Error(w, r, h.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

func (h *authHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *authHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	account, err := h.creds.Register(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]any{"status": statusSuccess, "data": account})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	token, account, err := h.creds.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	h.setSessionCookie(w, token, h.creds.SessionValidity())
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "data": account})
}

func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "message": "Logged out successfully"})
}

type apiKeyRequest struct {
	MongoURI    string `json:"mongoUri"`
	DatabaseURI string `json:"databaseUri"`
}

func (h *authHandler) issueAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	uri := req.DatabaseURI
	if uri == "" {
		uri = req.MongoURI
	}

	account, _ := AccountFrom(r.Context())
	key, err := h.creds.IssueAPIKey(r.Context(), account.ID, uri)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]any{"status": statusSuccess, "apiKey": key})
}

func (h *authHandler) revokeAPIKey(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFrom(r.Context())
	if err := h.creds.RevokeAPIKey(r.Context(), account.ID); err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "message": "API key revoked"})
}

type resetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *authHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	if err := h.creds.SendResetCode(r.Context(), req.Email); err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "message": "Password reset code sent to email"})
}

func (h *authHandler) verifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	if err := h.creds.VerifyResetCode(r.Context(), req.Email, req.Code); err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "message": "Code verified successfully"})
}

func (h *authHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, r, h.log, err)
		return
	}
	account, err := h.creds.ResetPassword(r.Context(), req.Email, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		Error(w, r, h.log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "message": "Password reset successfully", "data": account})
}
