package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/kindyguard/internal/auth"
	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/data"
	"github.com/technosupport/kindyguard/internal/middleware"
	"github.com/technosupport/kindyguard/internal/session"
	"github.com/technosupport/kindyguard/internal/tokens"
)

type AuthHandler struct {
	Users     data.UserModel
	Tokens    *tokens.Manager
	Session   *session.Manager
	Blacklist auth.TokenBlacklist
	Coord     *coordinator.Coordinator
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresIn    int               `json:"expires_in"` // seconds
	User         *coordinator.User `json:"user,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	// 1. Lockout check
	locked, err := h.Session.CheckLockout(r.Context(), req.Username)
	if err != nil || locked {
		h.genericError(w)
		return
	}

	// 2. Retrieve account
	user, err := h.Users.GetByUsername(r.Context(), req.Username)
	if err == data.ErrUserNotFound {
		// Dummy verify for timing safety
		auth.CheckPassword("dummy", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$hashhashhashhashhashhashhashhashhash")
		h.failWithLockout(w, r, req.Username)
		return
	} else if err != nil {
		h.genericError(w)
		return
	}

	// 3. Verify password
	match, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		h.failWithLockout(w, r, req.Username)
		return
	}

	if user.IsDisabled {
		h.failWithLockout(w, r, req.Username)
		return
	}

	// 4. Issue tokens + register session
	sessionID := uuid.New().String()

	accessToken, err := h.Tokens.GenerateAccessToken(user.ID.String(), user.Username, user.Role)
	if err != nil {
		h.genericError(w)
		return
	}
	refreshToken, err := h.Tokens.GenerateRefreshToken(user.ID.String(), user.Username, user.Role)
	if err != nil {
		h.genericError(w)
		return
	}

	if err := h.Session.CreateSession(r.Context(), user.ID.String(), sessionID); err != nil {
		log.Printf("[AUTH] Session create failed for %s: %v", user.Username, err)
	}
	_ = h.Session.ClearFailedAttempts(r.Context(), req.Username)

	// 5. The coordinator trusts the validated account
	cu := coordinator.User{
		ID:          user.ID.String(),
		Username:    user.Username,
		Role:        coordinator.Role(user.Role),
		DisplayName: user.DisplayName,
	}
	h.Coord.Login(cu)

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int((15 * time.Minute).Seconds()),
		User:         &cu,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, err := h.Tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != tokens.Refresh {
		h.genericError(w)
		return
	}

	blacklisted, err := h.Blacklist.IsBlacklisted(r.Context(), claims.ID)
	if err != nil || blacklisted {
		h.genericError(w)
		return
	}

	accessToken, err := h.Tokens.GenerateAccessToken(claims.UserID, claims.Username, claims.Role)
	if err != nil {
		h.genericError(w)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int((15 * time.Minute).Seconds()),
	})
}

// Logout revokes the presented access token and clears the coordinator's
// session. Idempotent: a second call with a dead token still returns 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		if claims, err := h.Tokens.ValidateToken(parts[1]); err == nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if ttl > 0 {
				if err := h.Blacklist.AddToBlacklist(r.Context(), claims.ID, ttl); err != nil {
					log.Printf("[AUTH] Blacklist add failed: %v", err)
				}
			}
			_ = h.Session.RevokeAllUserSessions(r.Context(), claims.UserID)
		}
	}

	h.Coord.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) failWithLockout(w http.ResponseWriter, r *http.Request, username string) {
	if err := h.Session.RecordFailedAttempt(r.Context(), username); err != nil {
		log.Printf("[AUTH] Failed attempt record error: %v", err)
	}
	h.genericError(w)
}

// genericError avoids leaking whether the account exists or is locked.
func (h *AuthHandler) genericError(w http.ResponseWriter) {
	http.Error(w, "Invalid credentials", http.StatusUnauthorized)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// actorName resolves the display identity for lifecycle records.
func actorName(r *http.Request) string {
	if ac, ok := middleware.GetAuthContext(r.Context()); ok {
		return ac.Username
	}
	return ""
}
