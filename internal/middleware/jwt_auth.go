package middleware

import (
	"net/http"
	"strings"

	"github.com/technosupport/kindyguard/internal/auth"
	"github.com/technosupport/kindyguard/internal/tokens"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*tokens.Claims, error)
}

type JWTAuth struct {
	tokens    TokenValidator
	blacklist auth.TokenBlacklist
}

func NewJWTAuth(t TokenValidator, b auth.TokenBlacklist) *JWTAuth {
	return &JWTAuth{tokens: t, blacklist: b}
}

// Middleware verifies the JWT and injects AuthContext
func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if claims.TokenType != tokens.Access {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Blacklist check fails closed
		blacklisted, err := m.blacklist.IsBlacklisted(r.Context(), claims.ID)
		if err != nil || blacklisted {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ac := &AuthContext{
			UserID:   claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
			TokenID:  claims.ID,
		}

		ctx := WithAuthContext(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler on the account role. KindyGuard has exactly two
// roles; admin passes every gate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if ac.Role != role && ac.Role != "admin" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
