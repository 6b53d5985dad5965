package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Middleware wires identity resolution and role checks for HTTP handlers.
// Tokens are bearer JWTs minted by the identity provider; the claims carry
// sub (user id), email, and role.
type Middleware struct {
	Secret []byte
	Logger *slog.Logger
}

// Authenticate parses the bearer token and stores the identity in context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid authorization header")
			return
		}

		ident, err := m.parseToken(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("reject bearer token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), ident)))
	})
}

// RequireAdmin rejects callers without the admin role. Must run after
// Authenticate.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
			return
		}
		if !ident.IsAdmin() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) parseToken(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.Secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidSubject
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Identity{}, jwt.ErrTokenInvalidSubject
	}

	email, _ := claims["email"].(string)
	roleRaw, _ := claims["role"].(string)
	role := Role(roleRaw)
	if role != RoleAdmin && role != RoleEmployee {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	return Identity{UserID: userID, Email: email, Role: role}, nil
}
