package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return raw
}

func identityEcho(t *testing.T) (http.Handler, *Identity) {
	t.Helper()
	var captured Identity
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		captured = ident
		w.WriteHeader(http.StatusOK)
	})
	return h, &captured
}

func TestAuthenticateParsesIdentity(t *testing.T) {
	mw := Middleware{Secret: testSecret}
	next, captured := identityEcho(t)

	token := signToken(t, jwt.MapClaims{
		"sub":   "42",
		"email": "lead@vantage.example",
		"role":  "ADMIN",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.Authenticate(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(42), captured.UserID)
	require.Equal(t, "lead@vantage.example", captured.Email)
	require.True(t, captured.IsAdmin())
}

func TestAuthenticateRejections(t *testing.T) {
	mw := Middleware{Secret: testSecret}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not run")
	})

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + signToken(t, jwt.MapClaims{
			"sub": "7", "role": "EMPLOYEE", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{name: "unknown role", header: "Bearer " + signToken(t, jwt.MapClaims{
			"sub": "7", "role": "SUPERUSER", "exp": time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.Authenticate(next).ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	mw := Middleware{Secret: testSecret}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), Identity{UserID: 9, Role: RoleEmployee}))
	rec := httptest.NewRecorder()
	mw.RequireAdmin(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), Identity{UserID: 1, Role: RoleAdmin}))
	rec = httptest.NewRecorder()
	mw.RequireAdmin(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	mw.RequireAdmin(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
