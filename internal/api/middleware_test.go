package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dispatcher@example.com",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func authProbe(t *testing.T, mutate func(*http.Request)) int {
	t.Helper()
	m := NewMiddleware(testSecret, logger.NewNop())
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil)
	mutate(req)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAuthValidToken(t *testing.T) {
	token := signToken(t, testSecret, time.Now().Add(time.Hour))
	code := authProbe(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	token := signToken(t, testSecret, time.Now().Add(time.Hour))
	code := authProbe(t, func(r *http.Request) {
		q := r.URL.Query()
		q.Set("token", token)
		r.URL.RawQuery = q.Encode()
	})
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	code := authProbe(t, func(r *http.Request) {})
	if code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, time.Now().Add(-time.Hour))
	code := authProbe(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

func TestRequireAuthWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", time.Now().Add(time.Hour))
	code := authProbe(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}
