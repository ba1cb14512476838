package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ParadojaDevs/ClimaGuru/internal/security/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", "climaguru-test", time.Hour, 24*time.Hour)
}

// staticDenylist marks a fixed set of token ids as revoked.
type staticDenylist map[string]bool

func (d staticDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	return d[jti], nil
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestPreflightAnsweredBeforeAuth(t *testing.T) {
	// Browsers never attach Authorization to a preflight; it must be
	// answered by the CORS layer, not rejected by the JWT layer.
	var called bool
	chain := CORSMiddleware([]string{"http://localhost:5173"})(
		JWTMiddleware(testTokenManager(), nil, testLogger())(okHandler(&called)),
	)

	r := httptest.NewRequest(http.MethodOptions, "/queries/tiempo-real", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if called {
		t.Error("preflight must not reach the inner handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Access-Control-Allow-Methods missing")
	}
}

func TestCORSOriginHeaders(t *testing.T) {
	var called bool
	chain := CORSMiddleware([]string{"https://app.example.com"})(okHandler(&called))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, r)

	if !called {
		t.Fatal("non-preflight request must pass through")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("disallowed origin must not be echoed, got %q", got)
	}
}

func TestJWTMiddlewareRejectsMissingToken(t *testing.T) {
	var called bool
	h := JWTMiddleware(testTokenManager(), nil, testLogger())(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queries/mis-consultas", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("unauthenticated request reached the handler")
	}
}

func TestJWTMiddlewarePublicPath(t *testing.T) {
	var called bool
	h := JWTMiddleware(testTokenManager(), nil, testLogger())(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("public path blocked: called=%v status=%d", called, rec.Code)
	}
}

func TestJWTMiddlewarePutsClaimsInContext(t *testing.T) {
	tm := testTokenManager()
	pair, err := tm.GeneratePair("user-1", "mariana")
	if err != nil {
		t.Fatalf("GeneratePair failed: %v", err)
	}

	var got *auth.Claims
	h := JWTMiddleware(tm, nil, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaimsFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/queries/mis-consultas", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got == nil || got.UserID != "user-1" {
		t.Errorf("claims not propagated: %+v", got)
	}
}

func TestJWTMiddlewareRejectsRevokedToken(t *testing.T) {
	tm := testTokenManager()
	pair, err := tm.GeneratePair("user-1", "mariana")
	if err != nil {
		t.Fatalf("GeneratePair failed: %v", err)
	}

	var called bool
	h := JWTMiddleware(tm, staticDenylist{pair.AccessJTI: true}, testLogger())(okHandler(&called))

	r := httptest.NewRequest(http.MethodGet, "/queries/mis-consultas", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("revoked token reached the handler")
	}
}
