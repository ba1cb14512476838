package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ParadojaDevs/ClimaGuru/internal/security/auth"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// TokenDenylist answers whether a token id has been revoked before its
// natural expiry (logout). Backed by Redis in production.
type TokenDenylist interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// publicPaths need no bearer token. /auth/refresh is included because it
// carries a refresh token, which the handler validates itself.
var publicPaths = map[string]bool{
	"/auth/registro": true,
	"/auth/login":    true,
	"/auth/refresh":  true,
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
}

func JWTMiddleware(tm *auth.TokenManager, denylist TokenDenylist, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateAccess(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			if denylist != nil {
				revoked, err := denylist.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					log.Warn("denylist check failed, rejecting request",
						slog.String("error", err.Error()),
					)
					http.Error(w, `{"error":"auth unavailable"}`, http.StatusUnauthorized)
					return
				}
				if revoked {
					http.Error(w, `{"error":"token revoked"}`, http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			userID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
			}

			if !limiter.Allow(userID) {
				log.Warn("rate limit exceeded", slog.String("user_id", userID))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
