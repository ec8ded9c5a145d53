package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-users-api/app/observability/metrics"
	"github.com/FACorreiaa/go-users-api/internal/api"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	ClaimsKey contextKey = "claims"
)

// Route identifies an endpoint by method and lower-case path.
type Route struct {
	Method string
	Path   string
}

// Authenticate is the global gate in front of every route. Requests without
// a bearer token pass only when (method, path) is in anonymous; a token that
// is present must verify, even on anonymous routes. Rejections short-circuit
// with the fixed 401 envelope.
func Authenticate(logger *slog.Logger, verifier TokenVerifier, anonymous []Route) func(next http.Handler) http.Handler {
	allowed := make(map[Route]struct{}, len(anonymous))
	for _, rt := range anonymous {
		allowed[Route{Method: strings.ToUpper(rt.Method), Path: normalizePath(rt.Path)}] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			tokenString, hasToken := bearerToken(r)
			if !hasToken {
				if _, ok := allowed[Route{Method: r.Method, Path: normalizePath(r.URL.Path)}]; ok {
					l.DebugContext(ctx, "Anonymous access to allow-listed route", slog.String("path", r.URL.Path))
					next.ServeHTTP(w, r)
					return
				}
				l.WarnContext(ctx, "Missing bearer token", slog.String("method", r.Method), slog.String("path", r.URL.Path))
				reject(w, r, "missing_token")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					reason = "expired_token"
				}
				l.WarnContext(ctx, "Token validation failed", slog.String("reason", reason), slog.Any("error", err))
				reject(w, r, reason)
				return
			}

			userID, _ := claims.UserID()
			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			l.DebugContext(ctx, "Authentication successful", slog.Int64("userID", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// normalizePath lower-cases p and drops a trailing slash so the allow-list
// agrees with the router, which strips it too.
func normalizePath(p string) string {
	p = strings.ToLower(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// Any other scheme, or an empty token, counts as no token.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(w http.ResponseWriter, r *http.Request, reason string) {
	metrics.Get().AuthGateRejectionsTotal.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
	api.Unauthorized(w, r)
}

// GetUserIDFromContext returns the user id attached by Authenticate.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok && userID > 0
}

func GetClaimsFromContext(ctx context.Context) (*types.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*types.Claims)
	return claims, ok
}

// WithUserID attaches an authenticated user id to ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
