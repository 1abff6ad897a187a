package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/cccs/finance-portal/internal/services"
)

type contextKey string

const claimsKey contextKey = "claims"

var (
	redisClient *redis.Client
	logger      = zap.NewNop()
)

// InitAuthMiddleware wires the token blacklist. A nil client disables
// revocation checks.
func InitAuthMiddleware(client *redis.Client, l *zap.Logger) {
	redisClient = client
	if l != nil {
		logger = l.Named("auth")
	}
}

// AuthMiddleware verifies the bearer token and stores its claims on the
// request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		claims, err := services.ParseToken(parts[1])
		if err != nil {
			logger.Debug("rejected token", zap.Error(err))
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		if redisClient != nil {
			revoked, err := redisClient.Exists(r.Context(), services.BlacklistKey(claims.ID)).Result()
			if err != nil {
				logger.Error("blacklist lookup failed", zap.Error(err))
				services.SendErrorResponse(w, "Unable to verify session", http.StatusUnauthorized, nil)
				return
			}
			if revoked > 0 {
				services.SendErrorResponse(w, "Token has been revoked", http.StatusUnauthorized, nil)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole rejects sessions that do not carry role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
				return
			}
			if claims.Role != role {
				services.SendErrorResponse(w, "Insufficient permissions", http.StatusForbidden, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.Claims)
	return claims, ok && claims != nil
}
