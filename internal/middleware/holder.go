package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SessionKeyKey carries the anonymous session key in the context.
	SessionKeyKey contextKey = "session_key"

	// SessionKeyHeader is how anonymous shoppers carry identity across
	// requests. If absent the server generates one and echoes it back.
	SessionKeyHeader = "X-Session-Key"
)

// ResolveHolder resolves who is shopping: a valid Bearer token yields
// the user id, otherwise the session key header, otherwise a freshly
// generated key echoed back in the response. Unlike AuthMiddleware an
// invalid or missing token is not an error here; the request simply
// proceeds anonymously.
func ResolveHolder(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if claims, err := parseBearer(r, jwtSecret); err == nil {
				ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			} else if !errors.Is(err, errMissingAuthHeader) {
				logger.Debug("Ignoring invalid bearer token on shopper endpoint", zap.Error(err))
			}

			sessionKey := r.Header.Get(SessionKeyHeader)
			if sessionKey == "" {
				sessionKey = uuid.New().String()
			}
			ctx = context.WithValue(ctx, SessionKeyKey, sessionKey)
			w.Header().Set(SessionKeyHeader, sessionKey)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionKey extracts the anonymous session key from the context.
func GetSessionKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(SessionKeyKey).(string)
	return key, ok
}
