package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errBadAuthHeader     = errors.New("invalid authorization header format")
	errBadClaims         = errors.New("invalid token claims")
)

// bearerClaims is what a valid token resolves to.
type bearerClaims struct {
	UserID string
	Role   string
}

// parseBearer validates the Authorization header and extracts the user
// claims. Shared by the strict admin path and the lenient shopper
// path, which differ only in what they do when this fails.
func parseBearer(r *http.Request, jwtSecret string) (*bearerClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingAuthHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errBadAuthHeader
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errBadClaims
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, errBadClaims
	}
	role, _ := claims["role"].(string)

	return &bearerClaims{UserID: userID, Role: role}, nil
}

// AuthMiddleware validates JWT tokens and extracts user claims. Used
// on the admin surface; shopper endpoints use ResolveHolder instead.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseBearer(r, jwtSecret)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				switch {
				case errors.Is(err, errMissingAuthHeader) || errors.Is(err, errBadAuthHeader):
					RespondWithError(w, http.StatusUnauthorized, err.Error())
				case errors.Is(err, jwt.ErrTokenExpired):
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				case errors.Is(err, errBadClaims):
					RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				default:
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)

			logger.Debug("User authenticated",
				zap.String("user_id", claims.UserID),
				zap.String("role", claims.Role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}
