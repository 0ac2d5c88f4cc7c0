package middleware

import (
	"context"
	"net/http"
	"strings"

	"task-manager/logging"
	"task-manager/models"
	"task-manager/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const authUserKey contextKey = "authUser"

// AuthUser is the caller identity attached to every authenticated request.
type AuthUser struct {
	ID   primitive.ObjectID
	Role string
}

// UserFromContext returns the caller identity set by JWTAuthMiddleware.
func UserFromContext(ctx context.Context) (AuthUser, bool) {
	user, ok := ctx.Value(authUserKey).(AuthUser)
	return user, ok
}

// ContextWithUser is exposed for handler tests.
func ContextWithUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, authUserKey, user)
}

// JWTAuthMiddleware validates the bearer token and threads the caller's
// id and role through the request context.
func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logging.Logger.Warnf("Event ID: JWT_AUTH_MISSING_HEADER, Description: Authorization header missing for request to %s %s", r.Method, r.URL.Path)
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateToken(tokenStr)
		if err != nil {
			logging.Logger.Warnf("Event ID: JWT_AUTH_INVALID_TOKEN, Description: Invalid token provided for request to %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			logging.Logger.Warnf("Event ID: JWT_AUTH_BAD_SUBJECT, Description: Token carried malformed user id %q", claims.UserID)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := ContextWithUser(r.Context(), AuthUser{ID: userID, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly rejects callers without the admin role. Must run after
// JWTAuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		if user.Role != models.RoleAdmin {
			logging.Logger.Warnf("Event ID: ADMIN_ACCESS_DENIED, Description: User %s with role %q attempted %s %s", user.ID.Hex(), user.Role, r.Method, r.URL.Path)
			http.Error(w, "Access forbidden: admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
