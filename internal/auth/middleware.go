package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sentineld/avengine/internal/audit"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware validates the Bearer JWT on every protected request
// and attaches the resolved admin user to the request context.
func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Authorization header must be in format 'Bearer <token>'", http.StatusUnauthorized)
			return
		}

		user, err := s.ValidateToken(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				http.Error(w, "user not found", http.StatusUnauthorized)
			} else {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
			}
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoleMiddleware rejects requests from users without
// requiredRole; the "admin" role always passes.
func RequireRoleMiddleware(requiredRole string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(userContextKey).(*audit.AdminUser)
		if !ok || user == nil {
			http.Error(w, "user not authenticated", http.StatusUnauthorized)
			return
		}
		if user.Role != requiredRole && user.Role != "admin" {
			http.Error(w, "insufficient permissions", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the authenticated admin user stored by
// AuthMiddleware.
func GetUserFromContext(ctx context.Context) (*audit.AdminUser, error) {
	user, ok := ctx.Value(userContextKey).(*audit.AdminUser)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}
