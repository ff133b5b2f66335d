package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/estimax/estimax-api/internal/pkg/jwt"
	"github.com/estimax/estimax-api/internal/pkg/response"
)

type contextKey string

const (
	ContextAdminID    contextKey = "admin_id"
	ContextAdminEmail contextKey = "admin_email"
)

// AuthMiddleware validates the Bearer token and injects admin identity
// into the request context.
func AuthMiddleware(tokens *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				response.Unauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextAdminID, claims.AdminID)
			ctx = context.WithValue(ctx, ContextAdminEmail, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminID extracts the authenticated admin id from the context
func GetAdminID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ContextAdminID).(uuid.UUID)
	return id, ok
}
