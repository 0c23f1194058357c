package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/satriadhikara/dock/internal/api"
)

type contextKey string

const OwnerIDKey contextKey = "owner_id"

// OwnerResolver maps a session token (possibly empty) to an owner ID.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, token string) (string, error)
}

// SessionAuth resolves the caller's owner ID from a bearer session token.
// Requests without a token are only let through when the resolver accepts
// them (anonymous owner configured).
func SessionAuth(resolver OwnerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				if !strings.HasPrefix(authHeader, "Bearer ") {
					api.Error(w, http.StatusUnauthorized, "invalid authorization format")
					return
				}
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			ownerID, err := resolver.ResolveOwner(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOwnerID returns the resolved owner ID from context.
func GetOwnerID(ctx context.Context) string {
	ownerID, _ := ctx.Value(OwnerIDKey).(string)
	return ownerID
}
