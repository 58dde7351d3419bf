package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/prudhvinik1/sketchsync/internal/services"
)

type contextKey string

const identityContextKey contextKey = "identity"

// RequireIdentity validates the bearer token and stashes the caller's
// identity claims in the request context. Every session route sits behind
// it; the author ID scoping stroke appends comes from here, never from the
// request body.
func RequireIdentity(identity *services.IdentityService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := identity.VerifyToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFrom(ctx context.Context) *services.IdentityClaims {
	claims, _ := ctx.Value(identityContextKey).(*services.IdentityClaims)
	return claims
}
