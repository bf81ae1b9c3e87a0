package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

var claimsKey contextKey

// HTTPMiddleware rejects requests without a valid Bearer token and
// stores the validated claims on the request context.
func (v *JWTValidator) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "Missing Authorization header")
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header {
			unauthorized(w, "Invalid Authorization format, expected: Bearer <token>")
			return
		}

		claims, err := v.ValidateToken(r.Context(), raw)
		if err != nil {
			unauthorized(w, "Unauthorized: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// ClaimsFrom returns the claims HTTPMiddleware stored on the context,
// or nil when the request was not authenticated.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}
