package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{}

// FromContext returns the authenticated caller, if any.
func FromContext(ctx context.Context) (TokenData, bool) {
	td, ok := ctx.Value(ctxKey{}).(TokenData)
	return td, ok
}

// WithTokenData is used by tests to inject a caller identity.
func WithTokenData(ctx context.Context, td TokenData) context.Context {
	return context.WithValue(ctx, ctxKey{}, td)
}

// Middleware resolves the Authorization bearer header and stores the caller
// identity in the request context. Requests without a valid token get a 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			unauthorized(w)
			return
		}
		td, err := s.Authenticate(raw)
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTokenData(r.Context(), td)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"could not validate credentials"}`))
}
