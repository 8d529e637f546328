package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type callerKey struct{}

// CallerResolver maps a bearer token to the name of the calling client.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (string, error)
}

// StaticTokens resolves callers from a fixed token table.
type StaticTokens map[string]string

// ResolveCaller implements CallerResolver.
func (s StaticTokens) ResolveCaller(_ context.Context, token string) (string, error) {
	for known, caller := range s {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return caller, nil
		}
	}
	return "", ErrUnauthorized
}

// CallerFromContext returns the authenticated caller, if present.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey{}).(string)
	return caller, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			caller, err := resolver.ResolveCaller(r.Context(), token)
			if err != nil || caller == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
