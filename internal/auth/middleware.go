package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prn-tf/mediahost/internal/domain"
)

// ctxKey is the private context key type for authorization results.
type ctxKey struct{}

// Require builds a middleware that authorizes the request for the given
// right before the handler runs. On success the result is stored in the
// request context; on failure the gate's message and status are written and
// the chain stops.
func (g *Gate) Require(right domain.Right) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := g.Authorize(r.Context(), right, FromRequest(r))

			if f, ok := result.(Failure); ok {
				writeFailure(w, f)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOrAnonymous builds a middleware that authorizes the request for the
// given right when credentials are present, and lets credential-less requests
// through with no identity in the context. Used for routes with a configured
// anonymous fallback.
func (g *Gate) RequireOrAnonymous(right domain.Right) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromRequest(r)
			if p.Scheme == SchemeNone {
				next.ServeHTTP(w, r)
				return
			}

			result := g.Authorize(r.Context(), right, p)
			if f, ok := result.(Failure); ok {
				writeFailure(w, f)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated builds a middleware that only resolves the caller's
// identity, without demanding any particular right.
func (g *Gate) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := g.Identify(r.Context(), FromRequest(r))

			if f, ok := result.(Failure); ok {
				writeFailure(w, f)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the authorization result stored by Require.
func FromContext(ctx context.Context) (ClientAuthentication, bool) {
	result, ok := ctx.Value(ctxKey{}).(ClientAuthentication)
	return result, ok
}

// UserFromContext returns the authenticated user stored by Require.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	result, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	user, _, ok := Identity(result)
	return user, ok
}

// writeFailure serializes a Failure the same way the handlers serialize
// their errors.
func writeFailure(w http.ResponseWriter, f Failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.StatusCode)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": f.Message,
		"state": f.StatusCode,
	})
}
