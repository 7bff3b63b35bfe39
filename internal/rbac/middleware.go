package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nileharvest/backoffice/internal/shared"
)

// ActorSource resolves the acting employee for a session email.
type ActorSource interface {
	ActorByEmail(ctx context.Context, email string) (Actor, error)
}

// Middleware wires capability checks into HTTP handlers.
type Middleware struct {
	Source ActorSource
	Logger *slog.Logger
}

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// ActorFromContext extracts the actor placed by RequireAuthenticated.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}

// RequireAuthenticated resolves the session user into an Actor and stores it
// in the request context. Requests without a logged-in session are rejected.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.resolveActor(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireCapability ensures the current actor satisfies the capability.
func (m Middleware) RequireCapability(cap Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				if actor, ok = m.resolveActor(r); !ok {
					http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
					return
				}
				r = r.WithContext(ContextWithActor(r.Context(), actor))
			}
			if !HasCapability(actor, cap) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFinance gates the finance-stage endpoints using the legacy
// finance capability rules.
func (m Middleware) RequireFinance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			if actor, ok = m.resolveActor(r); !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			r = r.WithContext(ContextWithActor(r.Context(), actor))
		}
		if !HasFinanceCapability(actor) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) resolveActor(r *http.Request) (Actor, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Actor{}, false
	}
	email := strings.TrimSpace(sess.User())
	if email == "" {
		return Actor{}, false
	}
	actor, err := m.Source.ActorByEmail(r.Context(), email)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("resolve actor", slog.String("email", email), slog.Any("error", err))
		}
		return Actor{}, false
	}
	return actor, true
}
