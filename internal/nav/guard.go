package nav

import (
	"context"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

// Identity is the part of the auth state the guard needs.
type Identity interface {
	Known() bool
	// Valid reports whether the held identity can be used without asking
	// the gateway again.
	Valid() bool
	FetchUser(ctx context.Context) (*gateway.User, error)
}

type Guard struct {
	identity Identity
}

func NewGuard(identity Identity) *Guard {
	return &Guard{identity: identity}
}

// Check runs before every navigation to route. It fetches the identity when
// none is held or the held one has expired, and returns the path to redirect
// to, or "" to proceed.
func (g *Guard) Check(ctx context.Context, route Route) string {
	if !g.identity.Valid() {
		if _, err := g.identity.FetchUser(ctx); err != nil {
			logger.Error.Printf("Failed to fetch user before %s: %v", route.Name, err)
		}
	}

	if route.RequiresAuth && !g.identity.Known() {
		logger.Debug.Printf("Redirecting anonymous visitor away from %s", route.Name)
		return Home.Path
	}
	return ""
}

func (g *Guard) Wrap(route Route, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if to := g.Check(r.Context(), route); to != "" {
			http.Redirect(w, r, to, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Mount registers h on mux under route (plus suffix) behind the guard.
func Mount(mux *http.ServeMux, g *Guard, route Route, method, suffix string, h http.Handler) {
	mux.Handle(route.Pattern(method, suffix), g.Wrap(route, h))
}
