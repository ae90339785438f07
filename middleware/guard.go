package middleware

import (
	"context"
	"net/http"
)

// Authenticator answers the authoritative, asynchronous authentication check.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Navigator moves the application to a route.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// Decision is the outcome of one navigation attempt.
type Decision struct {
	Allow bool
	// Redirect is the route to go to instead, set when Allow is false.
	Redirect string
}

// Guard protects routes listed as protected in its table.
type Guard struct {
	auth       Authenticator
	routes     *RouteTable
	loginRoute string
	navigator  Navigator
	onDeny     func(ctx context.Context, route string)
}

// Option customises a Guard.
type Option func(*Guard)

// WithLoginRoute sets the redirect target. Defaults to "login".
func WithLoginRoute(route string) Option {
	return func(g *Guard) { g.loginRoute = NormalizeRoute(route) }
}

// WithNavigator sets the navigator used by [Guard.Navigate].
func WithNavigator(n Navigator) Option {
	return func(g *Guard) { g.navigator = n }
}

// WithDenyHook registers fn to run whenever a navigation is redirected.
func WithDenyHook(fn func(ctx context.Context, route string)) Option {
	return func(g *Guard) { g.onDeny = fn }
}

// NewGuard builds a Guard. A nil routes table means [DefaultRoutes].
func NewGuard(auth Authenticator, routes *RouteTable, opts ...Option) *Guard {
	if routes == nil {
		routes = DefaultRoutes()
	}
	g := &Guard{
		auth:       auth,
		routes:     routes,
		loginRoute: "login",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoginRoute returns the redirect target.
func (g *Guard) LoginRoute() string {
	return g.loginRoute
}

// Check decides whether navigation to path may proceed. Public routes are allowed
// without a check; protected routes make exactly one IsAuthenticated call.
func (g *Guard) Check(ctx context.Context, path string) Decision {
	if g.routes.IsPublic(path) {
		return Decision{Allow: true}
	}
	if g.auth != nil && g.auth.IsAuthenticated(ctx) {
		return Decision{Allow: true}
	}
	if g.onDeny != nil {
		g.onDeny(ctx, NormalizeRoute(path))
	}
	return Decision{Redirect: g.loginRoute}
}

// Navigate checks path and dispatches to the allowed route or the login route. With no
// navigator configured it only returns the decision.
func (g *Guard) Navigate(ctx context.Context, path string) (Decision, error) {
	d := g.Check(ctx, path)
	if g.navigator == nil {
		return d, nil
	}
	target := d.Redirect
	if d.Allow {
		target = NormalizeRoute(path)
	}
	return d, g.navigator.Navigate(ctx, target)
}

// Handler gates next: allowed requests pass through, others are redirected to the login
// route with 303 See Other.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Check(r.Context(), r.URL.Path)
		if !d.Allow {
			http.Redirect(w, r, "/"+d.Redirect, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession returns middleware treating every wrapped route as protected.
func RequireSession(auth Authenticator, loginPath string) func(http.Handler) http.Handler {
	g := NewGuard(auth, NewRouteTable(), WithLoginRoute(loginPath))
	return g.Handler
}
