package middleware

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// RouteTable classifies top-level routes as public or protected. Routes it has never
// heard of are protected.
type RouteTable struct {
	mu        sync.RWMutex
	public    map[string]struct{}
	protected map[string]struct{}
}

// NewRouteTable returns an empty table in which every route is protected.
func NewRouteTable() *RouteTable {
	return &RouteTable{
		public:    make(map[string]struct{}),
		protected: make(map[string]struct{}),
	}
}

// DefaultRoutes returns the Sangh Utsav app's route table.
func DefaultRoutes() *RouteTable {
	return NewRouteTable().
		Public("", "login", "register", "logout", "yatriks", "leaderboard").
		Protect(
			"dashboard", "personalinformation", "dailytasks", "tentinfo", "roominfo",
			"travelinfo", "businfo", "corporateaccount", "events", "mumbai", "pune",
			"profile", "patrikalekhan", "jainconcert", "quizes", "useraccount",
			"createuseraccount", "createcorporateaccount", "uploaddoc", "labdetails",
			"healthScore",
		)
}

// Public marks routes as reachable without a session.
func (t *RouteTable) Public(routes ...string) *RouteTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range routes {
		r = NormalizeRoute(r)
		delete(t.protected, r)
		t.public[r] = struct{}{}
	}
	return t
}

// Protect marks routes as requiring a session.
func (t *RouteTable) Protect(routes ...string) *RouteTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range routes {
		r = NormalizeRoute(r)
		delete(t.public, r)
		t.protected[r] = struct{}{}
	}
	return t
}

// IsPublic reports whether path's top-level route is public.
func (t *RouteTable) IsPublic(path string) bool {
	route := NormalizeRoute(path)
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.public[route]
	return ok
}

// Known reports whether path's top-level route was registered either way.
func (t *RouteTable) Known(path string) bool {
	route := NormalizeRoute(path)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.public[route]; ok {
		return true
	}
	_, ok := t.protected[route]
	return ok
}

// Routes returns the registered routes, sorted.
func (t *RouteTable) Routes() (public, protected []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for r := range t.public {
		public = append(public, r)
	}
	for r := range t.protected {
		protected = append(protected, r)
	}
	sort.Strings(public)
	sort.Strings(protected)
	return public, protected
}

// NormalizeRoute reduces a path or URL to its first segment: "/dashboard/today?x=1"
// becomes "dashboard". Matching is case-sensitive.
func NormalizeRoute(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
