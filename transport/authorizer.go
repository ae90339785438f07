// Package transport attaches the current session's bearer token to outgoing HTTP
// requests.
//
// By default the session token replaces any Authorization header the caller set.
// Set [Authorizer.PreserveExisting] to let caller-supplied credentials win.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRequestIDHeader is set on outgoing requests that lack one.
	DefaultRequestIDHeader = "X-Request-ID"
)

// TokenSource resolves the bearer token for one request. ok is false when there is no
// authenticated session.
type TokenSource interface {
	BearerToken(ctx context.Context) (token string, ok bool)
}

// TokenSourceFunc adapts a function to [TokenSource].
type TokenSourceFunc func(ctx context.Context) (string, bool)

func (f TokenSourceFunc) BearerToken(ctx context.Context) (string, bool) {
	return f(ctx)
}

// Authorizer is an http.RoundTripper that sets "Authorization: Bearer <token>" on a
// clone of each request. The token is resolved independently for every request; there
// is no caching, coalescing or lock shared between requests.
type Authorizer struct {
	// Source supplies tokens. A nil Source forwards every request unmodified.
	Source TokenSource
	// Base performs the request. nil means http.DefaultTransport.
	Base http.RoundTripper
	// PreserveExisting leaves a caller-set Authorization header alone.
	PreserveExisting bool
	// RequestIDHeader is filled with a fresh uuid when absent. Empty disables it.
	RequestIDHeader string
}

// NewAuthorizer returns an Authorizer that overwrites Authorization and sets the
// default request-ID header.
func NewAuthorizer(source TokenSource, base http.RoundTripper) *Authorizer {
	return &Authorizer{
		Source:          source,
		Base:            base,
		RequestIDHeader: DefaultRequestIDHeader,
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is never mutated.
func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	token, hasToken := "", false
	if a.Source != nil && !(a.PreserveExisting && req.Header.Get("Authorization") != "") {
		token, hasToken = a.Source.BearerToken(req.Context())
		hasToken = hasToken && token != ""
	}
	needID := a.RequestIDHeader != "" && req.Header.Get(a.RequestIDHeader) == ""

	if !hasToken && !needID {
		return a.base().RoundTrip(req)
	}

	out := req.Clone(req.Context())
	if hasToken {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if needID {
		out.Header.Set(a.RequestIDHeader, uuid.NewString())
	}
	return a.base().RoundTrip(out)
}

func (a *Authorizer) base() http.RoundTripper {
	if a.Base != nil {
		return a.Base
	}
	return http.DefaultTransport
}

// NewClient returns an *http.Client whose requests pass through an Authorizer.
func NewClient(source TokenSource, base http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewAuthorizer(source, base),
		Timeout:   timeout,
	}
}
