// Package middleware gates navigation to protected views on the session's
// authentication state.
//
// # Guards
//
//   - [Guard.Check] decides one navigation attempt against a [RouteTable].
//   - [Guard.Navigate] decides and then dispatches to a [Navigator].
//   - [Guard.Handler] and [RequireSession] adapt the same decision to net/http,
//     redirecting to the login route with 303 See Other.
//
// # Architecture boundaries
//
// Every protected decision makes exactly one asynchronous authentication check
// ([Authenticator.IsAuthenticated]). Results are never cached between navigations and
// the guard never polls.
//
// # What this package must NOT do
//
//   - Read session storage directly or consult the synchronous mirror.
//   - Parse, refresh or attach tokens.
//   - Decide anything beyond allow or redirect-to-login.
package middleware
