// Package utsavAuth is the session and authentication layer of the Sangh Utsav client:
// login, logout, session restoration and the read accessors the rest of the app uses
// to decide whether a user is signed in.
//
// A [Service] is built with [Builder] and is safe for concurrent use.
//
// # Storage tiers
//
// Sessions live in two tiers holding identical values under the keys
// session.KeyUserDetails and session.KeyResourcesAccess. The durable tier (Redis, or a
// preferences file) survives restarts and is the only source of truth. The mirror tier
// is process memory, read by the legacy synchronous accessors
// ([Service.IsAuthenticatedCached], [Service.CachedSession]); it may be empty after a
// cold start and is refreshed by every authoritative read.
//
// # Architecture boundaries
//
// The Service is the only writer of either tier. Request authorization
// (transport.Authorizer) and route gating (middleware.Guard) consume it through small
// interfaces and use the asynchronous, durable-tier path only.
//
// # What this package must NOT do
//
//   - Log or audit tokens and passwords.
//   - Store anything after a rejected login.
//   - Let a logout storage failure block navigation to the login route.
package utsavAuth
