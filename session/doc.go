// Package session provides the dual-tier persistence used by the Sangh Utsav client:
// a durable tier that survives restarts and a process-scoped mirror tier read by
// legacy synchronous call sites.
//
// # Storage layout
//
// Both tiers hold the same two string values under fixed keys: [KeyUserDetails]
// (a JSON-encoded [Record]) and [KeyResourcesAccess] (a JSON-encoded [PermissionList]).
// Adapters ([RedisStore], [FileStore], [MemoryStore], [SealedStore]) are interchangeable
// behind [Store].
//
// # Architecture boundaries
//
// This package owns the [Store] contract, its adapters and the record codec. It does NOT
// talk to the backend, decide whether a session is still valid, or perform navigation.
// Those responsibilities belong to the Service in the root package.
//
// # What this package must NOT do
//
//   - Import utsavAuth, transport or middleware (no upward imports).
//   - Log or otherwise expose bearer tokens.
package session
