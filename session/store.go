package session

import (
	"context"
	"errors"
)

const (
	// KeyUserDetails holds the JSON-encoded [Record].
	KeyUserDetails = "UserDetails"
	// KeyResourcesAccess holds the JSON-encoded [PermissionList].
	KeyResourcesAccess = "ResourcesAccess"
)

// ErrStoreUnavailable is returned when the backing storage cannot be reached or written.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrRecordCorrupt is returned when a stored record or permission list cannot be parsed.
var ErrRecordCorrupt = errors.New("session record corrupt")

// ErrValueCorrupt is returned by [SealedStore] when a stored value cannot be opened.
var ErrValueCorrupt = errors.New("sealed session value corrupt")

// Store is a string key/value tier. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
}

// SyncReader is implemented by stores that can answer reads without blocking on I/O.
// The legacy synchronous accessors only consult tiers that implement it.
type SyncReader interface {
	Peek(key string) (string, bool)
}
