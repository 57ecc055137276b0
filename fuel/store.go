/*
store.go - Key-value persistence interface

PURPOSE:
  Every log lives as one JSON document under a fixed key. The store is an
  opaque key-value map with last-write-wins semantics: there are no
  transactions and no concurrent writers.

KEY INTERFACES:
  KV:      Get / Set / Remove of raw JSON documents
  Watcher: Optional change feed for cross-process coherency

CHANGE FEED:
  A Watcher emits the key of every document written or removed, including
  writes made by other processes sharing the same backend (Redis). Consumers
  must re-read the key on notification rather than trust cached values.

IMPLEMENTATIONS:
  - fuel/store/memory.go: In-memory, with Watch
  - store/sqlite/sqlite.go: SQLite kv table
  - store/redis/redis.go: Redis strings + pub/sub Watch

SEE ALSO:
  - logbook/keys.go: The fixed keys
*/
package fuel

import "context"

// KV is the key-value store holding the persisted logs.
type KV interface {
	// Get returns the document under key. found is false when absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set replaces the document under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Resetter is implemented by stores that can drop every document in one
// call. Stores without it are cleared key by key.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Watcher is implemented by stores that can report changed keys. The
// channel is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}
