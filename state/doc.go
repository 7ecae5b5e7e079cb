// Package state provides durable key-value storage for the task store.
//
// The StateStore interface enables key-value storage with revision-checked
// conditional writes and advisory locking across backends (NATS JetStream
// KV, in-memory). The entity stores in users, ledger, and lifecycle are
// built on this layer; revisions give them the per-row read-modify-write
// atomicity the engine requires under concurrent callers.
//
// # Key Features
//
//   - Key-value operations: Get, Put, Delete with optional TTL
//   - Conditional writes: Create (put-if-absent) and Update (revision CAS)
//   - Advisory locks: Acquire/release with automatic expiry
//   - Multiple backends: NATS JetStream KV (production), in-memory (testing)
//
// # Usage
//
//	// Production: NATS JetStream KV
//	conn, _ := nats.Connect("nats://localhost:4222")
//	store, _ := state.NewNATSStore(state.NATSStoreConfig{
//	    Conn:   conn,
//	    Bucket: "leasekit-state",
//	})
//
//	// Testing: In-memory
//	store := state.NewMemoryStore()
//
//	// Conditional update (read-check-write)
//	kv, _ := store.GetKeyValue("tasks.task.t1")
//	// ... decide based on kv.Value ...
//	_, err := store.Update("tasks.task.t1", newRow, kv.Revision)
//	if err == state.ErrRevisionMismatch {
//	    // another writer won; surface a conflict
//	}
//
//	// Advisory locking (reaper sweep serialization)
//	lock, _ := store.Lock("reaper.sweep", 30*time.Second)
//	defer lock.Unlock()
//	// ... critical section ...
package state
