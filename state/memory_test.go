package state

import (
	"sync"
	"testing"
	"time"
)

// ============================================================================
// LEVEL 1: Unit Tests — Basic Get/Put/Delete, lock acquire/release
// ============================================================================

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get("nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	key := "test.key"
	value := []byte("test-value")

	if err := s.Put(key, value, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if string(got) != string(value) {
		t.Errorf("expected %s, got %s", value, got)
	}
}

func TestMemoryStore_GetKeyValue(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	key := "test.key"
	value := []byte("test-value")

	if err := s.Put(key, value, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	kv, err := s.GetKeyValue(key)
	if err != nil {
		t.Fatalf("GetKeyValue failed: %v", err)
	}

	if kv.Key != key {
		t.Errorf("expected key %s, got %s", key, kv.Key)
	}
	if string(kv.Value) != string(value) {
		t.Errorf("expected value %s, got %s", value, kv.Value)
	}
	if kv.Revision == 0 {
		t.Error("expected non-zero revision")
	}
	if kv.Created.IsZero() || kv.Modified.IsZero() {
		t.Error("expected created/modified timestamps to be set")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("a.b", []byte("v"), 0)
	if err := s.Delete("a.b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("a.b"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing key is not an error
	if err := s.Delete("a.b"); err != nil {
		t.Errorf("delete of missing key should be nil, got %v", err)
	}
}

func TestMemoryStore_InvalidKeys(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	bad := []string{"", "has space", ".leading", "trailing."}
	for _, key := range bad {
		if err := s.Put(key, []byte("v"), 0); err != ErrInvalidKey {
			t.Errorf("Put(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("ephemeral", []byte("v"), 20*time.Millisecond)

	if _, err := s.Get("ephemeral"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := s.Get("ephemeral"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after TTL, got %v", err)
	}
}

// ============================================================================
// LEVEL 2: Conditional writes — Create and revision-checked Update
// ============================================================================

func TestMemoryStore_Create(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	rev, err := s.Create("tasks.task.t1", []byte("row"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rev == 0 {
		t.Error("expected non-zero revision from Create")
	}

	// Second create of the same key must fail
	_, err = s.Create("tasks.task.t1", []byte("other"))
	if err != ErrKeyExists {
		t.Errorf("expected ErrKeyExists, got %v", err)
	}
}

func TestMemoryStore_Update_RevisionCheck(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	rev, err := s.Create("tasks.task.t1", []byte("v1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Update with the correct revision succeeds
	rev2, err := s.Update("tasks.task.t1", []byte("v2"), rev)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if rev2 <= rev {
		t.Errorf("expected revision to advance, got %d -> %d", rev, rev2)
	}

	// Update with the stale revision fails
	_, err = s.Update("tasks.task.t1", []byte("v3"), rev)
	if err != ErrRevisionMismatch {
		t.Errorf("expected ErrRevisionMismatch, got %v", err)
	}

	// Value must be the successful writer's value
	got, _ := s.Get("tasks.task.t1")
	if string(got) != "v2" {
		t.Errorf("expected v2, got %s", got)
	}
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Update("missing.key", []byte("v"), 1)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentUpdate_OneWinner(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	rev, err := s.Create("row", []byte("start"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Update("row", []byte("won"), rev); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winning update, got %d", winners)
	}
}

// ============================================================================
// LEVEL 3: Keys, locks, close semantics
// ============================================================================

func TestMemoryStore_KeysPattern(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("tasks.task.a", []byte("1"), 0)
	s.Put("tasks.task.b", []byte("2"), 0)
	s.Put("users.user.c", []byte("3"), 0)

	keys, err := s.Keys("tasks.task.*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 task keys, got %d: %v", len(keys), keys)
	}

	all, _ := s.Keys("*")
	if len(all) != 3 {
		t.Errorf("expected 3 keys total, got %d", len(all))
	}
}

func TestMemoryStore_Lock(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	lock, err := s.Lock("reaper.sweep", time.Second)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Second acquire should fail while held
	if _, err := s.Lock("reaper.sweep", time.Second); err != ErrLockHeld {
		t.Errorf("expected ErrLockHeld, got %v", err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	// Re-acquire after release
	lock2, err := s.Lock("reaper.sweep", time.Second)
	if err != nil {
		t.Fatalf("re-Lock failed: %v", err)
	}
	lock2.Unlock()

	// Double unlock
	if err := lock2.Unlock(); err != ErrLockNotHeld {
		t.Errorf("expected ErrLockNotHeld on double unlock, got %v", err)
	}
}

func TestMemoryStore_LockExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Lock("short", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	// Expired lock can be re-acquired
	lock2, err := s.Lock("short", time.Second)
	if err != nil {
		t.Fatalf("expected expired lock to be acquirable, got %v", err)
	}
	lock2.Unlock()
}

func TestMemoryStore_OperationsAfterClose(t *testing.T) {
	s := NewMemoryStore()
	s.Close()

	if _, err := s.Get("k.v"); err != ErrClosed {
		t.Errorf("Get after close: expected ErrClosed, got %v", err)
	}
	if err := s.Put("k.v", []byte("x"), 0); err != ErrClosed {
		t.Errorf("Put after close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Create("k.v", []byte("x")); err != ErrClosed {
		t.Errorf("Create after close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Update("k.v", []byte("x"), 1); err != ErrClosed {
		t.Errorf("Update after close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Keys("*"); err != ErrClosed {
		t.Errorf("Keys after close: expected ErrClosed, got %v", err)
	}

	// Double close is safe
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	value := []byte("original")
	s.Put("iso", value, 0)

	// Mutating the caller's slice must not affect the stored copy
	value[0] = 'X'

	got, _ := s.Get("iso")
	if string(got) != "original" {
		t.Errorf("stored value mutated externally: %s", got)
	}

	// Mutating the returned slice must not affect the stored copy
	got[0] = 'Y'
	again, _ := s.Get("iso")
	if string(again) != "original" {
		t.Errorf("stored value mutated via returned slice: %s", again)
	}
}
