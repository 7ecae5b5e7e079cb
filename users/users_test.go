package users

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := state.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	return NewStore(st)
}

// ============================================================================
// Create Tests
// ============================================================================

func TestCreateUser(t *testing.T) {
	s := newTestStore(t)

	u, err := s.Create("Ada Lovelace", "ada", "s3cret", RoleAdmin)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.ID == "" {
		t.Error("expected generated ID")
	}
	if u.Username != "ada" {
		t.Errorf("expected username ada, got %s", u.Username)
	}
	if u.Role != RoleAdmin {
		t.Errorf("expected role admin, got %s", u.Role)
	}
	if !u.Active {
		t.Error("expected new user to be active")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		userName string
		username string
		role     Role
	}{
		{name: "empty name", userName: "", username: "ada", role: RoleAdmin},
		{name: "empty username", userName: "Ada", username: "", role: RoleAdmin},
		{name: "username with space", userName: "Ada", username: "ada lovelace", role: RoleAdmin},
		{name: "username with dot", userName: "Ada", username: "ada.l", role: RoleAdmin},
		{name: "username with wildcard", userName: "Ada", username: "ada*", role: RoleAdmin},
		{name: "unknown role", userName: "Ada", username: "ada", role: Role("superuser")},
		{name: "empty role", userName: "Ada", username: "ada", role: Role("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.userName, tt.username, "x", tt.role)
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create("Ada", "ada", "x", RoleAdmin); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := s.Create("Another Ada", "ada", "y", RoleNode)
	if !errors.Is(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
}

// rowWriteDownStore fails user-row writes while letting the username
// index through, simulating a backend outage between the two writes.
type rowWriteDownStore struct {
	state.StateStore
	failing bool
}

func (s *rowWriteDownStore) Create(key string, value []byte) (uint64, error) {
	if s.failing && !strings.HasPrefix(key, "users.index.") {
		return 0, stderrors.New("bucket unavailable")
	}
	return s.StateStore.Create(key, value)
}

func TestCreateReleasesUsernameOnRowFailure(t *testing.T) {
	mem := state.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })
	st := &rowWriteDownStore{StateStore: mem, failing: true}
	s := NewStore(st)

	if _, err := s.Create("Ada", "ada", "x", RoleAdmin); err == nil {
		t.Fatal("expected Create to fail while the backend is down")
	}

	// The username is free again once the backend recovers.
	st.failing = false
	u, err := s.Create("Ada", "ada", "x", RoleAdmin)
	if err != nil {
		t.Fatalf("expected username to be reusable, got %v", err)
	}
	if _, err := s.GetByUsername("ada"); err != nil {
		t.Errorf("GetByUsername failed: %v", err)
	}
	if u.Username != "ada" {
		t.Errorf("expected username ada, got %s", u.Username)
	}
}

// ============================================================================
// Lookup Tests
// ============================================================================

func TestGetUser(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create("Node One", "node-1", "x", RoleNode)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Username != "node-1" || got.Role != RoleNode {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestGetUnknownUser(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("no-such-id")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetByUsername(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create("Ada", "ada", "x", RoleAdmin)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.GetByUsername("ada")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected ID %s, got %s", created.ID, got.ID)
	}

	if _, err := s.GetByUsername("nobody"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

// ============================================================================
// Deactivation Tests
// ============================================================================

func TestDeactivate(t *testing.T) {
	s := newTestStore(t)

	u, err := s.Create("Ada", "ada", "x", RoleAdmin)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Deactivate(u.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	// Deactivated users are invisible to lookups.
	if _, err := s.Get(u.ID); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND after deactivation, got %v", err)
	}
	if _, err := s.GetByUsername("ada"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND by username after deactivation, got %v", err)
	}

	// Deactivating twice behaves like an unknown user.
	if err := s.Deactivate(u.ID); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND on second deactivation, got %v", err)
	}

	// The username stays claimed.
	if _, err := s.Create("Other", "ada", "y", RoleNode); !errors.Is(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("expected username to remain claimed, got %v", err)
	}
}

// ============================================================================
// List Tests
// ============================================================================

func TestListUsers(t *testing.T) {
	s := newTestStore(t)

	if users, err := s.List(); err != nil || len(users) != 0 {
		t.Fatalf("expected empty list, got %v users, err %v", len(users), err)
	}

	admin, _ := s.Create("Ada", "ada", "x", RoleAdmin)
	node, _ := s.Create("Node One", "node-1", "y", RoleNode)
	retired, _ := s.Create("Node Two", "node-2", "z", RoleNode)
	if err := s.Deactivate(retired.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 active users, got %d", len(got))
	}

	ids := map[string]bool{}
	for _, u := range got {
		ids[u.ID] = true
	}
	if !ids[admin.ID] || !ids[node.ID] {
		t.Errorf("expected admin and node in list, got %v", ids)
	}
	if ids[retired.ID] {
		t.Error("deactivated user should not be listed")
	}
}
