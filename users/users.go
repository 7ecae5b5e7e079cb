// Package users provides the caller directory for the lifecycle engine.
//
// Every operation on a task is performed by a user, either an admin who
// administers the task pool or a node that executes leased work. The
// engine consults a user's role to decide what it may do and its ID to
// scope what it may see.
package users

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/state"
)

// Role determines what a user may do.
type Role string

const (
	// RoleAdmin may create, edit, assign, and delete tasks, and sees
	// every task regardless of assignment.
	RoleAdmin Role = "admin"

	// RoleNode executes leased work. A node only sees and transitions
	// tasks assigned to it.
	RoleNode Role = "node"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleNode
}

// User is a directory entry.
type User struct {
	// ID uniquely identifies the user.
	ID string `json:"id"`

	// Name is a human-readable display name.
	Name string `json:"name"`

	// Username is the unique login identifier.
	Username string `json:"username"`

	// Secret is the user's shared credential. Stored as-is; hashing is
	// the responsibility of whoever provisions the entry.
	Secret string `json:"secret,omitempty"`

	// Role determines the user's permissions.
	Role Role `json:"role"`

	// Active is false once the user has been deactivated. Inactive
	// users cannot perform operations.
	Active bool `json:"active"`

	// CreatedAt is when the user was provisioned.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the user was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	userKeyPrefix     = "users."
	usernameKeyPrefix = "users.index.username."
)

// Store persists users in a StateStore.
//
// Username uniqueness is enforced with an index key created via the
// store's put-if-absent primitive, so two concurrent provisions of the
// same username cannot both succeed.
type Store struct {
	store state.StateStore
}

// NewStore creates a user store backed by the given state store.
func NewStore(st state.StateStore) *Store {
	return &Store{store: st}
}

// Create provisions a new user. The ID is generated. Returns
// ALREADY_EXISTS if the username is taken.
func (s *Store) Create(name, username, secret string, role Role) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidInput("user name is required")
	}
	if !role.Valid() {
		return nil, errors.InvalidInput("role must be admin or node",
			errors.WithMetadata("role", string(role)))
	}

	now := time.Now().UTC()
	u := &User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  username,
		Secret:    secret,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Claim the username before writing the row. If the claim fails,
	// no row exists and nothing needs cleanup.
	if _, err := s.store.Create(usernameKeyPrefix+username, []byte(u.ID)); err != nil {
		if err == state.ErrKeyExists {
			return nil, errors.AlreadyExists("username is already taken",
				errors.WithMetadata("username", username))
		}
		return nil, errors.Wrap(err, "claiming username")
	}

	data, err := json.Marshal(u)
	if err != nil {
		return nil, errors.Wrap(err, "encoding user")
	}
	if _, err := s.store.Create(userKeyPrefix+u.ID, data); err != nil {
		// Release the claim so the username is not stranded without a
		// backing row. Best effort; a leftover claim only blocks reuse.
		s.store.Delete(usernameKeyPrefix + username)
		return nil, errors.Wrap(err, "storing user")
	}

	return u, nil
}

// Get retrieves a user by ID. Returns NOT_FOUND if absent or inactive.
func (s *Store) Get(id string) (*User, error) {
	if id == "" {
		return nil, errors.InvalidInput("user ID is required")
	}

	data, err := s.store.Get(userKeyPrefix + id)
	if err != nil {
		if err == state.ErrNotFound {
			return nil, errors.NotFound("user not found", errors.WithMetadata("user_id", id))
		}
		return nil, errors.Wrap(err, "loading user")
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, errors.New(errors.ErrCodeCorruption, "stored user failed to decode",
			errors.WithCause(err), errors.WithMetadata("user_id", id))
	}
	if !u.Active {
		return nil, errors.NotFound("user not found", errors.WithMetadata("user_id", id))
	}
	return &u, nil
}

// GetByUsername retrieves a user by username.
func (s *Store) GetByUsername(username string) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	id, err := s.store.Get(usernameKeyPrefix + username)
	if err != nil {
		if err == state.ErrNotFound {
			return nil, errors.NotFound("user not found", errors.WithMetadata("username", username))
		}
		return nil, errors.Wrap(err, "resolving username")
	}
	return s.Get(string(id))
}

// Deactivate soft-disables a user. The username stays claimed so it
// cannot be silently reused for a different identity.
func (s *Store) Deactivate(id string) error {
	kv, err := s.store.GetKeyValue(userKeyPrefix + id)
	if err != nil {
		if err == state.ErrNotFound {
			return errors.NotFound("user not found", errors.WithMetadata("user_id", id))
		}
		return errors.Wrap(err, "loading user")
	}

	var u User
	if err := json.Unmarshal(kv.Value, &u); err != nil {
		return errors.New(errors.ErrCodeCorruption, "stored user failed to decode",
			errors.WithCause(err), errors.WithMetadata("user_id", id))
	}
	if !u.Active {
		return errors.NotFound("user not found", errors.WithMetadata("user_id", id))
	}

	u.Active = false
	u.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&u)
	if err != nil {
		return errors.Wrap(err, "encoding user")
	}
	if _, err := s.store.Update(userKeyPrefix+id, data, kv.Revision); err != nil {
		if err == state.ErrRevisionMismatch {
			return errors.Conflict("user was modified concurrently",
				errors.WithMetadata("user_id", id))
		}
		return errors.Wrap(err, "storing user")
	}
	return nil
}

// List returns all active users.
func (s *Store) List() ([]User, error) {
	keys, err := s.store.Keys(userKeyPrefix + "*")
	if err != nil {
		return nil, errors.Wrap(err, "listing users")
	}

	var out []User
	for _, key := range keys {
		if strings.HasPrefix(key, usernameKeyPrefix) {
			continue
		}
		data, err := s.store.Get(key)
		if err != nil {
			if err == state.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "loading user")
		}
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, errors.New(errors.ErrCodeCorruption, "stored user failed to decode",
				errors.WithCause(err), errors.WithMetadata("key", key))
		}
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func validateUsername(username string) error {
	if username == "" {
		return errors.InvalidInput("username is required")
	}
	if strings.ContainsAny(username, " .*") {
		return errors.InvalidInput("username may not contain spaces, dots, or wildcards",
			errors.WithMetadata("username", username))
	}
	return nil
}
