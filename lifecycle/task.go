package lifecycle

import (
	"time"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/users"
)

// Status represents a task's position in its lifecycle.
type Status string

const (
	// StatusPending means the task is leased but work has not started.
	StatusPending Status = "pending"

	// StatusInProgress means the assigned node has started work.
	StatusInProgress Status = "in_progress"

	// StatusCompleted means the node finished the work. Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed means the work failed or the lease expired. Terminal.
	StatusFailed Status = "failed"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions is the directed status graph. Self-loops are not stored;
// equal-status changes short-circuit as no-ops before this is consulted.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether the edge (from, to) is in the graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is one unit of leased work.
type Task struct {
	// ID uniquely identifies the task. Immutable.
	ID string `json:"id"`

	// Name is a short human-readable title.
	Name string `json:"name"`

	// Details is an opaque descriptive payload.
	Details string `json:"details"`

	// AssignedNodeID is the node currently holding the lease.
	AssignedNodeID string `json:"assigned_node_id"`

	// Status is the task's lifecycle position.
	Status Status `json:"status"`

	// LockedAt is the lease deadline. A non-terminal task whose
	// deadline has passed is eligible for expiry.
	LockedAt time.Time `json:"locked_at"`

	// Active is false once the task has been soft-deleted. Inactive
	// tasks are invisible to every normal lookup.
	Active bool `json:"active"`

	// CreatedAt is when the task was created. Primary ordering key.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// revision is the store revision the task was read at; conditional
	// writes compare against it. Not serialized.
	revision uint64
}

// Expired reports whether the lease deadline has passed relative to
// now. Terminal tasks never expire.
func (t *Task) Expired(now time.Time) bool {
	return !t.Status.Terminal() && t.LockedAt.Before(now)
}

// Actor identifies the already-authenticated caller of an engine
// operation. The engine trusts both fields as verified upstream.
type Actor struct {
	// ID is the caller's user ID.
	ID string

	// Role determines what the caller may do.
	Role users.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == users.RoleAdmin
}

func (a Actor) validate() error {
	if a.ID == "" {
		return errors.InvalidInput("actor ID is required")
	}
	if !a.Role.Valid() {
		return errors.InvalidInput("actor role must be admin or node",
			errors.WithMetadata("role", string(a.Role)))
	}
	return nil
}
