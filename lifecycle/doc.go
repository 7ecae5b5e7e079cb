// Package lifecycle implements the task lease lifecycle engine.
//
// Tasks are units of work leased to worker nodes. The engine enforces
// the status state machine, lease expiry, assignment rules, and an
// append-only audit trail of every status and ownership change.
//
// # Basic Usage
//
// Create an engine over a state store and a user directory:
//
//	store := state.NewMemoryStore()
//	dir := users.NewStore(store)
//	engine := lifecycle.New(lifecycle.Config{Store: store, Users: dir})
//
//	admin := lifecycle.Actor{ID: adminUser.ID, Role: users.RoleAdmin}
//	task, err := engine.Create(admin, lifecycle.CreateRequest{
//	    Name:           "nightly backup",
//	    Details:        "full snapshot of the primary volume",
//	    AssignedNodeID: node.ID,
//	    LockedAt:       time.Now().Add(time.Hour),
//	})
//
//	// The assigned node drives the task through its lifecycle.
//	worker := lifecycle.Actor{ID: node.ID, Role: users.RoleNode}
//	engine.ChangeStatus(worker, task.ID, lifecycle.StatusInProgress)
//	engine.ChangeStatus(worker, task.ID, lifecycle.StatusCompleted)
//
// # State Machine
//
// Status moves only along these edges:
//
//	pending     → in_progress
//	in_progress → completed, failed
//
// completed and failed are terminal. Any other edge fails with
// INVALID_TRANSITION. Repeating the current status is a no-op.
//
// # Leases
//
// LockedAt is the lease deadline. Once it passes, a non-terminal task
// can no longer be transitioned by its node (LEASE_EXPIRED) and the
// reaper will reclaim it as failed. Reassignment via Assign resets the
// task to pending regardless of status or expiry.
//
// # Concurrency
//
// Every mutation is a conditional write keyed on the row revision it
// read. Of two concurrent mutations on one task, exactly one commits;
// the loser observes CONFLICT (or INVALID_TRANSITION if the state
// already moved) and decides whether to retry. The engine never
// retries on its own.
package lifecycle
