// Package errors provides the structured error taxonomy for leasekit.
// Every failure the lifecycle engine can detect is returned as a typed
// error with a code and a category, so the request layer can map each
// kind to a transport status and decide whether a retry makes sense.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Temporary failures where retry may succeed (store timeouts, etc.)
//   - Permanent: Failures where retry will not help (invalid input, not found, etc.)
//   - Internal: Unexpected errors indicating bugs or consistency defects
//
// # Error Codes
//
// Each error has a specific code that identifies the type of failure:
//
//   - NOT_FOUND: Task or user absent, or soft-deleted
//   - FORBIDDEN: Caller not allowed to act on this task
//   - INVALID_TRANSITION: Status edge outside the transition graph
//   - LEASE_EXPIRED: lockedAt deadline already passed
//   - CONFLICT: Lost a concurrent row update race
//   - INVALID_CURSOR: Malformed pagination token
//   - UNAVAILABLE: Store timeout or outage (the only kind a caller
//     should retry automatically)
//   - PARTIAL_COMMIT: Mutation committed but its history record was not
//     written; logged for operational follow-up, never rolled back
//   - And more...
//
// # Usage
//
// Create a new error:
//
//	err := errors.NotFound("task does not exist", errors.WithTaskID(id))
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "loading task row")
//
// Check a code without unwrapping by hand:
//
//	if errors.Is(err, errors.ErrCodeConflict) {
//	    // surface to the caller for retry
//	}
//
// # JSON Serialization
//
// All errors support JSON serialization for the request layer:
//
//	data, err := json.Marshal(taskErr)
package errors
