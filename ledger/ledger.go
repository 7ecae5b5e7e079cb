// Package ledger records task lifecycle history.
//
// Every successful mutation of a task appends one immutable entry:
// what changed, from what, to what, and who did it. Entries are never
// edited or removed, so the ledger is the authoritative audit trail
// for a task's life.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/state"
)

// ActionType categorizes what a ledger entry records.
type ActionType string

const (
	// ActionInitialAssign records the assignee set when a task was created.
	ActionInitialAssign ActionType = "initial_assign"

	// ActionStatusChange records a status transition.
	ActionStatusChange ActionType = "status_change"

	// ActionAssigneeChange records a reassignment after creation.
	ActionAssigneeChange ActionType = "assignee_change"
)

// Valid reports whether the action type is a known value.
func (a ActionType) Valid() bool {
	switch a {
	case ActionInitialAssign, ActionStatusChange, ActionAssigneeChange:
		return true
	}
	return false
}

// SystemActor is the PerformedBy value for entries written by the
// engine itself rather than a user, such as expiry sweeps.
const SystemActor = "system"

// Entry is one immutable history record.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// TaskID is the task this entry belongs to.
	TaskID string `json:"task_id"`

	// Action categorizes the change.
	Action ActionType `json:"action_type"`

	// FromValue is the value before the change. Empty for initial assignment.
	FromValue string `json:"from_value,omitempty"`

	// ToValue is the value after the change.
	ToValue string `json:"to_value"`

	// PerformedBy is the user ID of the actor, or SystemActor.
	PerformedBy string `json:"performed_by"`

	// CreatedAt is when the change was recorded.
	CreatedAt time.Time `json:"created_at"`
}

const entryKeyPrefix = "ledger."

// seqWidth pads sequence numbers so key order matches append order.
const seqWidth = 10

// Ledger is an append-only history store over a StateStore.
//
// Entries for a task are keyed ledger.<taskID>.<seq> with a zero-padded
// sequence. Appends claim the next sequence with put-if-absent, so two
// concurrent appends to the same task never collide, they serialize.
type Ledger struct {
	store state.StateStore
}

// New creates a ledger backed by the given state store.
func New(st state.StateStore) *Ledger {
	return &Ledger{store: st}
}

// Append records one entry for a task. The entry ID and timestamp are
// assigned here.
func (l *Ledger) Append(taskID string, action ActionType, fromValue, toValue, performedBy string) (*Entry, error) {
	if taskID == "" {
		return nil, errors.InvalidInput("task ID is required")
	}
	if !action.Valid() {
		return nil, errors.InvalidInput("unknown ledger action",
			errors.WithMetadata("action", string(action)))
	}
	if performedBy == "" {
		return nil, errors.InvalidInput("performed_by is required")
	}

	e := &Entry{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Action:      action,
		FromValue:   fromValue,
		ToValue:     toValue,
		PerformedBy: performedBy,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encoding ledger entry", errors.WithTaskID(taskID))
	}

	seq, err := l.nextSequence(taskID)
	if err != nil {
		return nil, err
	}
	for {
		key := entryKey(taskID, seq)
		_, err := l.store.Create(key, data)
		if err == nil {
			return e, nil
		}
		if err != state.ErrKeyExists {
			return nil, errors.Wrap(err, "storing ledger entry", errors.WithTaskID(taskID))
		}
		// Lost the sequence slot to a concurrent append. Take the next one.
		seq++
	}
}

// Entries returns a task's history, newest first.
func (l *Ledger) Entries(taskID string) ([]Entry, error) {
	if taskID == "" {
		return nil, errors.InvalidInput("task ID is required")
	}

	keys, err := l.store.Keys(entryKeyPrefix + taskID + ".*")
	if err != nil {
		return nil, errors.Wrap(err, "listing ledger entries", errors.WithTaskID(taskID))
	}

	// Sequence keys sort lexicographically in append order.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		data, err := l.store.Get(key)
		if err != nil {
			if err == state.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "loading ledger entry", errors.WithTaskID(taskID))
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, errors.New(errors.ErrCodeCorruption, "stored ledger entry failed to decode",
				errors.WithCause(err), errors.WithTaskID(taskID), errors.WithMetadata("key", key))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *Ledger) nextSequence(taskID string) (uint64, error) {
	keys, err := l.store.Keys(entryKeyPrefix + taskID + ".*")
	if err != nil {
		return 0, errors.Wrap(err, "listing ledger entries", errors.WithTaskID(taskID))
	}

	var max uint64
	found := false
	for _, key := range keys {
		seqPart := key[strings.LastIndex(key, ".")+1:]
		var seq uint64
		if _, err := fmt.Sscanf(seqPart, "%d", &seq); err != nil {
			continue
		}
		if !found || seq > max {
			max = seq
			found = true
		}
	}
	if !found {
		return 1, nil
	}
	return max + 1, nil
}

func entryKey(taskID string, seq uint64) string {
	return fmt.Sprintf("%s%s.%0*d", entryKeyPrefix, taskID, seqWidth, seq)
}
