package lifecycle

import (
	"encoding/json"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/state"
)

const taskKeyPrefix = "tasks."

// taskStore persists tasks in a StateStore with revision-checked
// writes. Every load carries the revision it was read at; every save
// is conditional on that revision, so two read-modify-write sequences
// on the same row cannot both commit.
type taskStore struct {
	store state.StateStore
}

// load retrieves a task by ID, inactive rows included. Callers decide
// whether an inactive row counts as found.
func (ts *taskStore) load(id string) (*Task, error) {
	kv, err := ts.store.GetKeyValue(taskKeyPrefix + id)
	if err != nil {
		if err == state.ErrNotFound {
			return nil, errors.NotFound("task not found", errors.WithTaskID(id))
		}
		return nil, errors.Wrap(err, "loading task", errors.WithTaskID(id))
	}
	return decodeTask(kv.Value, kv.Revision, kv.Key)
}

// loadActive retrieves a task by ID, treating inactive rows as absent.
func (ts *taskStore) loadActive(id string) (*Task, error) {
	t, err := ts.load(id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, errors.NotFound("task not found", errors.WithTaskID(id))
	}
	return t, nil
}

// create stores a new task row.
func (ts *taskStore) create(t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encoding task", errors.WithTaskID(t.ID))
	}
	rev, err := ts.store.Create(taskKeyPrefix+t.ID, data)
	if err != nil {
		if err == state.ErrKeyExists {
			return errors.Conflict("task ID already exists", errors.WithTaskID(t.ID))
		}
		return errors.Wrap(err, "storing task", errors.WithTaskID(t.ID))
	}
	t.revision = rev
	return nil
}

// save writes a task conditionally on the revision it was loaded at.
// A lost race surfaces as CONFLICT; the engine never silently retries.
func (ts *taskStore) save(t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encoding task", errors.WithTaskID(t.ID))
	}
	rev, err := ts.store.Update(taskKeyPrefix+t.ID, data, t.revision)
	if err != nil {
		switch err {
		case state.ErrRevisionMismatch:
			return errors.Conflict("task was modified concurrently", errors.WithTaskID(t.ID))
		case state.ErrNotFound:
			return errors.NotFound("task not found", errors.WithTaskID(t.ID))
		}
		return errors.Wrap(err, "storing task", errors.WithTaskID(t.ID))
	}
	t.revision = rev
	return nil
}

// all returns every stored task, inactive rows included.
func (ts *taskStore) all() ([]*Task, error) {
	keys, err := ts.store.Keys(taskKeyPrefix + "*")
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}

	tasks := make([]*Task, 0, len(keys))
	for _, key := range keys {
		kv, err := ts.store.GetKeyValue(key)
		if err != nil {
			if err == state.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "loading task")
		}
		t, err := decodeTask(kv.Value, kv.Revision, key)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func decodeTask(data []byte, revision uint64, key string) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.New(errors.ErrCodeCorruption, "stored task failed to decode",
			errors.WithCause(err), errors.WithMetadata("key", key))
	}
	t.revision = revision
	return &t, nil
}
