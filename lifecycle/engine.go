package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/leasekit/errors"
	"github.com/vinayprograms/leasekit/ledger"
	"github.com/vinayprograms/leasekit/logging"
	"github.com/vinayprograms/leasekit/search"
	"github.com/vinayprograms/leasekit/state"
	"github.com/vinayprograms/leasekit/users"
)

// Engine enforces the task lifecycle: the status state machine, lease
// semantics, assignment rules, and the history ledger. It holds no
// state of its own; every operation is a read-check-write sequence
// against the store.
//
// Mutations persist the task row first and append history second. If
// the append fails after the row committed, the operation returns a
// PARTIAL_COMMIT error alongside the committed task; the mutation is
// not rolled back.
type Engine struct {
	tasks  *taskStore
	users  *users.Store
	ledger *ledger.Ledger
	index  *search.Index
	log    *logging.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// Config configures an Engine.
type Config struct {
	// Store backs task rows and the history ledger.
	Store state.StateStore

	// Users is the caller directory.
	Users *users.Store

	// Index receives task documents for full-text search. Nil disables
	// search; lifecycle behavior is unchanged.
	Index *search.Index

	// Logger defaults to a new logger when nil.
	Logger *logging.Logger
}

// New creates a lifecycle engine.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	return &Engine{
		tasks:  &taskStore{store: cfg.Store},
		users:  cfg.Users,
		ledger: ledger.New(cfg.Store),
		index:  cfg.Index,
		log:    log.WithComponent("lifecycle"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest carries the fields for a new task.
type CreateRequest struct {
	Name           string
	Details        string
	AssignedNodeID string
	LockedAt       time.Time
}

// Create makes a new pending task leased to a node. Admin only.
func (e *Engine) Create(actor Actor, req CreateRequest) (*Task, error) {
	if err := e.requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, errors.InvalidInput("task name is required")
	}
	if req.Details == "" {
		return nil, errors.InvalidInput("task details are required")
	}
	if req.AssignedNodeID == "" {
		return nil, errors.InvalidInput("assigned node ID is required")
	}
	if req.LockedAt.IsZero() {
		return nil, errors.InvalidInput("lease deadline is required")
	}
	if err := e.requireActiveNode(req.AssignedNodeID); err != nil {
		return nil, err
	}

	now := e.now()
	t := &Task{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Details:        req.Details,
		AssignedNodeID: req.AssignedNodeID,
		Status:         StatusPending,
		LockedAt:       req.LockedAt.UTC(),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.tasks.create(t); err != nil {
		return nil, err
	}
	e.log.TaskCreated(t.ID, t.AssignedNodeID)
	e.reindex(t)

	if err := e.appendHistory(t.ID, ledger.ActionInitialAssign, "", t.AssignedNodeID, actor.ID); err != nil {
		return t, err
	}
	return t, nil
}

// EditRequest carries the mutable fields of a pending task. Zero-value
// fields are left unchanged.
type EditRequest struct {
	Name           string
	Details        string
	AssignedNodeID string
	LockedAt       time.Time
}

// Edit mutates a pending task's descriptive fields and assignee. Admin
// only. Called on a non-pending task it returns the task unchanged.
func (e *Engine) Edit(actor Actor, taskID string, req EditRequest) (*Task, error) {
	if err := e.requireAdmin(actor); err != nil {
		return nil, err
	}

	t, err := e.tasks.loadActive(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusPending {
		return t, nil
	}

	priorAssignee := t.AssignedNodeID
	if req.AssignedNodeID != "" && req.AssignedNodeID != priorAssignee {
		if err := e.requireActiveNode(req.AssignedNodeID); err != nil {
			return nil, err
		}
		t.AssignedNodeID = req.AssignedNodeID
	}
	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Details != "" {
		t.Details = req.Details
	}
	if !req.LockedAt.IsZero() {
		t.LockedAt = req.LockedAt.UTC()
	}
	t.UpdatedAt = e.now()

	if err := e.tasks.save(t); err != nil {
		return nil, err
	}
	e.reindex(t)

	if t.AssignedNodeID != priorAssignee {
		e.log.AssigneeChange(t.ID, priorAssignee, t.AssignedNodeID)
		if err := e.appendHistory(t.ID, ledger.ActionAssigneeChange, priorAssignee, t.AssignedNodeID, actor.ID); err != nil {
			return t, err
		}
	}
	return t, nil
}

// ChangeStatus moves a task along the transition graph. Only the
// current assignee may call it. Changing to the current status is a
// no-op that writes no history, even when the lease has expired.
func (e *Engine) ChangeStatus(actor Actor, taskID string, newStatus Status) (*Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, errors.InvalidInput("unknown status",
			errors.WithMetadata("status", string(newStatus)))
	}

	t, err := e.tasks.loadActive(taskID)
	if err != nil {
		return nil, err
	}
	if actor.ID != t.AssignedNodeID {
		return nil, errors.Forbidden("only the assigned node may change task status",
			errors.WithTaskID(taskID), errors.WithNodeID(actor.ID))
	}

	// Equality short-circuits before the expiry check: repeating the
	// current status is always a no-op, even on an expired lease.
	if newStatus == t.Status {
		return t, nil
	}
	if t.Expired(e.now()) {
		return nil, errors.LeaseExpired(taskID, t.LockedAt)
	}
	if !CanTransition(t.Status, newStatus) {
		return nil, errors.InvalidTransition(string(t.Status), string(newStatus),
			errors.WithTaskID(taskID))
	}

	prior := t.Status
	t.Status = newStatus
	t.UpdatedAt = e.now()

	if err := e.tasks.save(t); err != nil {
		return nil, err
	}
	e.log.StatusChange(t.ID, string(prior), string(newStatus), actor.ID)
	e.reindex(t)

	if err := e.appendHistory(t.ID, ledger.ActionStatusChange, string(prior), string(newStatus), actor.ID); err != nil {
		return t, err
	}
	return t, nil
}

// Assign moves a task to a different node regardless of current status
// and resets it to pending. Admin only.
func (e *Engine) Assign(actor Actor, taskID, newNodeID string) (*Task, error) {
	if err := e.requireAdmin(actor); err != nil {
		return nil, err
	}
	if newNodeID == "" {
		return nil, errors.InvalidInput("new node ID is required")
	}
	if err := e.requireActiveNode(newNodeID); err != nil {
		return nil, err
	}

	t, err := e.tasks.loadActive(taskID)
	if err != nil {
		return nil, err
	}

	priorAssignee := t.AssignedNodeID
	t.AssignedNodeID = newNodeID
	t.Status = StatusPending
	t.UpdatedAt = e.now()

	if err := e.tasks.save(t); err != nil {
		return nil, err
	}
	e.log.AssigneeChange(t.ID, priorAssignee, newNodeID)
	e.reindex(t)

	if err := e.appendHistory(t.ID, ledger.ActionAssigneeChange, priorAssignee, newNodeID, actor.ID); err != nil {
		return t, err
	}
	return t, nil
}

// SoftDelete marks a task inactive. Admin only. An already-inactive
// task is invisible, so deleting it twice fails NOT_FOUND.
func (e *Engine) SoftDelete(actor Actor, taskID string) error {
	if err := e.requireAdmin(actor); err != nil {
		return err
	}

	t, err := e.tasks.loadActive(taskID)
	if err != nil {
		return err
	}

	t.Active = false
	t.UpdatedAt = e.now()

	if err := e.tasks.save(t); err != nil {
		return err
	}
	e.log.TaskDeleted(t.ID)
	if e.index != nil {
		if err := e.index.Remove(t.ID); err != nil {
			e.log.Warn("failed to remove task from search index", map[string]interface{}{
				"task_id": t.ID, "error": err.Error(),
			})
		}
	}
	return nil
}

// GetByID returns a task. Node callers only see their own tasks.
func (e *Engine) GetByID(actor Actor, taskID string) (*Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	t, err := e.tasks.loadActive(taskID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != t.AssignedNodeID {
		return nil, errors.Forbidden("task is assigned to a different node",
			errors.WithTaskID(taskID), errors.WithNodeID(actor.ID))
	}
	return t, nil
}

// History returns a task's ledger entries, newest first. Node callers
// only see their own tasks. A task with no recorded history fails
// NOT_FOUND.
func (e *Engine) History(actor Actor, taskID string) ([]ledger.Entry, error) {
	if _, err := e.GetByID(actor, taskID); err != nil {
		return nil, err
	}

	entries, err := e.ledger.Entries(taskID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NotFound("no history recorded for task", errors.WithTaskID(taskID))
	}
	return entries, nil
}

// Expire transitions one task to failed because its lease deadline
// passed before the given boundary. Inactive, terminal, and unexpired
// tasks are skipped without error; the boolean reports whether the
// task was expired. The ledger entry is attributed to the system.
func (e *Engine) Expire(taskID string, boundary time.Time) (bool, error) {
	t, err := e.tasks.load(taskID)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if !t.Active || t.Status.Terminal() || !t.LockedAt.Before(boundary) {
		return false, nil
	}

	prior := t.Status
	t.Status = StatusFailed
	t.UpdatedAt = e.now()

	if err := e.tasks.save(t); err != nil {
		return false, err
	}
	e.log.TaskExpired(t.ID, string(prior))
	e.reindex(t)

	if err := e.appendHistory(t.ID, ledger.ActionStatusChange, string(prior), string(StatusFailed), ledger.SystemActor); err != nil {
		return true, err
	}
	return true, nil
}

// ExpiryCandidates returns the IDs of active, non-terminal tasks whose
// lease deadline passed before the boundary. The reaper re-checks each
// candidate under a conditional write, so a stale read here only costs
// a skipped update.
func (e *Engine) ExpiryCandidates(boundary time.Time) ([]string, error) {
	all, err := e.tasks.all()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, t := range all {
		if t.Active && !t.Status.Terminal() && t.LockedAt.Before(boundary) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

// SearchTasks resolves a full-text query against the search index and
// returns the matching tasks the actor may see. Fails UNAVAILABLE when
// no index is configured.
func (e *Engine) SearchTasks(actor Actor, query string, limit int) ([]*Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if e.index == nil {
		return nil, errors.Unavailable("search index is not configured")
	}

	ids, err := e.index.Query(query, limit)
	if err != nil {
		return nil, err
	}

	var out []*Task
	for _, id := range ids {
		t, err := e.tasks.loadActive(id)
		if err != nil {
			// The index can lag a soft-delete.
			if errors.Is(err, errors.ErrCodeNotFound) {
				continue
			}
			return nil, err
		}
		if !actor.IsAdmin() && actor.ID != t.AssignedNodeID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (e *Engine) requireAdmin(actor Actor) error {
	if err := actor.validate(); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return errors.Forbidden("operation requires the admin role",
			errors.WithNodeID(actor.ID))
	}
	return nil
}

// requireActiveNode verifies the assignee exists and is active.
func (e *Engine) requireActiveNode(nodeID string) error {
	if _, err := e.users.Get(nodeID); err != nil {
		return err
	}
	return nil
}

// appendHistory records a ledger entry after its mutation committed.
// An append failure is the one place a mutation and its audit record
// can diverge: it is logged and surfaced as PARTIAL_COMMIT, never
// rolled back.
func (e *Engine) appendHistory(taskID string, action ledger.ActionType, from, to, performedBy string) error {
	if _, err := e.ledger.Append(taskID, action, from, to, performedBy); err != nil {
		e.log.PartialCommit(taskID, string(action), err)
		return errors.PartialCommit(taskID, errors.WithCause(err),
			errors.WithMetadata("action", string(action)))
	}
	return nil
}

func (e *Engine) reindex(t *Task) {
	if e.index == nil {
		return
	}
	doc := search.TaskDocument{
		ID:        t.ID,
		Name:      t.Name,
		Details:   t.Details,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
	if err := e.index.Index(doc); err != nil {
		e.log.Warn("failed to index task for search", map[string]interface{}{
			"task_id": t.ID, "error": err.Error(),
		})
	}
}
