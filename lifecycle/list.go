package lifecycle

import (
	"sort"

	"github.com/vinayprograms/leasekit/cursor"
	"github.com/vinayprograms/leasekit/errors"
)

// ListRequest filters and paginates a task listing.
type ListRequest struct {
	// Status filters to one status. Empty means all.
	Status Status

	// NodeID filters to tasks assigned to one node. Empty means all.
	// Node callers are always scoped to their own tasks regardless.
	NodeID string

	// Limit caps the page size. Zero disables pagination and returns
	// the full filtered set.
	Limit int

	// Cursor continues a previous page. Empty starts from the top.
	Cursor string
}

// Page is one page of a task listing.
type Page struct {
	// Tasks is the page content, newest first.
	Tasks []*Task

	// NextCursor continues the listing, or empty when exhausted.
	NextCursor string
}

// List returns tasks ordered by (createdAt, lockedAt) descending.
// Node callers only see their own tasks.
func (e *Engine) List(actor Actor, req ListRequest) (*Page, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, errors.InvalidInput("unknown status filter",
			errors.WithMetadata("status", string(req.Status)))
	}
	if req.Limit < 0 {
		return nil, errors.InvalidInput("limit must not be negative")
	}

	nodeFilter := req.NodeID
	if !actor.IsAdmin() {
		nodeFilter = actor.ID
	}

	var after *cursor.Cursor
	if req.Cursor != "" {
		c, err := cursor.Decode(req.Cursor)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	all, err := e.tasks.all()
	if err != nil {
		return nil, err
	}

	var matched []*Task
	for _, t := range all {
		if !t.Active {
			continue
		}
		if req.Status != "" && t.Status != req.Status {
			continue
		}
		if nodeFilter != "" && t.AssignedNodeID != nodeFilter {
			continue
		}
		if after != nil && !strictlyAfter(t, after) {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if !a.LockedAt.Equal(b.LockedAt) {
			return a.LockedAt.After(b.LockedAt)
		}
		return a.ID > b.ID
	})

	if req.Limit == 0 {
		return &Page{Tasks: matched}, nil
	}

	// One extra row detects the next page; it is stripped and the
	// cursor is built from the last row actually kept.
	if len(matched) <= req.Limit {
		return &Page{Tasks: matched}, nil
	}
	kept := matched[:req.Limit]
	last := kept[len(kept)-1]
	return &Page{
		Tasks: kept,
		NextCursor: cursor.Encode(cursor.Cursor{
			CreatedAt: last.CreatedAt,
			LockedAt:  last.LockedAt,
			ID:        last.ID,
		}),
	}, nil
}

// strictlyAfter reports whether t sorts strictly after the cursor
// position in (createdAt DESC, lockedAt DESC, id DESC) order. The
// boundary row itself is excluded so following cursors never repeats a
// row, and the ID tie-break keeps rows with fully identical timestamps
// from being skipped at a page boundary.
func strictlyAfter(t *Task, c *cursor.Cursor) bool {
	if t.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	if !t.CreatedAt.Equal(c.CreatedAt) {
		return false
	}
	if t.LockedAt.Before(c.LockedAt) {
		return true
	}
	if !t.LockedAt.Equal(c.LockedAt) {
		return false
	}
	return t.ID < c.ID
}
