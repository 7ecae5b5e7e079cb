// Package cursor provides the opaque pagination token used by task list
// queries. A token encodes the (createdAt, lockedAt, id) composite
// ordering key of the last item on a page; createdAt alone is not
// unique enough under bulk seeding or expiry sweeps at identical
// timestamps, and the ID settles full timestamp collisions.
package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/vinayprograms/leasekit/errors"
)

// Cursor is the decoded pagination position.
//
// ID is the row ID of the boundary item. It breaks ties when two rows
// share an identical (createdAt, lockedAt) pair, which happens under
// bulk seeding at one timestamp.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	LockedAt  time.Time `json:"locked_at"`
	ID        string    `json:"id"`
}

// Encode serializes a cursor into an opaque URL-safe token.
func Encode(c Cursor) string {
	data, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(data)
}

// Decode parses an opaque token back into a cursor.
// Malformed tokens fail with InvalidCursor, never a raw parse error.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, errors.InvalidCursor("empty cursor token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, errors.InvalidCursor("cursor is not valid base64", errors.WithCause(err))
	}

	var c Cursor
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Cursor{}, errors.InvalidCursor("cursor payload is not valid", errors.WithCause(err))
	}

	if c.CreatedAt.IsZero() {
		return Cursor{}, errors.InvalidCursor("cursor is missing created_at")
	}

	return c, nil
}
