// Package idgen centralizes entity id generation so every table uses a
// consistent scheme: uuid for primary keys that cross service boundaries,
// xid for high-volume append-only rows where a compact sortable id is
// preferable.
package idgen

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
)

// UUID returns a new random v4 UUID string.
func UUID() string {
	return uuid.NewString()
}

// XID returns a new compact, lexicographically-sortable id — used for
// SensedEvent, Redirect and other append-only, high-volume rows.
func XID() string {
	return xid.New().String()
}
