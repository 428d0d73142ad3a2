// Package store is the generic tagged-record collaborator connection.Manager
// and didstore.Store persist through. It knows nothing about connections or
// DID Documents; it stores opaque values under a record type plus an ID, and
// answers tag-matching queries so callers can find a record without knowing
// its ID up front (e.g. "the connection whose invitation_key tag is X").
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and by SearchOne when no record matches.
var ErrNotFound = errors.New("store: record not found")

// ErrRecordExists is returned by Add when the (type, id) pair is already in
// use.
var ErrRecordExists = errors.New("store: record already exists")

// Record is a single stored value together with the tags it can be looked
// up by. Tags are exact-match only; there is no range or prefix query.
type Record struct {
	Type  string
	ID    string
	Value []byte
	Tags  map[string]string
}

// Store is a minimal tagged key-value record store. Every method takes a
// context so a Postgres- or etcd-backed implementation can honor
// cancellation; Memory ignores it.
type Store interface {
	// Add inserts a new record. It fails with ErrRecordExists if (Type, ID)
	// is already present.
	Add(ctx context.Context, record *Record) error

	// UpdateValue overwrites the value of an existing record.
	UpdateValue(ctx context.Context, recordType, id string, value []byte) error

	// Get fetches a single record by its type and ID.
	Get(ctx context.Context, recordType, id string) (*Record, error)

	// Delete removes a record by type and ID. Deleting a record that does
	// not exist is a no-op.
	Delete(ctx context.Context, recordType, id string) error

	// SearchOne returns the first record of recordType whose tags are a
	// superset of tagQuery, or ErrNotFound if none match. Callers that rely
	// on "first" assume at most one logical match exists; connection.Manager
	// enforces that invariant at the call site, not here.
	SearchOne(ctx context.Context, recordType string, tagQuery map[string]string) (*Record, error)

	// SearchAll returns every record of recordType whose tags are a
	// superset of tagQuery, in no particular order beyond what Memory's
	// sorted-ID iteration happens to produce.
	SearchAll(ctx context.Context, recordType string, tagQuery map[string]string) ([]*Record, error)
}
