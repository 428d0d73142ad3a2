// Package ledger abstracts the read-only DID registry a connection.Manager
// consults to resolve a peer's public DID into routing information — its
// current service endpoint and its current signing key — when a public
// invitation or a did:sov-only service block needs resolving.
package ledger

import (
	"context"
	"errors"
)

// ErrDIDNotFound is returned when the ledger has no record for a DID.
var ErrDIDNotFound = errors.New("ledger: did not found")

// Ledger is a read-only view onto a DID registry. SAGE-X's own ethereum
// registry client additionally supports writes (Register, UpdateMetadata);
// DID Exchange only ever resolves, so this interface stays read-only.
type Ledger interface {
	// GetEndpointForDID returns the service endpoint currently published
	// for did.
	GetEndpointForDID(ctx context.Context, did string) (string, error)

	// GetKeyForDID returns the base58 verkey currently published for did.
	GetKeyForDID(ctx context.Context, did string) (string, error)
}
