// Package wallet is the signing collaborator a connection.Manager calls out
// to for every key it needs: a public DID (if this agent has one), fresh
// local DIDs for each new pairwise connection, and the raw sign/verify
// operations used to attach and check DID Document signatures.
package wallet

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// ErrNotFound is returned when a requested DID or verkey has no local
// wallet record. Connection-level code maps this onto its own
// domain-specific sentinels (e.g. invitation.ErrNoPublicDID) rather than
// propagating it directly.
var ErrNotFound = errors.New("wallet: not found")

// LocalDID is a DID this agent controls together with its current signing
// verkey. Public is true for the one DID (at most) registered on the
// ledger as this agent's well-known identity.
type LocalDID struct {
	DID    string
	Verkey string
	Public bool
}

// Wallet is the minimal signing surface the DID Exchange protocol needs.
// It deliberately says nothing about key storage, rotation or backup —
// those are InMemory's concern, not the interface's.
type Wallet interface {
	// GetPublicDID returns this agent's public DID, or ErrNotFound if it
	// has none configured.
	GetPublicDID(ctx context.Context) (*LocalDID, error)

	// GetLocalDID looks up a DID this agent controls.
	GetLocalDID(ctx context.Context, did string) (*LocalDID, error)

	// GetLocalDIDForVerkey resolves a DID from one of its signing verkeys.
	GetLocalDIDForVerkey(ctx context.Context, verkey string) (*LocalDID, error)

	// CreateLocalDID generates a fresh Ed25519 keypair, derives a did:sov
	// style DID from it, and stores the pairing.
	CreateLocalDID(ctx context.Context) (*LocalDID, error)

	// CreateSigningKey generates a bare Ed25519 keypair with no DID
	// attached yet, returning its base58 verkey. Used for ephemeral
	// invitation keys that only become a DID once a request arrives.
	CreateSigningKey(ctx context.Context) (verkey string, err error)

	// Sign signs data with the private key behind verkey.
	Sign(ctx context.Context, data []byte, verkey string) ([]byte, error)

	// Verify checks a signature produced by Sign against verkey; the
	// matching private key need not be held by this wallet.
	Verify(ctx context.Context, data, signature []byte, verkey string) (bool, error)
}

// didFromPublicKey derives a did:sov identifier from a 32-byte Ed25519 public key the
// way Indy agents do: base58 of the first 16 bytes of the key.
func didFromPublicKey(pub []byte) string {
	abbreviated := pub
	if len(abbreviated) > 16 {
		abbreviated = abbreviated[:16]
	}
	return "did:sov:" + base58.Encode(abbreviated)
}

func verkeyFingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return base58.Encode(sum[:8])
}
