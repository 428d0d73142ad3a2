package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	sagecrypto "github.com/sage-x-project/didexchange/crypto"
	"github.com/sage-x-project/didexchange/crypto/keys"

	// Blank-imported so crypto.Manager's key generators, storage and JWK
	// codecs are wired before InMemory ever calls into the crypto package.
	_ "github.com/sage-x-project/didexchange/internal/cryptoinit"
)

// InMemory is a process-local Wallet backed by crypto.Manager. It never
// persists anything to disk; every key it holds is gone when the process
// exits, the same tradeoff store.Memory makes for connection state.
type InMemory struct {
	mu sync.RWMutex

	manager *sagecrypto.Manager

	// verkey -> DID this verkey currently signs for ("" until a DID is
	// minted for it, which is the case for bare invitation keys).
	didForVerkey map[string]string
	// did -> LocalDID
	dids      map[string]*LocalDID
	publicDID string
}

// NewInMemory builds an empty wallet.
func NewInMemory() *InMemory {
	return &InMemory{
		manager:      sagecrypto.NewManager(),
		didForVerkey: make(map[string]string),
		dids:         make(map[string]*LocalDID),
	}
}

// storeUnderVerkey builds an Ed25519 keypair whose ID is its own base58
// verkey, so Manager.LoadKeyPair(verkey) round-trips. Manager.GenerateKeyPair
// assigns a content-hash ID instead, which is fine for crypto/'s own tests
// but useless for a wallet that looks keys up by verkey.
func (w *InMemory) storeUnderVerkey() (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("wallet: generate ed25519 key: %w", err)
	}
	verkey := base58.Encode(pub)

	keyPair, err := keys.NewEd25519KeyPair(priv, verkey)
	if err != nil {
		return "", fmt.Errorf("wallet: wrap ed25519 key: %w", err)
	}
	if err := w.manager.StoreKeyPair(keyPair); err != nil {
		return "", fmt.Errorf("wallet: store key: %w", err)
	}
	return verkey, nil
}

// RegisterPublicDID seeds the wallet with a pre-existing public DID and
// verkey pair, storing the matching keypair so Sign/Verify work against it.
// Test and cmd/didxctl setup code uses this to simulate an agent that
// already published a DID to the ledger.
func (w *InMemory) RegisterPublicDID(ctx context.Context, did, verkey string, priv ed25519.PrivateKey) error {
	keyPair, err := keys.NewEd25519KeyPair(priv, verkey)
	if err != nil {
		return fmt.Errorf("wallet: build keypair for public DID: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.manager.StoreKeyPair(keyPair); err != nil {
		return fmt.Errorf("wallet: store public DID keypair: %w", err)
	}
	w.dids[did] = &LocalDID{DID: did, Verkey: verkey, Public: true}
	w.didForVerkey[verkey] = did
	w.publicDID = did
	return nil
}

func (w *InMemory) GetPublicDID(ctx context.Context) (*LocalDID, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.publicDID == "" {
		return nil, ErrNotFound
	}
	local := *w.dids[w.publicDID]
	return &local, nil
}

func (w *InMemory) GetLocalDID(ctx context.Context, did string) (*LocalDID, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	local, ok := w.dids[did]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *local
	return &copied, nil
}

func (w *InMemory) GetLocalDIDForVerkey(ctx context.Context, verkey string) (*LocalDID, error) {
	w.mu.RLock()
	did, ok := w.didForVerkey[verkey]
	w.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return w.GetLocalDID(ctx, did)
}

func (w *InMemory) CreateLocalDID(ctx context.Context) (*LocalDID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	verkey, err := w.storeUnderVerkey()
	if err != nil {
		return nil, err
	}
	pub, err := base58.Decode(verkey)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode generated verkey: %w", err)
	}
	did := didFromPublicKey(pub)

	local := &LocalDID{DID: did, Verkey: verkey, Public: false}
	w.dids[did] = local
	w.didForVerkey[verkey] = did

	copied := *local
	return &copied, nil
}

func (w *InMemory) CreateSigningKey(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storeUnderVerkey()
}

func (w *InMemory) Sign(ctx context.Context, data []byte, verkey string) ([]byte, error) {
	keyPair, err := w.loadKeyPair(verkey)
	if err != nil {
		return nil, err
	}
	return keyPair.Sign(data)
}

// Verify checks signature against the Ed25519 public key verkey encodes, so
// a peer's signature verifies without its key being held here.
func (w *InMemory) Verify(ctx context.Context, data, signature []byte, verkey string) (bool, error) {
	pub, err := base58.Decode(verkey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("wallet: invalid verkey %q", verkey)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, signature), nil
}

func (w *InMemory) loadKeyPair(verkey string) (sagecrypto.KeyPair, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keyPair, err := w.manager.LoadKeyPair(verkey)
	if err != nil {
		if err == sagecrypto.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("wallet: load keypair: %w", err)
	}
	return keyPair, nil
}
