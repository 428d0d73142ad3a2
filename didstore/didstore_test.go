package didstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/didexchange/diddoc"
	"github.com/sage-x-project/didexchange/store"
)

func sampleDoc() *diddoc.Document {
	return &diddoc.Document{
		DID: "did:sov:alice",
		PublicKeys: map[string]*diddoc.PublicKey{
			"1": {ID: "1", Type: "Ed25519VerificationKey2018", Controller: "did:sov:alice", PublicKeyBase58: "VK_ALICE", Authorization: true},
		},
		Services: map[string]*diddoc.Service{
			"indy": {ID: "indy", Type: "IndyAgent", RecipientKeys: []string{"VK_ALICE"}, ServiceEndpoint: "http://alice.example"},
		},
	}
}

func TestStoreAndFetchDocument(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	require.NoError(t, s.StoreDocument(ctx, sampleDoc()))

	got, err := s.FetchDocument(ctx, "did:sov:alice")
	require.NoError(t, err)
	assert.Equal(t, "did:sov:alice", got.DID)

	did, err := s.FindDIDForKey(ctx, "VK_ALICE")
	require.NoError(t, err)
	assert.Equal(t, "did:sov:alice", did)
}

func TestFindDIDForKeyNotFound(t *testing.T) {
	s := New(store.NewMemory())
	_, err := s.FindDIDForKey(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestStoreDocumentIdempotent exercises P3: two identical stores yield
// identical final state.
func TestStoreDocumentIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())
	doc := sampleDoc()

	require.NoError(t, s.StoreDocument(ctx, doc))
	require.NoError(t, s.StoreDocument(ctx, doc))

	got, err := s.FetchDocument(ctx, "did:sov:alice")
	require.NoError(t, err)
	assert.Equal(t, doc.DID, got.DID)
	assert.Len(t, got.PublicKeys, 1)

	did, err := s.FindDIDForKey(ctx, "VK_ALICE")
	require.NoError(t, err)
	assert.Equal(t, "did:sov:alice", did)
}

// TestStoreDocumentRewritesKeys exercises P2: storing an updated document
// for the same DID must not leave the old key mapping behind.
func TestStoreDocumentRewritesKeys(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	doc := sampleDoc()
	require.NoError(t, s.StoreDocument(ctx, doc))

	updated := sampleDoc()
	updated.PublicKeys["1"].PublicKeyBase58 = "VK_ALICE_ROTATED"
	require.NoError(t, s.StoreDocument(ctx, updated))

	_, err := s.FindDIDForKey(ctx, "VK_ALICE")
	assert.ErrorIs(t, err, ErrNotFound)

	did, err := s.FindDIDForKey(ctx, "VK_ALICE_ROTATED")
	require.NoError(t, err)
	assert.Equal(t, "did:sov:alice", did)
}
