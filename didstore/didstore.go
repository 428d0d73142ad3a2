// Package didstore persists DID Documents and answers the reverse index
// query the inbound resolver depends on: "which DID owns this verkey?" It
// is component B — a thin, domain-shaped layer over the generic store.Store.
package didstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sage-x-project/didexchange/diddoc"
	"github.com/sage-x-project/didexchange/store"
)

// Record types persisted by this package, per the core's external record
// contract: "did_doc" (tags {did}) and "did_key" (tags {did, key}).
const (
	RecordTypeDIDDoc = "did_doc"
	RecordTypeDIDKey = "did_key"
)

// ErrNotFound is returned by FindDIDForKey and FetchDocument when nothing
// matches.
var ErrNotFound = store.ErrNotFound

// Store persists DID Documents and their key index over a generic
// store.Store.
type Store struct {
	records store.Store
}

// New wraps records as a didstore.Store.
func New(records store.Store) *Store {
	return &Store{records: records}
}

// StoreDocument upserts doc by DID. Before rewriting key entries for that
// DID it deletes every existing did_key entry tagged with that DID, then
// inserts one fresh entry per public key whose controller matches the
// document's DID — so re-storing a document never leaves orphaned key
// mappings behind (invariant P2).
func (s *Store) StoreDocument(ctx context.Context, doc *diddoc.Document) error {
	if err := s.removeKeysForDID(ctx, doc.DID); err != nil {
		return fmt.Errorf("didstore: remove stale keys for %q: %w", doc.DID, err)
	}

	for _, pk := range doc.PublicKeys {
		if pk.Controller != doc.DID {
			continue
		}
		record := &store.Record{
			Type:  RecordTypeDIDKey,
			ID:    doc.DID + "::" + pk.PublicKeyBase58,
			Value: []byte(pk.PublicKeyBase58),
			Tags:  map[string]string{"did": doc.DID, "key": pk.PublicKeyBase58},
		}
		if err := s.records.Add(ctx, record); err != nil && !errors.Is(err, store.ErrRecordExists) {
			return fmt.Errorf("didstore: index key for %q: %w", doc.DID, err)
		}
	}

	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("didstore: marshal document for %q: %w", doc.DID, err)
	}

	docRecord := &store.Record{
		Type:  RecordTypeDIDDoc,
		ID:    doc.DID,
		Value: value,
		Tags:  map[string]string{"did": doc.DID},
	}
	if err := s.records.Add(ctx, docRecord); err != nil {
		if !errors.Is(err, store.ErrRecordExists) {
			return fmt.Errorf("didstore: add document for %q: %w", doc.DID, err)
		}
		if err := s.records.UpdateValue(ctx, RecordTypeDIDDoc, doc.DID, value); err != nil {
			return fmt.Errorf("didstore: update document for %q: %w", doc.DID, err)
		}
	}
	return nil
}

func (s *Store) removeKeysForDID(ctx context.Context, did string) error {
	existing, err := s.records.SearchAll(ctx, RecordTypeDIDKey, map[string]string{"did": did})
	if err != nil {
		return err
	}
	for _, rec := range existing {
		if err := s.records.Delete(ctx, RecordTypeDIDKey, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

// FindDIDForKey answers "which DID owns this verkey?", returning ErrNotFound
// if no did_key entry carries it.
func (s *Store) FindDIDForKey(ctx context.Context, verkey string) (string, error) {
	rec, err := s.records.SearchOne(ctx, RecordTypeDIDKey, map[string]string{"key": verkey})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("didstore: find did for key: %w", err)
	}
	return rec.Tags["did"], nil
}

// FetchDocument returns the stored document for did, ErrNotFound if absent.
func (s *Store) FetchDocument(ctx context.Context, did string) (*diddoc.Document, error) {
	rec, err := s.records.SearchOne(ctx, RecordTypeDIDDoc, map[string]string{"did": did})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("didstore: fetch document: %w", err)
	}
	var doc diddoc.Document
	if err := json.Unmarshal(rec.Value, &doc); err != nil {
		return nil, fmt.Errorf("didstore: unmarshal document for %q: %w", did, err)
	}
	return &doc, nil
}
