package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store backed by a type-then-id nested map, guarded
// by a single RWMutex, with sorted iteration for deterministic listing
// order.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]*Record // recordType -> id -> record
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]*Record)}
}

func cloneRecord(r *Record) *Record {
	value := make([]byte, len(r.Value))
	copy(value, r.Value)
	tags := make(map[string]string, len(r.Tags))
	for k, v := range r.Tags {
		tags[k] = v
	}
	return &Record{Type: r.Type, ID: r.ID, Value: value, Tags: tags}
}

func (m *Memory) Add(ctx context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.records[record.Type]
	if !ok {
		byID = make(map[string]*Record)
		m.records[record.Type] = byID
	}
	if _, exists := byID[record.ID]; exists {
		return ErrRecordExists
	}
	byID[record.ID] = cloneRecord(record)
	return nil
}

func (m *Memory) UpdateValue(ctx context.Context, recordType, id string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.records[recordType]
	if !ok {
		return ErrNotFound
	}
	record, ok := byID[id]
	if !ok {
		return ErrNotFound
	}
	updated := make([]byte, len(value))
	copy(updated, value)
	record.Value = updated
	return nil
}

func (m *Memory) Get(ctx context.Context, recordType, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.records[recordType]
	if !ok {
		return nil, ErrNotFound
	}
	record, ok := byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (m *Memory) Delete(ctx context.Context, recordType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if byID, ok := m.records[recordType]; ok {
		delete(byID, id)
	}
	return nil
}

func matchesTags(record *Record, tagQuery map[string]string) bool {
	for k, want := range tagQuery {
		if got, ok := record.Tags[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func (m *Memory) SearchAll(ctx context.Context, recordType string, tagQuery map[string]string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.records[recordType]
	if !ok {
		return nil, nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matches []*Record
	for _, id := range ids {
		if matchesTags(byID[id], tagQuery) {
			matches = append(matches, cloneRecord(byID[id]))
		}
	}
	return matches, nil
}

func (m *Memory) SearchOne(ctx context.Context, recordType string, tagQuery map[string]string) (*Record, error) {
	matches, err := m.SearchAll(ctx, recordType, tagQuery)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}
