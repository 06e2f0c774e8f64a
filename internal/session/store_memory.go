// Copyright (c) 2026 OpenG7. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore implements Persistence in process memory.
//
// Used by tests and by local development without a Redis instance. Records
// are deep-copied through JSON on both paths so callers can never mutate
// stored state without going through Set, matching Redis semantics.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory session record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get loads the user's record, or a pristine one when absent.
func (store *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	payload, found := store.records[userID]
	if !found {
		return NewRecord(), nil
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// Set persists the user's record.
func (store *MemoryStore) Set(_ context.Context, userID string, record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.records[userID] = payload

	return nil
}
