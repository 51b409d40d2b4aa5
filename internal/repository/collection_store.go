package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/noah-isme/curriculum-api/pkg/storage"
)

// Persisted collection names.
const (
	CollectionCurriculum = "curriculum"
	CollectionAuditLog   = "audit_log"
	CollectionReports    = "curriculum_reports"
	CollectionUsers      = "users"
)

// CollectionStore persists whole collections as JSON arrays. Load returns nil, nil for a
// collection that was never written.
type CollectionStore interface {
	Load(ctx context.Context, collection string) (json.RawMessage, error)
	ReplaceAll(ctx context.Context, collection string, payload json.RawMessage) error
}

// BatchStore is implemented by stores that can replace several collections atomically.
type BatchStore interface {
	ReplaceBatch(ctx context.Context, payloads map[string]json.RawMessage) error
}

// MemoryCollectionStore keeps collections in process memory.
type MemoryCollectionStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemoryCollectionStore constructs an empty in-memory store.
func NewMemoryCollectionStore() *MemoryCollectionStore {
	return &MemoryCollectionStore{data: make(map[string]json.RawMessage)}
}

// Load returns a copy of the stored payload.
func (s *MemoryCollectionStore) Load(_ context.Context, collection string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.data[collection]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), payload...), nil
}

// ReplaceAll overwrites the collection.
func (s *MemoryCollectionStore) ReplaceAll(_ context.Context, collection string, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[collection] = append(json.RawMessage(nil), payload...)
	return nil
}

// FileCollectionStore writes each collection to <dir>/<collection>.json.
type FileCollectionStore struct {
	files *storage.LocalStorage
}

// NewFileCollectionStore wraps a local storage directory.
func NewFileCollectionStore(files *storage.LocalStorage) *FileCollectionStore {
	return &FileCollectionStore{files: files}
}

// Load reads the collection file.
func (s *FileCollectionStore) Load(_ context.Context, collection string) (json.RawMessage, error) {
	data, err := s.files.Read(collection + ".json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return data, nil
}

// ReplaceAll atomically rewrites the collection file.
func (s *FileCollectionStore) ReplaceAll(_ context.Context, collection string, payload json.RawMessage) error {
	if err := s.files.Save(collection+".json", payload); err != nil {
		return fmt.Errorf("replace collection %s: %w", collection, err)
	}
	return nil
}
