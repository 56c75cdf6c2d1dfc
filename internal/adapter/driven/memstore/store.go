// Package memstore provides an in-memory DocumentStore for tests and
// ephemeral deployments. Documents are deep-copied through JSON on every
// read and write so callers never share state with the store, and values
// have the same shapes the SQLite adapter returns.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DocumentStore = (*Store)(nil)

// Store holds documents in memory, keyed by collection then id.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]map[string][]byte)}
}

// Get returns a copy of the document or driven.ErrDocumentNotFound.
func (s *Store) Get(_ context.Context, collection, id string) (driven.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.docs[collection][id]
	if !ok {
		return driven.Document{}, fmt.Errorf("get document %s/%s: %w", collection, id, driven.ErrDocumentNotFound)
	}

	fields, err := decode(raw)
	if err != nil {
		return driven.Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return driven.Document{ID: id, Fields: fields}, nil
}

// Put creates or replaces a document.
func (s *Store) Put(_ context.Context, collection string, doc driven.Document) error {
	if doc.ID == "" {
		return errors.New("put document: empty id")
	}

	raw, err := encode(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string][]byte)
		s.docs[collection] = coll
	}
	coll[doc.ID] = raw
	return nil
}

// Merge applies a JSON merge patch to an existing document under the write lock.
func (s *Store) Merge(_ context.Context, collection, id string, fields map[string]any) error {
	patchRaw, err := encode(fields)
	if err != nil {
		return fmt.Errorf("encode patch %s/%s: %w", collection, id, err)
	}
	patch, err := decode(patchRaw)
	if err != nil {
		return fmt.Errorf("decode patch %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.docs[collection][id]
	if !ok {
		return fmt.Errorf("document %s/%s: %w", collection, id, driven.ErrDocumentNotFound)
	}

	current, err := decode(raw)
	if err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}

	merged, err := encode(mergePatch(current, patch))
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	s.docs[collection][id] = merged
	return nil
}

// Delete removes a document permanently.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return fmt.Errorf("document %s/%s: %w", collection, id, driven.ErrDocumentNotFound)
	}
	delete(s.docs[collection], id)
	return nil
}

// QueryByField returns documents whose top-level field is the string value, ordered by id.
func (s *Store) QueryByField(_ context.Context, collection, field, value string) ([]driven.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []driven.Document
	for id, raw := range s.docs[collection] {
		fields, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
		if v, ok := fields[field].(string); ok && v == value {
			docs = append(docs, driven.Document{ID: id, Fields: fields})
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

// mergePatch implements RFC 7396 for decoded JSON objects.
func mergePatch(target, patch map[string]any) map[string]any {
	if target == nil {
		target = make(map[string]any)
	}
	for k, v := range patch {
		switch pv := v.(type) {
		case nil:
			delete(target, k)
		case map[string]any:
			existing, _ := target[k].(map[string]any)
			target[k] = mergePatch(existing, pv)
		default:
			target[k] = v
		}
	}
	return target
}

func encode(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	return json.Marshal(fields)
}

func decode(raw []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
