// Package store implements the namespace store (C3): an in-memory mapping
// of namespace -> (doc_id -> DocumentRecord) behind a single reader-writer
// lock, per the concurrency model in §5 of the design notes.
package store

import (
	"strings"
	"sync"

	"github.com/heimgewebe/indexd/internal/model"
)

// Store is the namespace store. The zero value is not usable; construct
// with New. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]model.DocumentRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		namespaces: make(map[string]map[string]model.DocumentRecord),
	}
}

// NormalizeNamespace trims whitespace and rewrites an empty result to
// model.DefaultNamespace.
func NormalizeNamespace(ns string) string {
	trimmed := strings.TrimSpace(ns)
	if trimmed == "" {
		return model.DefaultNamespace
	}
	return trimmed
}

// Upsert inserts or replaces rec at (namespace, rec.DocID), normalizing
// namespace first. Replaces the prior record atomically (Invariant 1).
func (s *Store) Upsert(namespace string, rec model.DocumentRecord) {
	ns := NormalizeNamespace(namespace)
	rec.Namespace = ns

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.namespaces[ns]
	if !ok {
		bucket = make(map[string]model.DocumentRecord)
		s.namespaces[ns] = bucket
	}
	bucket[rec.DocID] = rec
}

// Get returns the record at (namespace, docID), if any.
func (s *Store) Get(namespace, docID string) (model.DocumentRecord, bool) {
	ns := NormalizeNamespace(namespace)
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.namespaces[ns]
	if !ok {
		return model.DocumentRecord{}, false
	}
	rec, ok := bucket[docID]
	return rec, ok
}

// Snapshot returns a copy of every record in namespace, safe to iterate
// without holding the store's lock. Used by the retrieval engine and
// retention sweeper so scoring/sweep work never runs under the lock.
func (s *Store) Snapshot(namespace string) []model.DocumentRecord {
	ns := NormalizeNamespace(namespace)
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.namespaces[ns]
	if !ok {
		return nil
	}
	out := make([]model.DocumentRecord, 0, len(bucket))
	for _, rec := range bucket {
		out = append(out, rec)
	}
	return out
}

// Delete removes (namespace, docID) if present, reporting whether it was.
func (s *Store) Delete(namespace, docID string) bool {
	ns := NormalizeNamespace(namespace)
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.namespaces[ns]
	if !ok {
		return false
	}
	if _, ok := bucket[docID]; !ok {
		return false
	}
	delete(bucket, docID)
	return true
}

// Namespaces returns the set of namespace names that currently hold at
// least one document.
func (s *Store) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.namespaces))
	for ns, bucket := range s.namespaces {
		if len(bucket) > 0 {
			out = append(out, ns)
		}
	}
	return out
}

// Stats reports total documents, total chunks, and a per-namespace count.
type Stats struct {
	TotalDocuments int
	TotalChunks    int
	Namespaces     map[string]int
}

// Predicate decides whether a document matches a forget/sweep filter.
type Predicate func(model.DocumentRecord) bool

// Match returns every (namespace, doc_id) key whose record satisfies pred,
// without mutating the store. Used by forget's dry-run mode.
func (s *Store) Match(pred Predicate) []model.ForgetKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ForgetKey
	for ns, bucket := range s.namespaces {
		for docID, rec := range bucket {
			if pred(rec) {
				out = append(out, model.ForgetKey{Namespace: ns, DocID: docID})
			}
		}
	}
	return out
}

// MatchAndDelete atomically removes every document satisfying pred and
// returns the keys it deleted. The match and the delete happen under the
// same write lock, so no concurrent ingest can slip a new match in between
// (forget and ingest are mutually exclusive per §5).
func (s *Store) MatchAndDelete(pred Predicate) []model.ForgetKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ForgetKey
	for ns, bucket := range s.namespaces {
		for docID, rec := range bucket {
			if pred(rec) {
				delete(bucket, docID)
				out = append(out, model.ForgetKey{Namespace: ns, DocID: docID})
			}
		}
	}
	return out
}

// Stats computes aggregate counts across every namespace.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Stats{Namespaces: make(map[string]int, len(s.namespaces))}
	for ns, bucket := range s.namespaces {
		out.Namespaces[ns] = len(bucket)
		out.TotalDocuments += len(bucket)
		for _, rec := range bucket {
			out.TotalChunks += len(rec.Chunks)
		}
	}
	return out
}
