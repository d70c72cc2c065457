package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is a stored value together with the time it was written.
type Entry[V any] struct {
	Key       string    `json:"key"`
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a write-once map from label to value, safe for concurrent use.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates an empty Store.
func New[V any]() *Store[V] {
	return &Store[V]{entries: make(map[string]Entry[V])}
}

// Get retrieves the value stored under key. Returns (zero, false) on miss.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.misses.Add(1)
		var zero V
		return zero, false
	}
	s.hits.Add(1)
	return e.Value, true
}

// Peek is Get without touching the hit and miss counters.
func (s *Store[V]) Peek(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e.Value, ok
}

// PutIfAbsent stores v under key unless key is already present.
// It returns the value now stored and whether v was the one written.
func (s *Store[V]) PutIfAbsent(key string, v V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.Value, false
	}
	s.entries[key] = Entry[V]{Key: key, Value: v, CreatedAt: time.Now()}
	return v, true
}

// Len returns the number of entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns the stored entries sorted by key.
func (s *Store[V]) Entries() []Entry[V] {
	s.mu.RLock()
	out := make([]Entry[V], 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats returns cache statistics.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// GetStats returns information about the store.
func (s *Store[V]) GetStats() Stats {
	return Stats{
		Entries: s.Len(),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}

// Export writes all entries to w as an indented JSON array.
func (s *Store[V]) Export(w io.Writer) error {
	data, err := json.MarshalIndent(s.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache entries: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing cache entries: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
