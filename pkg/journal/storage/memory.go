package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/tracebridge/pkg/journal"
)

// MemoryStorage implements journal.Storage in memory. Entries are lost on
// restart; it serves tests and deployments that only want metrics.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*journal.Entry
	closed  bool
}

// NewMemoryStorage creates an empty in-memory journal.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append stores a copy of entry.
func (s *MemoryStorage) Append(ctx context.Context, entry *journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return journal.NewStorageError("memory", "append", journal.ErrClosed)
	}

	entryCopy := *entry
	s.entries = append(s.entries, &entryCopy)
	return nil
}

// Query returns copies of the matching entries.
func (s *MemoryStorage) Query(ctx context.Context, q *journal.Query) ([]*journal.Entry, error) {
	if q == nil {
		q = &journal.Query{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.matching(q)
	s.mu.RUnlock()

	sortEntries(matched, q.Ascending)

	start := q.Offset
	if start > len(matched) {
		return []*journal.Entry{}, nil
	}
	limit := journal.DefaultQueryLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	results := make([]*journal.Entry, 0, end-start)
	for _, e := range matched[start:end] {
		entryCopy := *e
		results = append(results, &entryCopy)
	}
	return results, nil
}

// Count returns the number of matching entries.
func (s *MemoryStorage) Count(ctx context.Context, q *journal.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matching(q))), nil
}

// Delete removes matching entries.
func (s *MemoryStorage) Delete(ctx context.Context, q *journal.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if q.Matches(e) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

// Trim keeps the newest keep entries.
func (s *MemoryStorage) Trim(ctx context.Context, keep int64) (int64, error) {
	if keep < 0 {
		return 0, &journal.QueryError{Field: "keep", Cause: fmt.Errorf("must be non-negative, got %d", keep)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(len(s.entries)) <= keep {
		return 0, nil
	}

	sortEntries(s.entries, false)
	deleted := int64(len(s.entries)) - keep
	s.entries = s.entries[:keep]
	return deleted, nil
}

// Ping fails once the storage is closed.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return journal.NewStorageError("memory", "ping", journal.ErrClosed)
	}
	return nil
}

// Close marks the storage closed and drops its entries.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}

// matching must be called with the lock held.
func (s *MemoryStorage) matching(q *journal.Query) []*journal.Entry {
	var out []*journal.Entry
	for _, e := range s.entries {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func sortEntries(entries []*journal.Entry, ascending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			if ascending {
				return a.RecordedAt.Before(b.RecordedAt)
			}
			return a.RecordedAt.After(b.RecordedAt)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}
