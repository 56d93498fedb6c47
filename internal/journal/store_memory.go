package journal

import (
	"context"
	"sort"
	"sync"

	"eet/pkg/platform/sentinel"
)

// InMemoryStore keeps entries in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.MessageUUID] = append(s.entries[e.MessageUUID], e)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, messageUUID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.entries[messageUUID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// ListByStatus returns the latest attempt of every receipt whose latest
// attempt has one of the statuses, ordered by attempt time.
func (s *InMemoryStore) ListByStatus(_ context.Context, statuses ...Status) ([]Entry, error) {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entries := range s.entries {
		if latest, ok := Latest(entries); ok && want[latest.Status] {
			out = append(out, latest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.Before(out[j].AttemptedAt) })
	return out, nil
}
