package results

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memrepo is a development-only archive used when DATABASE_URL is empty.
type memrepo struct {
	mu    sync.RWMutex
	games map[string]Record
}

func NewMemoryRepository() Repository {
	return &memrepo{games: make(map[string]Record)}
}

func (m *memrepo) SaveResult(_ context.Context, r *Record) error {
	if r == nil {
		return nil
	}
	cp := *r
	cp.DurationMS = durationMS(r)
	cp.States = append([]StateRow(nil), r.States...)

	m.mu.Lock()
	m.games[strings.TrimSpace(r.GameID)] = cp
	m.mu.Unlock()
	return nil
}

func (m *memrepo) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	items := make([]Record, 0, len(m.games))
	for _, r := range m.games {
		r.States = nil
		items = append(items, r)
	}
	m.mu.RUnlock()

	// EndedAt desc, then id for a stable order
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].GameID < items[j].GameID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) Get(_ context.Context, gameID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.games[strings.TrimSpace(gameID)]
	if !ok {
		return nil, ErrNotFound
	}
	r.States = append([]StateRow(nil), r.States...)
	return &r, nil
}

func (m *memrepo) Close() error { return nil }
