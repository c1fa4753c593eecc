package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"VideoScanner/internal/domain"
	"VideoScanner/internal/ports"
)

// MemoryRepository keeps everything in process memory. It backs deployments
// without a database DSN and the engine tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	items   map[string]domain.ContentItem
	stats   map[string]domain.CycleStatistics
	sources map[string]domain.SourceEntry
}

var _ ports.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:   map[string]domain.ContentItem{},
		stats:   map[string]domain.CycleStatistics{},
		sources: map[string]domain.SourceEntry{},
	}
}

// ExistingIDs reports which of ids are already stored.
func (m *MemoryRepository) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// InsertItem stores item unless its id exists; the first write wins.
func (m *MemoryRepository) InsertItem(_ context.Context, item domain.ContentItem) (bool, error) {
	if !item.DispatchState.Valid() {
		return false, fmt.Errorf("insert item %s: unknown dispatch state %q", item.ID, item.DispatchState)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[item.ID]; ok {
		return false, nil
	}
	m.items[item.ID] = cloneItem(item)
	return true, nil
}

// GetItem returns a copy of the item or domain.ErrNotFound.
func (m *MemoryRepository) GetItem(_ context.Context, id string) (domain.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return domain.ContentItem{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return cloneItem(item), nil
}

// TransitionDispatch moves the item to `to` only if its state is one of `from`.
func (m *MemoryRepository) TransitionDispatch(_ context.Context, id string, from []domain.DispatchState, to domain.DispatchState, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok || !slices.Contains(from, item.DispatchState) {
		return false, nil
	}
	item.DispatchState = to
	item.UpdatedAt = at.UTC()
	if to.Published() {
		ts := at.UTC()
		item.DispatchedAt = &ts
	}
	m.items[id] = item
	return true, nil
}

// MarkSpam sets the spam flag and discards the item when its state is in `from`.
func (m *MemoryRepository) MarkSpam(_ context.Context, id string, from []domain.DispatchState, to domain.DispatchState, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	item.IsSpam = true
	item.UpdatedAt = at.UTC()
	if slices.Contains(from, item.DispatchState) {
		item.DispatchState = to
	}
	m.items[id] = item
	return nil
}

// ListByState returns items in states, highest priority first.
func (m *MemoryRepository) ListByState(_ context.Context, states []domain.DispatchState, limit int) ([]domain.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ContentItem
	for _, item := range m.items {
		if slices.Contains(states, item.DispatchState) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return truncate(out, limit), nil
}

// ListRecent returns items published at or after since, newest first.
func (m *MemoryRepository) ListRecent(_ context.Context, since time.Time, limit int) ([]domain.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ContentItem
	for _, item := range m.items {
		if !item.PublishedAt.Before(since) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return truncate(out, limit), nil
}

// CategoryCounts counts non-spam items created since the given time.
func (m *MemoryRepository) CategoryCounts(_ context.Context, since time.Time) (map[domain.Category]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := map[domain.Category]int{}
	for _, item := range m.items {
		if item.IsSpam || item.CreatedAt.Before(since) {
			continue
		}
		out[item.Category]++
	}
	return out, nil
}

// AddDailyStats adds delta to the counters of delta.Day.
func (m *MemoryRepository) AddDailyStats(_ context.Context, delta domain.CycleStatistics) error {
	if delta.Day == "" {
		return fmt.Errorf("stats delta without day")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.stats[delta.Day]
	current.Day = delta.Day
	current.Add(delta)
	m.stats[delta.Day] = current
	return nil
}

// DailyStats returns the counters for day, zero when nothing was recorded.
func (m *MemoryRepository) DailyStats(_ context.Context, day string) (domain.CycleStatistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[day]
	if !ok {
		return domain.CycleStatistics{Day: day}, nil
	}
	return stats, nil
}

// UpsertSource creates or replaces a source entry, keeping its creation time.
func (m *MemoryRepository) UpsertSource(_ context.Context, entry domain.SourceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sources[entry.ID]; ok && !existing.CreatedAt.IsZero() {
		entry.CreatedAt = existing.CreatedAt
	}
	m.sources[entry.ID] = entry
	return nil
}

// ListSources returns stored sources ordered by id.
func (m *MemoryRepository) ListSources(_ context.Context) ([]domain.SourceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SourceEntry, 0, len(m.sources))
	for _, entry := range m.sources {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneItem(item domain.ContentItem) domain.ContentItem {
	if item.DispatchedAt != nil {
		ts := *item.DispatchedAt
		item.DispatchedAt = &ts
	}
	return item
}

func truncate(items []domain.ContentItem, limit int) []domain.ContentItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
