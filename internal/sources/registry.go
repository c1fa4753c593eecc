// Package sources holds the trust registry for channels and queries.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"VideoScanner/internal/domain"
	"VideoScanner/internal/ports"
)

// trustMarkers promote unknown sources whose display name looks like a studio or label.
var trustMarkers = []string{"official", "studios", "productions", "music", "entertainment"}

// Registry maps source identifiers to trust metadata.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.SourceEntry
	store   ports.SourceRepository
	now     func() time.Time
}

// NewRegistry seeds the registry from static configuration. store may be nil.
func NewRegistry(seed []domain.SourceEntry, store ports.SourceRepository) *Registry {
	r := &Registry{
		entries: make(map[string]domain.SourceEntry, len(seed)),
		store:   store,
		now:     time.Now,
	}
	for _, entry := range seed {
		if entry.ID == "" {
			continue
		}
		r.entries[entry.ID] = normalize(entry)
	}
	return r
}

// Load merges persisted entries over the seed.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range stored {
		r.entries[entry.ID] = normalize(entry)
	}
	return nil
}

// Register upserts an entry; display name and boost are last-write-wins.
func (r *Registry) Register(ctx context.Context, entry domain.SourceEntry) (domain.SourceEntry, error) {
	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" {
		return domain.SourceEntry{}, fmt.Errorf("source id is empty")
	}
	if entry.Boost < 0 {
		return domain.SourceEntry{}, fmt.Errorf("boost must be >= 0, got %d", entry.Boost)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if existing, ok := r.entries[entry.ID]; ok {
		entry.CreatedAt = existing.CreatedAt
		if entry.Scanner == "" {
			entry.Scanner = existing.Scanner
		}
		if entry.Kind == "" {
			entry.Kind = existing.Kind
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry = normalize(entry)

	if r.store != nil {
		if err := r.store.UpsertSource(ctx, entry); err != nil {
			return domain.SourceEntry{}, fmt.Errorf("persist source %s: %w", entry.ID, err)
		}
	}
	r.entries[entry.ID] = entry
	return entry, nil
}

// Snapshot returns an immutable view for one cycle.
func (r *Registry) Snapshot() View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make(map[string]domain.SourceEntry, len(r.entries))
	for id, entry := range r.entries {
		entries[id] = entry
	}
	return View{entries: entries}
}

// Entries lists all entries ordered by id.
func (r *Registry) Entries() []domain.SourceEntry {
	return r.Snapshot().Entries()
}

// View is a read-only copy of the registry.
type View struct {
	entries map[string]domain.SourceEntry
}

// Lookup resolves trust for a source. Unknown sources default to (false, 0)
// unless the display name carries a trust marker.
func (v View) Lookup(sourceID, displayName string) domain.Trust {
	if entry, ok := v.entries[sourceID]; ok {
		return domain.Trust{Verified: entry.Verified, Boost: entry.Boost, Known: true}
	}
	if hasTrustMarker(displayName) {
		return domain.Trust{Verified: true, Boost: 1}
	}
	return domain.Trust{}
}

// Entries returns the sources ordered by boost (descending) then id, the
// order in which a cycle polls them.
func (v View) Entries() []domain.SourceEntry {
	list := make([]domain.SourceEntry, 0, len(v.entries))
	for _, entry := range v.entries {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Boost != list[j].Boost {
			return list[i].Boost > list[j].Boost
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Len returns the number of entries.
func (v View) Len() int {
	return len(v.entries)
}

func hasTrustMarker(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range trustMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func normalize(entry domain.SourceEntry) domain.SourceEntry {
	if entry.Kind == "" {
		entry.Kind = domain.InferSourceKind(entry.ID)
	}
	if entry.DisplayName == "" {
		entry.DisplayName = entry.ID
	}
	if entry.Boost < 0 {
		entry.Boost = 0
	}
	return entry
}
