package storage

import (
	"context"
	"fmt"

	"VideoScanner/internal/domain"
)

// UpsertSource stores a registry entry; later writes replace earlier ones.
func (r *SQLRepository) UpsertSource(ctx context.Context, entry domain.SourceEntry) error {
	b := r.sb.Insert("sources").
		Columns("id", "display_name", "kind", "verified", "boost", "scanner", "created_at", "updated_at").
		Values(entry.ID, entry.DisplayName, string(entry.Kind), entry.Verified, entry.Boost, entry.Scanner,
			entry.CreatedAt.UTC(), entry.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            kind = EXCLUDED.kind,
            verified = EXCLUDED.verified,
            boost = EXCLUDED.boost,
            scanner = EXCLUDED.scanner,
            updated_at = EXCLUDED.updated_at`)

	if _, err := r.exec(ctx, b); err != nil {
		return fmt.Errorf("upsert source %s: %w", entry.ID, err)
	}
	return nil
}

// ListSources returns every persisted entry ordered by id.
func (r *SQLRepository) ListSources(ctx context.Context) ([]domain.SourceEntry, error) {
	b := r.sb.Select("id", "display_name", "kind", "verified", "boost", "scanner", "created_at", "updated_at").
		From("sources").
		OrderBy("id")

	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceEntry
	for rows.Next() {
		var (
			entry domain.SourceEntry
			kind  string
		)
		if err := rows.Scan(&entry.ID, &entry.DisplayName, &kind, &entry.Verified, &entry.Boost,
			&entry.Scanner, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		entry.Kind = domain.SourceKind(kind)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entry.UpdatedAt = entry.UpdatedAt.UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
