package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"VideoScanner/internal/domain"
)

var itemColumns = []string{
	"id", "title", "description", "source_id", "source_name", "origin",
	"published_at", "thumbnail_url", "url", "views", "likes", "comments",
	"engagement_rate", "category", "priority", "quality_score",
	"is_official_source", "is_spam", "dispatch_state", "fingerprint",
	"created_at", "updated_at", "dispatched_at",
}

// ExistingIDs returns a map with IDs that already exist in storage.
func (r *SQLRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	var where sq.Sqlizer = sq.Eq{"id": ids}
	if r.dialect == DialectPostgres {
		where = sq.Expr("id = ANY(?)", pq.StringArray(ids))
	}

	rows, err := r.query(ctx, r.sb.Select("id").From("content_items").Where(where))
	if err != nil {
		return nil, fmt.Errorf("query existing: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// InsertItem stores the item unless its id exists; the first write wins.
func (r *SQLRepository) InsertItem(ctx context.Context, item domain.ContentItem) (bool, error) {
	if !item.DispatchState.Valid() {
		return false, fmt.Errorf("insert item %s: unknown dispatch state %q", item.ID, item.DispatchState)
	}
	b := r.sb.Insert("content_items").
		Columns(itemColumns...).
		Values(
			item.ID, item.Title, item.Description, item.SourceID, item.SourceName, item.Origin,
			item.PublishedAt.UTC(), item.ThumbnailURL, item.URL,
			item.Metrics.Views, item.Metrics.Likes, item.Metrics.Comments,
			item.EngagementRate, string(item.Category), item.Priority, item.QualityScore,
			item.IsOfficialSource, item.IsSpam, string(item.DispatchState), item.Fingerprint,
			item.CreatedAt.UTC(), item.UpdatedAt.UTC(), nullTime(item.DispatchedAt),
		).
		Suffix("ON CONFLICT (id) DO NOTHING")

	res, err := r.exec(ctx, b)
	if err != nil {
		return false, fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert item %s: rows affected: %w", item.ID, err)
	}
	return n > 0, nil
}

// GetItem loads one item or returns domain.ErrNotFound.
func (r *SQLRepository) GetItem(ctx context.Context, id string) (domain.ContentItem, error) {
	query, args, err := r.sb.Select(itemColumns...).From("content_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("build query: %w", err)
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContentItem{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// TransitionDispatch performs a compare-and-set on dispatch_state.
func (r *SQLRepository) TransitionDispatch(ctx context.Context, id string, from []domain.DispatchState, to domain.DispatchState, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	b := r.sb.Update("content_items").
		Set("dispatch_state", string(to)).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id, "dispatch_state": stateStrings(from)})
	if to.Published() {
		b = b.Set("dispatched_at", at.UTC())
	}

	res, err := r.exec(ctx, b)
	if err != nil {
		return false, fmt.Errorf("transition %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

// MarkSpam sets the spam flag and moves the item to `to` when it sits in one of `from`.
func (r *SQLRepository) MarkSpam(ctx context.Context, id string, from []domain.DispatchState, to domain.DispatchState, at time.Time) error {
	b := r.sb.Update("content_items").
		Set("is_spam", true).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id})

	if len(from) > 0 {
		args := make([]any, 0, len(from)+1)
		for _, s := range from {
			args = append(args, string(s))
		}
		args = append(args, string(to))
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
		b = b.Set("dispatch_state", sq.Expr(
			"CASE WHEN dispatch_state IN ("+placeholders+") THEN ? ELSE dispatch_state END", args...))
	}

	res, err := r.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("mark spam %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark spam %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByState returns items in the given states, highest priority and newest first.
func (r *SQLRepository) ListByState(ctx context.Context, states []domain.DispatchState, limit int) ([]domain.ContentItem, error) {
	if len(states) == 0 {
		return nil, nil
	}
	b := r.sb.Select(itemColumns...).From("content_items").
		Where(sq.Eq{"dispatch_state": stateStrings(states)}).
		OrderBy("priority DESC", "published_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.listItems(ctx, b)
}

// ListRecent returns items published at or after since, newest first.
func (r *SQLRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.ContentItem, error) {
	b := r.sb.Select(itemColumns...).From("content_items").
		Where(sq.GtOrEq{"published_at": since.UTC()}).
		OrderBy("published_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.listItems(ctx, b)
}

// CategoryCounts aggregates non-spam items ingested since the given time.
func (r *SQLRepository) CategoryCounts(ctx context.Context, since time.Time) (map[domain.Category]int, error) {
	b := r.sb.Select("category", "COUNT(*)").From("content_items").
		Where(sq.And{sq.GtOrEq{"created_at": since.UTC()}, sq.Eq{"is_spam": false}}).
		GroupBy("category")

	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := map[domain.Category]int{}
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out[domain.Category(category)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) listItems(ctx context.Context, b sq.SelectBuilder) ([]domain.ContentItem, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.ContentItem, error) {
	var (
		item       domain.ContentItem
		category   string
		state      string
		dispatched sql.NullTime
	)
	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &item.SourceID, &item.SourceName, &item.Origin,
		&item.PublishedAt, &item.ThumbnailURL, &item.URL,
		&item.Metrics.Views, &item.Metrics.Likes, &item.Metrics.Comments,
		&item.EngagementRate, &category, &item.Priority, &item.QualityScore,
		&item.IsOfficialSource, &item.IsSpam, &state, &item.Fingerprint,
		&item.CreatedAt, &item.UpdatedAt, &dispatched,
	)
	if err != nil {
		return domain.ContentItem{}, err
	}
	item.Category = domain.Category(category)
	item.DispatchState = domain.DispatchState(state)
	if !item.DispatchState.Valid() {
		return domain.ContentItem{}, fmt.Errorf("item %s: unknown dispatch state %q", item.ID, state)
	}
	item.PublishedAt = item.PublishedAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if dispatched.Valid {
		t := dispatched.Time.UTC()
		item.DispatchedAt = &t
	}
	return item, nil
}

func stateStrings(states []domain.DispatchState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
