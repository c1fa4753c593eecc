package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"VideoScanner/internal/domain"
)

var statsCounters = []string{
	"cycles", "items_found", "auto_published", "manually_published", "spam_filtered",
	"duplicates_filtered", "api_cost", "source_failures", "dispatch_failures",
}

// AddDailyStats adds the delta onto the day's row, creating it when absent.
func (r *SQLRepository) AddDailyStats(ctx context.Context, delta domain.CycleStatistics) error {
	if delta.Day == "" {
		return fmt.Errorf("stats delta without day")
	}

	updates := make([]string, len(statsCounters))
	for i, col := range statsCounters {
		updates[i] = fmt.Sprintf("%s = cycle_stats.%s + EXCLUDED.%s", col, col, col)
	}

	b := r.sb.Insert("cycle_stats").
		Columns(append([]string{"day"}, statsCounters...)...).
		Values(
			delta.Day, delta.Cycles, delta.ItemsFound, delta.AutoPublished, delta.ManuallyPublished,
			delta.SpamFiltered, delta.DuplicatesFiltered, delta.APICost, delta.SourceFailures,
			delta.DispatchFailures,
		).
		Suffix("ON CONFLICT (day) DO UPDATE SET " + strings.Join(updates, ", "))

	if _, err := r.exec(ctx, b); err != nil {
		return fmt.Errorf("upsert stats %s: %w", delta.Day, err)
	}
	return nil
}

// DailyStats returns the counters for a day; a missing row reads as zeros.
func (r *SQLRepository) DailyStats(ctx context.Context, day string) (domain.CycleStatistics, error) {
	query, args, err := r.sb.Select(statsCounters...).From("cycle_stats").Where(sq.Eq{"day": day}).ToSql()
	if err != nil {
		return domain.CycleStatistics{}, fmt.Errorf("build query: %w", err)
	}

	stats := domain.CycleStatistics{Day: day}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Cycles, &stats.ItemsFound, &stats.AutoPublished, &stats.ManuallyPublished,
		&stats.SpamFiltered, &stats.DuplicatesFiltered, &stats.APICost, &stats.SourceFailures,
		&stats.DispatchFailures,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CycleStatistics{Day: day}, nil
	}
	if err != nil {
		return domain.CycleStatistics{}, fmt.Errorf("get stats %s: %w", day, err)
	}
	return stats, nil
}
