package storage

import (
	"context"
	"fmt"
	"strings"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS content_items (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    source_id          TEXT NOT NULL,
    source_name        TEXT NOT NULL DEFAULT '',
    origin             TEXT NOT NULL DEFAULT '',
    published_at       {{ts}} NOT NULL,
    thumbnail_url      TEXT NOT NULL DEFAULT '',
    url                TEXT NOT NULL DEFAULT '',
    views              BIGINT NOT NULL DEFAULT 0,
    likes              BIGINT NOT NULL DEFAULT 0,
    comments           BIGINT NOT NULL DEFAULT 0,
    engagement_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
    category           TEXT NOT NULL,
    priority           INTEGER NOT NULL,
    quality_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_official_source BOOLEAN NOT NULL DEFAULT FALSE,
    is_spam            BOOLEAN NOT NULL DEFAULT FALSE,
    dispatch_state     TEXT NOT NULL,
    fingerprint        TEXT NOT NULL,
    created_at         {{ts}} NOT NULL,
    updated_at         {{ts}} NOT NULL,
    dispatched_at      {{ts}}
);
CREATE INDEX IF NOT EXISTS idx_content_items_state_priority ON content_items (dispatch_state, priority DESC);
CREATE INDEX IF NOT EXISTS idx_content_items_published ON content_items (published_at DESC);
CREATE INDEX IF NOT EXISTS idx_content_items_category ON content_items (category);
CREATE TABLE IF NOT EXISTS cycle_stats (
    day                 TEXT PRIMARY KEY,
    cycles              INTEGER NOT NULL DEFAULT 0,
    items_found         INTEGER NOT NULL DEFAULT 0,
    auto_published      INTEGER NOT NULL DEFAULT 0,
    manually_published  INTEGER NOT NULL DEFAULT 0,
    spam_filtered       INTEGER NOT NULL DEFAULT 0,
    duplicates_filtered INTEGER NOT NULL DEFAULT 0,
    api_cost            INTEGER NOT NULL DEFAULT 0,
    source_failures     INTEGER NOT NULL DEFAULT 0,
    dispatch_failures   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS sources (
    id           TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    kind         TEXT NOT NULL,
    verified     BOOLEAN NOT NULL DEFAULT FALSE,
    boost        INTEGER NOT NULL DEFAULT 0,
    scanner      TEXT NOT NULL DEFAULT '',
    created_at   {{ts}} NOT NULL,
    updated_at   {{ts}} NOT NULL
);
`

// Migrate creates tables and indexes when they are missing.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if r.dialect == DialectSQLite {
		ts = "TIMESTAMP"
	}
	ddl := strings.ReplaceAll(schemaTemplate, "{{ts}}", ts)

	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
