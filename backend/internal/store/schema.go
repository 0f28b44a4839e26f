package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
// Never edit a released entry, append a new one.
var migrations = []string{
	// 1: primary entities
	`
	CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE,
		email         TEXT    NOT NULL UNIQUE,
		password_hash TEXT    NOT NULL,
		avatar        TEXT    NOT NULL DEFAULT '',
		bio           TEXT    NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	);

	CREATE TABLE categories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		parent_id   INTEGER REFERENCES categories(id) ON DELETE CASCADE,
		name        TEXT    NOT NULL,
		slug        TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		color       TEXT    NOT NULL DEFAULT '#1890ff',
		icon        TEXT    NOT NULL DEFAULT '',
		is_active   INTEGER NOT NULL DEFAULT 1,
		sort_order  INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL,
		UNIQUE (owner_id, slug)
	);
	CREATE INDEX idx_categories_parent ON categories(owner_id, parent_id);

	CREATE TABLE tags (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name        TEXT    NOT NULL,
		slug        TEXT    NOT NULL,
		color       TEXT    NOT NULL DEFAULT '#1890ff',
		description TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL,
		UNIQUE (owner_id, slug),
		UNIQUE (owner_id, name)
	);

	CREATE TABLE notes (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id       INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title          TEXT    NOT NULL,
		slug           TEXT    NOT NULL UNIQUE,
		content        TEXT    NOT NULL DEFAULT '',
		content_format TEXT    NOT NULL DEFAULT 'markdown',
		plain_text     TEXT    NOT NULL DEFAULT '',
		cover_image    TEXT    NOT NULL DEFAULT '',
		category_id    INTEGER REFERENCES categories(id) ON DELETE SET NULL,
		is_pinned      INTEGER NOT NULL DEFAULT 0,
		is_archived    INTEGER NOT NULL DEFAULT 0,
		archived_at    INTEGER,
		view_count     INTEGER NOT NULL DEFAULT 0,
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL
	);
	CREATE INDEX idx_notes_owner_created ON notes(owner_id, created_at);
	CREATE INDEX idx_notes_owner_archived ON notes(owner_id, is_archived);
	CREATE INDEX idx_notes_category ON notes(category_id);

	CREATE TABLE note_tags (
		note_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		tag_id  INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (note_id, tag_id)
	);
	CREATE INDEX idx_note_tags_tag ON note_tags(tag_id);

	-- symmetric: both directions are stored
	CREATE TABLE note_relations (
		note_id    INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		related_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		PRIMARY KEY (note_id, related_id),
		CHECK (note_id <> related_id)
	);

	CREATE TABLE collections (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title        TEXT    NOT NULL DEFAULT '',
		description  TEXT    NOT NULL DEFAULT '',
		url          TEXT    NOT NULL,
		domain       TEXT    NOT NULL DEFAULT '',
		favicon      TEXT    NOT NULL DEFAULT '',
		image        TEXT    NOT NULL DEFAULT '',
		content      TEXT    NOT NULL DEFAULT '',
		html_content TEXT    NOT NULL DEFAULT '',
		is_processed INTEGER NOT NULL DEFAULT 0,
		word_count   INTEGER NOT NULL DEFAULT 0,
		view_count   INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	);
	CREATE INDEX idx_collections_owner_created ON collections(owner_id, created_at);

	CREATE TABLE attachments (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		note_id    INTEGER REFERENCES notes(id) ON DELETE SET NULL,
		name       TEXT    NOT NULL,
		path       TEXT    NOT NULL,
		file_type  TEXT    NOT NULL,
		mime_type  TEXT    NOT NULL DEFAULT '',
		size       INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX idx_attachments_owner_note ON attachments(owner_id, note_id);
	`,

	// 2: derived graph
	`
	CREATE TABLE graph_nodes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind       TEXT    NOT NULL,
		source_id  INTEGER NOT NULL,
		title      TEXT    NOT NULL,
		label      TEXT    NOT NULL DEFAULT '',
		meta       TEXT    NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (owner_id, kind, source_id)
	);

	CREATE TABLE graph_links (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		source_id   INTEGER NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		target_id   INTEGER NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		kind        TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		UNIQUE (source_id, target_id)
	);
	CREATE INDEX idx_graph_links_owner ON graph_links(owner_id);
	CREATE INDEX idx_graph_links_target ON graph_links(target_id);
	`,
}

// Migrate brings the schema up to date
func (d *DB) Migrate(ctx context.Context) error {
	var version int
	if err := d.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		sqlTx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("starting migration %d: %w", i+1, err)
		}
		if _, err := sqlTx.ExecContext(ctx, migrations[i]); err != nil {
			_ = sqlTx.Rollback()
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := sqlTx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = sqlTx.Rollback()
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
		d.logger.Info("Applied migration", zap.Int("version", i+1))
	}
	return nil
}

// SchemaVersion reports how many migrations have been applied
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := d.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
}
