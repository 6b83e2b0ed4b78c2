package store

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version" yaml:"current_version"`
	AvailableVersion int             `json:"available_version" yaml:"available_version"`
	Pending          []MigrationInfo `json:"pending" yaml:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: moments, poems, gallery, home cards",
		SQL: `
CREATE TABLE IF NOT EXISTS moments (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  date_ms INTEGER NOT NULL,
  body TEXT,
  media_bucket TEXT,
  media_object_id TEXT,
  media_filename TEXT,
  media_content_type TEXT,
  media_length INTEGER,
  tags_json TEXT,
  meta_json TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  CHECK (media_object_id IS NULL OR body IS NULL)
);

CREATE TABLE IF NOT EXISTS poems (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  lines_json TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gallery_images (
  id TEXT PRIMARY KEY,
  src TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  caption TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS home_cards (
  id TEXT PRIMARY KEY,
  href TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  icon TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_moments_date_desc ON moments(date_ms DESC);
CREATE INDEX IF NOT EXISTS idx_moments_type_date_desc ON moments(type, date_ms DESC);
CREATE INDEX IF NOT EXISTS idx_gallery_created_desc ON gallery_images(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_gallery_title ON gallery_images(title);
`,
	},
	{
		Version:     2,
		Description: "chunked object store: blob_objects and blob_chunks",
		SQL: `
CREATE TABLE IF NOT EXISTS blob_objects (
  id TEXT PRIMARY KEY,
  bucket TEXT NOT NULL,
  filename TEXT NOT NULL,
  content_type TEXT,
  length INTEGER NOT NULL,
  chunk_size INTEGER NOT NULL,
  upload_ms INTEGER NOT NULL,
  digest TEXT,
  metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS blob_chunks (
  object_id TEXT NOT NULL,
  n INTEGER NOT NULL,
  data BLOB NOT NULL,
  created_ms INTEGER NOT NULL,
  PRIMARY KEY (object_id, n)
);

CREATE INDEX IF NOT EXISTS idx_blob_objects_bucket_upload ON blob_objects(bucket, upload_ms DESC);
CREATE INDEX IF NOT EXISTS idx_blob_chunks_created ON blob_chunks(created_ms);
`,
	},
	{
		Version:     3,
		Description: "legacy embedded video records kept for migration",
		SQL: `
CREATE TABLE IF NOT EXISTS legacy_videos (
  id TEXT PRIMARY KEY,
  filename TEXT,
  data BLOB,
  content_type TEXT,
  created_at TEXT,
  updated_at TEXT
);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func orderedMigrations() []Migration {
	out := slices.Clone(migrations)
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out
}

// migrationState creates the bookkeeping table if needed and returns the
// highest applied version together with every migration above it.
func migrationState(db *sql.DB) (int, []Migration, error) {
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		return 0, nil, fmt.Errorf("create migrations table: %w", err)
	}
	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, nil, fmt.Errorf("read schema version: %w", err)
	}
	all := orderedMigrations()
	idx := slices.IndexFunc(all, func(m Migration) bool { return m.Version > current })
	if idx < 0 {
		return current, nil, nil
	}
	return current, all[idx:], nil
}

func currentVersion(db *sql.DB) (int, error) {
	current, _, err := migrationState(db)
	return current, err
}

// applyMigrations runs each pending step in its own transaction and returns
// the ones it committed.
func applyMigrations(db *sql.DB) ([]MigrationInfo, error) {
	_, pending, err := migrationState(db)
	if err != nil {
		return nil, err
	}
	applied := make([]MigrationInfo, 0, len(pending))
	for _, m := range pending {
		if err := applyOne(db, m); err != nil {
			return applied, err
		}
		applied = append(applied, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return applied, nil
}

func applyOne(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	_, err := applyMigrations(db)
	return err
}

// MigrationPlan reports the schema version of db without changing the schema.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, pending, err := migrationState(db)
	if err != nil {
		return nil, err
	}
	status := &MigrationStatus{CurrentVersion: current, AvailableVersion: current}
	if all := orderedMigrations(); len(all) > 0 {
		status.AvailableVersion = all[len(all)-1].Version
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}

// InspectMigrations opens path without migrating it and returns its plan.
func InspectMigrations(path string) (*MigrationStatus, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return MigrationPlan(db)
}

// Migrate opens path, applies pending migrations and reports what ran.
func Migrate(path string) ([]MigrationInfo, *MigrationStatus, error) {
	if path == "" {
		return nil, nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()
	applied, err := applyMigrations(db)
	if err != nil {
		return applied, nil, err
	}
	status, err := MigrationPlan(db)
	return applied, status, err
}
