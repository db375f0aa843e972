package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/orimap/orimap/internal/typeid"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS map_snapshots (
	id TEXT PRIMARY KEY,
	map_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	format TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (map_id, version)
)`

// SQLite stores snapshots in a single file. Writes are serialized.
type SQLite struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	now  func() time.Time
}

var _ Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "orimap.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &SQLite{db: db, path: path, now: time.Now}, nil
}

func (s *SQLite) Save(ctx context.Context, mapID, format string, data []byte) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		ID:        typeid.NewSnapshotID(),
		MapID:     mapID,
		Format:    format,
		Size:      len(data),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
		Data:      data,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO map_snapshots (id, map_id, version, format, data, created_at)
		SELECT ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?
		FROM map_snapshots WHERE map_id = ?
		RETURNING version`,
		snap.ID, mapID, format, data, snap.CreatedAt.UnixMilli(), mapID,
	).Scan(&snap.Version)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLite) Latest(ctx context.Context, mapID string) (*Snapshot, error) {
	return s.get(ctx, `
		SELECT id, map_id, version, format, data, created_at
		FROM map_snapshots WHERE map_id = ?
		ORDER BY version DESC LIMIT 1`, mapID)
}

func (s *SQLite) Get(ctx context.Context, mapID string, version int) (*Snapshot, error) {
	return s.get(ctx, `
		SELECT id, map_id, version, format, data, created_at
		FROM map_snapshots WHERE map_id = ? AND version = ?`, mapID, version)
}

func (s *SQLite) get(ctx context.Context, query string, args ...any) (*Snapshot, error) {
	var snap Snapshot
	var created int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.MapID, &snap.Version, &snap.Format, &snap.Data, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	snap.Size = len(snap.Data)
	snap.CreatedAt = time.UnixMilli(created).UTC()
	return &snap, nil
}

func (s *SQLite) List(ctx context.Context, mapID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, map_id, version, format, length(data), created_at
		FROM map_snapshots WHERE map_id = ?
		ORDER BY version DESC`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var created int64
		if err := rows.Scan(&snap.ID, &snap.MapID, &snap.Version, &snap.Format, &snap.Size, &created); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CreatedAt = time.UnixMilli(created).UTC()
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *SQLite) Maps(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT map_id FROM map_snapshots ORDER BY map_id`)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan map id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, mapID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM map_snapshots WHERE map_id = ?`, mapID)
	if err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }
