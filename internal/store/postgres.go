package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orimap/orimap/internal/typeid"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS map_snapshots (
	id TEXT PRIMARY KEY,
	map_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	format TEXT NOT NULL,
	data BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (map_id, version)
)`

// Postgres stores snapshots in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure snapshot table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Save(ctx context.Context, mapID, format string, data []byte) (*Snapshot, error) {
	snap := &Snapshot{
		ID:     typeid.NewSnapshotID(),
		MapID:  mapID,
		Format: format,
		Size:   len(data),
		Data:   data,
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO map_snapshots (id, map_id, version, format, data)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4
		FROM map_snapshots WHERE map_id = $2
		RETURNING version, created_at`,
		snap.ID, mapID, format, data,
	).Scan(&snap.Version, &snap.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func (p *Postgres) Latest(ctx context.Context, mapID string) (*Snapshot, error) {
	return p.get(ctx, `
		SELECT id, map_id, version, format, data, created_at
		FROM map_snapshots WHERE map_id = $1
		ORDER BY version DESC LIMIT 1`, mapID)
}

func (p *Postgres) Get(ctx context.Context, mapID string, version int) (*Snapshot, error) {
	return p.get(ctx, `
		SELECT id, map_id, version, format, data, created_at
		FROM map_snapshots WHERE map_id = $1 AND version = $2`, mapID, version)
}

func (p *Postgres) get(ctx context.Context, query string, args ...any) (*Snapshot, error) {
	var s Snapshot
	err := p.pool.QueryRow(ctx, query, args...).Scan(&s.ID, &s.MapID, &s.Version, &s.Format, &s.Data, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	s.Size = len(s.Data)
	return &s, nil
}

func (p *Postgres) List(ctx context.Context, mapID string) ([]Snapshot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, map_id, version, format, octet_length(data), created_at
		FROM map_snapshots WHERE map_id = $1
		ORDER BY version DESC`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Snapshot, error) {
		var s Snapshot
		err := row.Scan(&s.ID, &s.MapID, &s.Version, &s.Format, &s.Size, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return snaps, nil
}

func (p *Postgres) Maps(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT map_id FROM map_snapshots ORDER BY map_id`)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan maps: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Delete(ctx context.Context, mapID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM map_snapshots WHERE map_id = $1`, mapID)
	if err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
