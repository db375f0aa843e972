// Package store keeps versioned snapshots of map documents. Every save adds
// a new version; older versions stay readable.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	// ErrConflict is returned when a concurrent save took the same version.
	ErrConflict = errors.New("snapshot version conflict")
)

// Snapshot is one saved version of a map. Data holds the document encoded
// in the named format.
type Snapshot struct {
	ID        string    `json:"id"`
	MapID     string    `json:"mapId"`
	Version   int       `json:"version"`
	Format    string    `json:"format"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Data      []byte    `json:"-"`
}

type Store interface {
	// Save stores data as the next version of mapID.
	Save(ctx context.Context, mapID, format string, data []byte) (*Snapshot, error)
	Latest(ctx context.Context, mapID string) (*Snapshot, error)
	Get(ctx context.Context, mapID string, version int) (*Snapshot, error)
	// List returns the versions of mapID, newest first, without data.
	List(ctx context.Context, mapID string) ([]Snapshot, error)
	// Maps returns the ids of every stored map.
	Maps(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, mapID string) error
	Close() error
}
