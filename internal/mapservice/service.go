// Package mapservice hosts open map documents behind an HTTP API. Each open
// map is a session owning one engine; requests for the same map are
// serialized.
package mapservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/engine"
	"github.com/orimap/orimap/internal/events"
	"github.com/orimap/orimap/internal/format"
	"github.com/orimap/orimap/internal/store"
	"github.com/orimap/orimap/internal/symbolset"
)

var (
	ErrNoSession = errors.New("no open session for map")
	ErrBadIndex  = errors.New("index out of range")
	ErrUnknownOp = errors.New("unknown command")
)

// Session is one open map.
type Session struct {
	mu     sync.Mutex
	ID     string
	Opened time.Time
	engine *engine.Engine
}

// Do runs fn with exclusive access to the session's engine.
func (s *Session) Do(fn func(e *engine.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

type Options struct {
	// UndoLimit caps the undo history of every map, 0 for unlimited.
	UndoLimit int
	// SymbolSet seeds new maps. Nil uses the builtin preset.
	SymbolSet *symbolset.Set
	Logger    *slog.Logger
}

type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store   store.Store
	hub     *events.Hub
	metrics *Metrics
	opts    Options
	logger  *slog.Logger
}

// NewService creates a service. hub and metrics may be nil.
func NewService(st store.Store, hub *events.Hub, metrics *Metrics, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SymbolSet == nil {
		opts.SymbolSet = symbolset.Default()
	}
	return &Service{
		sessions: make(map[string]*Session),
		store:    st,
		hub:      hub,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
}

func (s *Service) newSession(e *engine.Engine) *Session {
	sess := &Session{
		ID:     e.Map().ID,
		Opened: time.Now(),
		engine: e,
	}
	e.SetLogger(s.logger.With("map", sess.ID))
	e.OnMapChanged(func(m *document.Map) {
		// Imports and restores keep the identity of the session.
		m.ID = sess.ID
		m.UndoManager().SetLimit(s.opts.UndoLimit)
		if s.hub != nil {
			s.hub.Attach(sess.ID, m)
			s.hub.Invalidate(sess.ID)
		}
	})
	return sess
}

// register adds sess unless a session for the same map exists, which is
// then returned instead.
func (s *Service) register(sess *Session) *Session {
	s.mu.Lock()
	if existing, ok := s.sessions[sess.ID]; ok {
		s.mu.Unlock()
		return existing
	}
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.setOpenSessions(n)
	s.logger.Info("map opened", "map", sess.ID)
	return sess
}

// Create opens a new map seeded with the configured symbol set. With
// sample the builtin sample map is used instead.
func (s *Service) Create(sample bool) (*Session, error) {
	e := engine.NewEngine()
	if sample {
		e.LoadSampleDocument()
	} else {
		m := document.NewMap()
		if err := s.opts.SymbolSet.Apply(m); err != nil {
			return nil, fmt.Errorf("apply symbol set: %w", err)
		}
		m.MarkSaved()
		e.SetMap(m, nil)
	}
	return s.register(s.newSession(e)), nil
}

// Open loads the latest snapshot of mapID. An already open session is
// returned as is.
func (s *Service) Open(ctx context.Context, mapID string) (*Session, []string, error) {
	if sess, err := s.Get(mapID); err == nil {
		return sess, nil, nil
	}

	snap, err := s.store.Latest(ctx, mapID)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}
	e := engine.NewEngine()
	warnings, err := e.LoadDocument(bytes.NewReader(snap.Data), snapshotPath(snap))
	if err != nil {
		return nil, nil, err
	}
	e.Map().ID = mapID
	e.FitToMap()

	sess := s.newSession(e)
	if registered := s.register(sess); registered != sess {
		// Another request opened the map meanwhile.
		return registered, nil, nil
	}
	return sess, warnings, nil
}

func (s *Service) Get(mapID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[mapID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Close drops the session of mapID. Unsaved changes are lost.
func (s *Service) Close(mapID string) error {
	s.mu.Lock()
	_, ok := s.sessions[mapID]
	delete(s.sessions, mapID)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	s.metrics.setOpenSessions(n)
	s.logger.Info("map closed", "map", mapID)
	return nil
}

// Sessions returns the ids of the open maps.
func (s *Service) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Save stores the map of mapID as a new snapshot in the given format, the
// native format when formatID is empty.
func (s *Service) Save(ctx context.Context, mapID, formatID string) (*store.Snapshot, error) {
	sess, err := s.Get(mapID)
	if err != nil {
		return nil, err
	}
	if formatID == "" {
		formatID = format.Default.DefaultFormat().ID()
	}

	var snap *store.Snapshot
	err = sess.Do(func(e *engine.Engine) error {
		var buf bytes.Buffer
		if err := e.SaveDocument(&buf, formatID); err != nil {
			return err
		}
		snap, err = s.store.Save(ctx, mapID, formatID, buf.Bytes())
		if err != nil {
			// The map is not saved after all.
			e.Map().SetHasUnsavedChanges(true)
			return fmt.Errorf("store snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("map saved", "map", mapID, "version", snap.Version, "format", formatID)
	return snap, nil
}

// Restore replaces the open map with a stored version.
func (s *Service) Restore(ctx context.Context, mapID string, version int) ([]string, error) {
	sess, err := s.Get(mapID)
	if err != nil {
		return nil, err
	}
	snap, err := s.store.Get(ctx, mapID, version)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var warnings []string
	err = sess.Do(func(e *engine.Engine) error {
		warnings, err = e.LoadDocument(bytes.NewReader(snap.Data), snapshotPath(snap))
		return err
	})
	return warnings, err
}

// CloseAll drops every session, logging maps with unsaved changes.
func (s *Service) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for id, sess := range sessions {
		sess.Do(func(e *engine.Engine) error {
			if e.Map().HasUnsavedChanges() {
				s.logger.Warn("closing map with unsaved changes", "map", id)
			}
			return nil
		})
	}
	s.metrics.setOpenSessions(0)
}

func snapshotPath(snap *store.Snapshot) string {
	if f := format.Default.FindByID(snap.Format); f != nil && len(f.Extensions()) > 0 {
		return snap.MapID + "." + f.Extensions()[0]
	}
	return snap.MapID
}
