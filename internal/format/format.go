// Package format reads and writes map documents. Formats register with a
// Registry, which picks the importer for a file by its leading bytes or,
// failing that, by its file extension.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/view"
)

var (
	ErrUnknownFormat = errors.New("unknown map format")
	ErrNotSupported  = errors.New("operation not supported by format")
	ErrCorrupt       = errors.New("corrupt map file")
)

// Format is one file format. Import fills an empty map and its view and
// returns warnings about content it had to drop or replace.
type Format interface {
	ID() string
	Description() string
	Extensions() []string
	// Magic is the byte prefix identifying the format, nil if it has none.
	Magic() []byte
	CanImport() bool
	CanExport() bool
	Import(r io.Reader, m *document.Map, v *view.MapView) ([]string, error)
	Export(w io.Writer, m *document.Map, v *view.MapView) error
}

// Registry holds the known formats. The first registered format is the
// default for saving.
type Registry struct {
	formats []Format
}

func NewRegistry(formats ...Format) *Registry {
	r := &Registry{}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// Default knows every format of this package.
var Default = NewRegistry(Native{}, JSON{})

func (r *Registry) Register(f Format) {
	if r.FindByID(f.ID()) != nil {
		panic(fmt.Sprintf("format: %q registered twice", f.ID()))
	}
	r.formats = append(r.formats, f)
}

func (r *Registry) Formats() []Format { return r.formats }

func (r *Registry) DefaultFormat() Format {
	if len(r.formats) == 0 {
		return nil
	}
	return r.formats[0]
}

func (r *Registry) FindByID(id string) Format {
	for _, f := range r.formats {
		if f.ID() == id {
			return f
		}
	}
	return nil
}

// FindByExtension matches the extension of path case-insensitively.
func (r *Registry) FindByExtension(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return nil
	}
	for _, f := range r.formats {
		for _, e := range f.Extensions() {
			if e == ext {
				return f
			}
		}
	}
	return nil
}

// Sniff returns the importable format whose magic prefixes data.
func (r *Registry) Sniff(data []byte) Format {
	for _, f := range r.formats {
		if magic := f.Magic(); len(magic) > 0 && f.CanImport() && bytes.HasPrefix(data, magic) {
			return f
		}
	}
	return nil
}

// Load reads a document. The format is sniffed from the content and, if
// that fails, derived from the extension of path. On error nothing is
// returned, so callers never see a partially loaded map.
func (r *Registry) Load(rd io.Reader, path string) (*document.Map, *view.MapView, []string, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading map: %w", err)
	}
	f := r.Sniff(data)
	if f == nil {
		f = r.FindByExtension(path)
	}
	if f == nil || !f.CanImport() {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	m := document.NewMap()
	v := view.New(m)
	warnings, err := f.Import(bytes.NewReader(data), m, v)
	if err != nil {
		slog.Warn("import failed", "format", f.ID(), "path", path, "error", err)
		return nil, nil, nil, fmt.Errorf("importing %s: %w", f.ID(), err)
	}
	m.UpdateAllObjects(false)
	m.MarkSaved()
	return m, v, warnings, nil
}

// Save writes m and v in the format with the given id, the default format
// when id is empty. A successful save marks the map as saved.
func (r *Registry) Save(w io.Writer, id string, m *document.Map, v *view.MapView) error {
	f := r.DefaultFormat()
	if id != "" {
		f = r.FindByID(id)
	}
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, id)
	}
	if !f.CanExport() {
		return fmt.Errorf("%w: export to %s", ErrNotSupported, f.ID())
	}
	if err := f.Export(w, m, v); err != nil {
		slog.Warn("export failed", "format", f.ID(), "error", err)
		return fmt.Errorf("exporting %s: %w", f.ID(), err)
	}
	m.MarkSaved()
	return nil
}

func Load(r io.Reader, path string) (*document.Map, *view.MapView, []string, error) {
	return Default.Load(r, path)
}

func Save(w io.Writer, id string, m *document.Map, v *view.MapView) error {
	return Default.Save(w, id, m, v)
}
