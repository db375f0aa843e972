package mapservice

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/orimap/orimap/internal/engine"
	"github.com/orimap/orimap/internal/typeid"
)

const maxUploadSize = 32 << 20 // 32MB

var ErrUnsupportedImage = errors.New("only PNG and JPEG images are supported")

// TemplateStore keeps uploaded template images on disk. Images are stored
// as PNG under their template id and never change.
type TemplateStore struct {
	dir string
}

func NewTemplateStore(dir string) (*TemplateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	return &TemplateStore{dir: dir}, nil
}

// StoredImage describes a saved image.
type StoredImage struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Save decodes a PNG or JPEG image from r and stores it as PNG.
func (s *TemplateStore) Save(r io.Reader, contentType, name string) (*StoredImage, error) {
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		return nil, ErrUnsupportedImage
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}

	id := typeid.NewTemplateID()
	filename := id + ".png"
	path := filepath.Join(s.dir, filename)
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create template file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("encode png: %w", err)
	}

	bounds := img.Bounds()
	return &StoredImage{
		ID:     id,
		URL:    "/templates/" + filename,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Name:   name,
	}, nil
}

// Serve returns an http.Handler serving stored images below /templates/.
func (s *TemplateStore) Serve() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.StripPrefix("/templates/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

type uploadResponse struct {
	StoredImage
	Index int  `json:"index"`
	Front bool `json:"front"`
}

// UploadTemplate stores the image in the multipart field "file" and adds
// it to the map as a template. front=true places it above the objects.
func (h *Handler) UploadTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 32MB)"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	img, err := h.templates.Save(file, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		if errors.Is(err, ErrUnsupportedImage) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("save template image", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save file"})
		return
	}

	resp := uploadResponse{StoredImage: *img, Front: r.FormValue("front") == "true"}
	if !h.withEngine(w, r, func(e *engine.Engine) error {
		resp.Index = e.AddImageTemplate(img.URL, img.Width, img.Height, resp.Front)
		return nil
	}) {
		return
	}
	if h.hub != nil {
		h.hub.Invalidate(mux.Vars(r)["mapId"])
	}
	writeJSON(w, http.StatusCreated, resp)
}
