package mapservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/orimap/orimap/internal/engine"
	"github.com/orimap/orimap/internal/events"
	"github.com/orimap/orimap/internal/format"
	"github.com/orimap/orimap/internal/session"
	"github.com/orimap/orimap/internal/store"
	"github.com/orimap/orimap/internal/view"
)

const maxDocumentSize = 64 << 20

type Handler struct {
	service   *Service
	tokens    *session.Service
	hub       *events.Hub
	templates *TemplateStore
	origins   []string
}

func NewHandler(service *Service, tokens *session.Service, hub *events.Hub, templates *TemplateStore, origins []string) *Handler {
	return &Handler{
		service:   service,
		tokens:    tokens,
		hub:       hub,
		templates: templates,
		origins:   origins,
	}
}

// Routes registers the API on r. Everything below /api/maps/{mapId} needs
// a token for that map, which Create and Open hand out.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/api/maps", h.List).Methods("GET")
	r.HandleFunc("/api/maps", h.Create).Methods("POST")
	r.HandleFunc("/api/maps/{mapId}/open", h.Open).Methods("POST")
	r.HandleFunc("/api/formats", h.Formats).Methods("GET")
	if h.templates != nil {
		r.PathPrefix("/templates/").Handler(h.templates.Serve()).Methods("GET")
	}

	m := r.PathPrefix("/api/maps/{mapId}").Subrouter()
	m.Use(h.tokens.Middleware)
	m.Use(requireMapToken)

	m.HandleFunc("", h.CloseMap).Methods("DELETE")
	m.HandleFunc("/render", h.Render).Methods("GET")
	m.HandleFunc("/state", h.State).Methods("GET")
	m.HandleFunc("/symbols", h.Symbols).Methods("GET")
	m.HandleFunc("/document", h.Document).Methods("GET")
	m.HandleFunc("/selection", h.Selection).Methods("GET")
	m.HandleFunc("/hit", h.Hit).Methods("GET")
	m.HandleFunc("/commands", h.Command).Methods("POST")
	m.HandleFunc("/undo", h.Undo).Methods("POST")
	m.HandleFunc("/redo", h.Redo).Methods("POST")
	m.HandleFunc("/save", h.Save).Methods("POST")
	m.HandleFunc("/export", h.Export).Methods("GET")
	m.HandleFunc("/import", h.Import).Methods("POST")
	m.HandleFunc("/snapshots", h.Snapshots).Methods("GET")
	m.HandleFunc("/snapshots/{version}/restore", h.Restore).Methods("POST")
	if h.templates != nil {
		m.HandleFunc("/templates", h.UploadTemplate).Methods("POST")
	}
	if h.hub != nil {
		m.HandleFunc("/events", h.Events).Methods("GET")
	}
}

func requireMapToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.Allows(r.Context(), mux.Vars(r)["mapId"]) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "token is for another map"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createRequest struct {
	Sample bool `json:"sample"`
}

type openResponse struct {
	MapID    string   `json:"mapId"`
	Token    string   `json:"token"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	sess, err := h.service.Create(req.Sample)
	if err != nil {
		slog.Error("create map failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	h.writeToken(w, http.StatusCreated, sess.ID, nil)
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["mapId"]
	sess, warnings, err := h.service.Open(r.Context(), mapID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeToken(w, http.StatusOK, sess.ID, warnings)
}

func (h *Handler) writeToken(w http.ResponseWriter, status int, mapID string, warnings []string) {
	token, err := h.tokens.Issue(mapID)
	if err != nil {
		slog.Error("issue token failed", "error", err, "map", mapID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, openResponse{MapID: mapID, Token: token, Warnings: warnings})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.store.Maps(r.Context())
	if err != nil {
		slog.Error("list maps failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": ids, "open": h.service.Sessions()})
}

type formatInfo struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Extensions  []string `json:"extensions"`
}

func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	var out []formatInfo
	for _, f := range format.Default.Formats() {
		out = append(out, formatInfo{ID: f.ID(), Description: f.Description(), Extensions: f.Extensions()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CloseMap(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(mux.Vars(r)["mapId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withEngine runs fn on the engine of the map named in the route.
func (h *Handler) withEngine(w http.ResponseWriter, r *http.Request, fn func(e *engine.Engine) error) bool {
	sess, err := h.service.Get(mux.Vars(r)["mapId"])
	if err != nil {
		handleServiceError(w, err)
		return false
	}
	if err := sess.Do(fn); err != nil {
		handleServiceError(w, err)
		return false
	}
	return true
}

func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var body []byte
	contentType := "application/json"
	ok := h.withEngine(w, r, func(e *engine.Engine) error {
		if r.URL.Query().Get("encoding") == "msgpack" {
			contentType = "application/msgpack"
			data, err := e.RenderMsgpack()
			body = data
			return err
		}
		body = []byte(e.Render())
		return nil
	})
	if !ok {
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) rawJSON(w http.ResponseWriter, r *http.Request, query func(e *engine.Engine) string) {
	var body string
	if !h.withEngine(w, r, func(e *engine.Engine) error {
		body = query(e)
		return nil
	}) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.rawJSON(w, r, (*engine.Engine).GetState)
}

func (h *Handler) Symbols(w http.ResponseWriter, r *http.Request) {
	h.rawJSON(w, r, (*engine.Engine).GetSymbols)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	h.rawJSON(w, r, (*engine.Engine).GetDocument)
}

func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	var ids, bounds string
	if !h.withEngine(w, r, func(e *engine.Engine) error {
		ids, bounds = e.GetSelection(), e.GetSelectionBounds()
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{
		"ids":    json.RawMessage(ids),
		"bounds": json.RawMessage(bounds),
	})
}

func (h *Handler) Hit(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "x and y are required"})
		return
	}
	var hit engine.HitTestResult
	if !h.withEngine(w, r, func(e *engine.Engine) error {
		hit = engine.HitTestResult{ObjectID: e.HitTest(x, y), X: x, Y: y}
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusOK, hit)
}

func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.apply(w, r, cmd)
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, Command{Op: "undo"})
}

func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, Command{Op: "redo"})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, cmd Command) {
	mapID := mux.Vars(r)["mapId"]
	var res CommandResult
	ok := h.withEngine(w, r, func(e *engine.Engine) error {
		var err error
		res, err = Apply(e, cmd)
		h.service.metrics.command(cmd.Op, err)
		return err
	})
	if !ok {
		return
	}
	if res.OK && (cmd.Op == "undo" || cmd.Op == "redo") {
		h.service.metrics.historyStep(cmd.Op)
	}
	if res.NeedsRender && h.hub != nil {
		h.hub.Invalidate(mapID)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Save(r.Context(), mux.Vars(r)["mapId"], r.URL.Query().Get("format"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.service.metrics.snapshotSaved()
	writeJSON(w, http.StatusCreated, snap)
}

// Export downloads the map in the requested format without storing it.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["mapId"]
	formatID := r.URL.Query().Get("format")
	f := format.Default.DefaultFormat()
	if formatID != "" {
		f = format.Default.FindByID(formatID)
	}
	if f == nil {
		handleServiceError(w, fmt.Errorf("%w: %q", format.ErrUnknownFormat, formatID))
		return
	}

	if !f.CanExport() {
		handleServiceError(w, fmt.Errorf("%w: export to %s", format.ErrNotSupported, f.ID()))
		return
	}

	// Exporting is not saving, so the format is used directly.
	var buf bytes.Buffer
	if !h.withEngine(w, r, func(e *engine.Engine) error {
		return f.Export(&buf, e.Map(), e.View())
	}) {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", mapID+"."+f.Extensions()[0]))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Import replaces the open map with an uploaded file. The name query
// parameter helps to detect formats without a magic number.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	name := r.URL.Query().Get("name")
	var warnings []string
	if !h.withEngine(w, r, func(e *engine.Engine) error {
		var err error
		warnings, err = e.LoadDocument(r.Body, name)
		return err
	}) {
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.store.List(r.Context(), mux.Vars(r)["mapId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version"})
		return
	}
	warnings, err := h.service.Restore(r.Context(), vars["mapId"], version)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

// Events streams map notifications over a websocket. Browsers pass the
// token as a query parameter.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["mapId"]
	if _, err := h.service.Get(mapID); err != nil {
		handleServiceError(w, err)
		return
	}
	h.hub.Serve(w, r, mapID, h.origins)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrBadIndex), errors.Is(err, ErrUnknownOp),
		errors.Is(err, format.ErrUnknownFormat), errors.Is(err, format.ErrCorrupt),
		errors.Is(err, view.ErrUnknownTemplate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, format.ErrNotSupported), errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		slog.Error("map service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
