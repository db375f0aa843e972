package events

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Serve upgrades r to a websocket watching mapID and blocks until the
// connection ends. Authorization is up to the caller.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, mapID string, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		h.logger.Error("websocket accept", "error", err, "map", mapID)
		return
	}

	client := NewClient(h, conn, mapID, uuid.New().String())
	h.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
