package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/orimap/orimap/internal/document"
)

// Room groups the clients watching one map.
type Room struct {
	mapID   string
	clients map[string]*Client // clientID -> client
	seq     int64
}

func NewRoom(mapID string) *Room {
	return &Room{
		mapID:   mapID,
		clients: make(map[string]*Client),
	}
}

// Hub fans map notifications out to websocket clients. The stream is one
// way; clients never edit through it.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // mapID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations until ctx is done, then disconnects every
// remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		}
	}
}

// Register attaches client. After Run has returned the client is closed
// right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		h.mu.Lock()
		client.close()
		h.mu.Unlock()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.MapID]
	if !ok {
		room = NewRoom(client.MapID)
		h.rooms[client.MapID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID})
	client.Send(&Message{
		Type:     TypeWelcome,
		MapID:    client.MapID,
		ClientID: client.ClientID,
		Payload:  welcome,
	})

	h.logger.Info("client attached", "client", client.ClientID, "map", client.MapID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.MapID]
	if !ok {
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		return
	}

	delete(room.clients, client.ClientID)
	client.close()

	if len(room.clients) == 0 {
		delete(h.rooms, client.MapID)
	}

	h.logger.Info("client detached", "client", client.ClientID, "map", client.MapID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for _, c := range room.clients {
			c.close()
		}
		delete(h.rooms, id)
	}
}

// Clients returns the number of clients watching mapID.
func (h *Hub) Clients(mapID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[mapID]; ok {
		return len(room.clients)
	}
	return 0
}

// Publish sends msg to every client of mapID. Sending never blocks; slow
// clients lose messages.
func (h *Hub) Publish(mapID string, msg *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[mapID]
	if !ok {
		return
	}
	room.seq++
	msg.MapID = mapID
	msg.Seq = room.seq
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err, "map", mapID)
		return
	}
	for _, c := range room.clients {
		c.enqueue(data)
	}
}

// Invalidate tells the clients of mapID that their render is stale.
func (h *Hub) Invalidate(mapID string) {
	h.Publish(mapID, &Message{Type: TypeInvalidate})
}

// Attach forwards every notification of m to the clients of mapID. The
// returned subscription must be passed to m.Unsubscribe when the map is
// closed.
func (h *Hub) Attach(mapID string, m *document.Map) document.Subscription {
	return m.Subscribe(func(e document.Event) {
		payload, err := json.Marshal(NewEventPayload(m, e))
		if err != nil {
			h.logger.Error("marshal map event", "error", err, "map", mapID)
			return
		}
		h.Publish(mapID, &Message{Type: TypeMapEvent, Payload: payload})
	})
}
