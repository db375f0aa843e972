package events

import (
	"encoding/json"

	"github.com/orimap/orimap/internal/document"
)

// Message is the envelope of everything sent over the event stream.
type Message struct {
	Type     string          `json:"type"`
	MapID    string          `json:"mapId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeWelcome = "welcome"
	TypeError   = "error"

	// TypeMapEvent carries a document notification.
	TypeMapEvent = "map.event"
	// TypeInvalidate tells the client to fetch a new render.
	TypeInvalidate = "render.invalidate"
)

type WelcomePayload struct {
	ClientID string `json:"clientId"`
}

// EventPayload describes a map notification. Index is -1 when the event
// is not about a color, symbol or template.
type EventPayload struct {
	Kind      string   `json:"kind"`
	Index     int      `json:"index"`
	Name      string   `json:"name,omitempty"`
	OldName   string   `json:"oldName,omitempty"`
	ObjectIDs []string `json:"objectIds,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEventPayload converts a document event for the wire. Selection events
// carry the ids of the selected objects.
func NewEventPayload(m *document.Map, e document.Event) EventPayload {
	p := EventPayload{
		Kind:  e.Kind.String(),
		Index: e.Index,
	}
	switch {
	case e.Color != nil:
		p.Name = e.Color.Name
	case e.Symbol != nil:
		p.Name = e.Symbol.Base().Name
		if e.OldSymbol != nil {
			p.OldName = e.OldSymbol.Base().Name
		}
	case e.Template != nil:
		p.Name = e.Template.Path
	}
	if e.Kind == document.EventSelectionChanged || e.Kind == document.EventSelectionEdited {
		for _, obj := range m.SelectedObjects() {
			p.ObjectIDs = append(p.ObjectIDs, obj.ID())
		}
	}
	return p
}
