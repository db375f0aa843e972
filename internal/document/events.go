package document

import "slices"

// EventKind names a map change notification.
type EventKind int

const (
	EventColorAdded EventKind = iota
	EventColorChanged
	EventColorDeleted
	EventSymbolAdded
	EventSymbolChanged
	EventSymbolDeleted
	EventTemplateAdded
	EventTemplateChanged
	EventTemplateDeleted
	EventSelectionChanged
	EventSelectionEdited
	EventGPSProjectionChanged
	EventGotUnsavedChanges
)

var eventNames = map[EventKind]string{
	EventColorAdded:           "colorAdded",
	EventColorChanged:         "colorChanged",
	EventColorDeleted:         "colorDeleted",
	EventSymbolAdded:          "symbolAdded",
	EventSymbolChanged:        "symbolChanged",
	EventSymbolDeleted:        "symbolDeleted",
	EventTemplateAdded:        "templateAdded",
	EventTemplateChanged:      "templateChanged",
	EventTemplateDeleted:      "templateDeleted",
	EventSelectionChanged:     "selectionChanged",
	EventSelectionEdited:      "selectionEdited",
	EventGPSProjectionChanged: "gpsProjectionChanged",
	EventGotUnsavedChanges:    "gotUnsavedChanges",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a one-way notification. Index is the position of the changed
// color, symbol or template, -1 when not applicable.
type Event struct {
	Kind      EventKind
	Index     int
	Color     *Color
	Symbol    Symbol
	OldSymbol Symbol
	Template  *Template
}

// Subscription identifies a registered observer.
type Subscription int

type subscriber struct {
	id    Subscription
	kinds map[EventKind]bool
	fn    func(Event)
}

// Subscribe registers fn for the given kinds, or for every kind when none
// are given. Observers run synchronously, in registration order, before
// the mutating call returns.
func (m *Map) Subscribe(fn func(Event), kinds ...EventKind) Subscription {
	m.nextSubscription++
	s := subscriber{id: m.nextSubscription, fn: fn}
	if len(kinds) > 0 {
		s.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	m.subscribers = append(m.subscribers, s)
	return s.id
}

// Unsubscribe removes an observer. It may be called from inside an
// observer; a removed observer is not called again, even for the event
// being emitted.
func (m *Map) Unsubscribe(id Subscription) {
	m.subscribers = slices.DeleteFunc(slices.Clone(m.subscribers), func(s subscriber) bool {
		return s.id == id
	})
}

func (m *Map) subscribed(id Subscription) bool {
	return slices.ContainsFunc(m.subscribers, func(s subscriber) bool { return s.id == id })
}

func (m *Map) emit(e Event) {
	// Unsubscribe replaces the slice, so this range sees a stable list.
	for _, s := range m.subscribers {
		if s.kinds != nil && !s.kinds[e.Kind] {
			continue
		}
		if !m.subscribed(s.id) {
			continue
		}
		s.fn(e)
	}
}

func (m *Map) EmitSelectionChanged() {
	m.emit(Event{Kind: EventSelectionChanged, Index: -1})
}

func (m *Map) EmitSelectionEdited() {
	m.emit(Event{Kind: EventSelectionEdited, Index: -1})
}
