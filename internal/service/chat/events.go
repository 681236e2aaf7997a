package chat

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
)

// EventType classifies screen events.
type EventType string

const (
	EventAnswer       EventType = "answer"
	EventNotification EventType = "notification"
	EventConversation EventType = "conversation"
	EventSelection    EventType = "selection"
	EventSearch       EventType = "search"
)

// Event describes one change to the screen.
type Event struct {
	Type           EventType            `json:"type"`
	Answer         *answer.Answer       `json:"answer,omitempty"`
	Notification   *answer.Notification `json:"notification,omitempty"`
	ConversationID string               `json:"conversationId,omitempty"`
	SelectedID     string               `json:"selectedId,omitempty"`
	SearchText     *string              `json:"searchText,omitempty"`
}

const defaultSubscriberBuffer = 64

// hub fans events out to subscribers without ever blocking the publisher.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().
				Str("component", "chat").
				Int("subscriber", id).
				Str("event", string(ev.Type)).
				Msg("subscriber too slow, dropping event")
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
