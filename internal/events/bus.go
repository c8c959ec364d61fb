package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus is an in-process pub/sub bus for system events.
type Bus struct {
	mu        sync.RWMutex
	subs      map[EventType][]Handler
	listeners map[int]chan Event
	nextID    int
	log       zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs:      make(map[EventType][]Handler),
		listeners: make(map[int]chan Event),
		log:       log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// Listen returns a channel receiving every event published after the call,
// plus an unsubscribe function. Slow listeners drop events rather than block
// publishers.
func (b *Bus) Listen() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.listeners[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.listeners[id]; ok {
			delete(b.listeners, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Emit publishes an event to type subscribers and stream listeners, and logs it.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	// Listener sends happen under the read lock; unsubscribe takes the write
	// lock before closing a channel, so a send never hits a closed channel.
	b.mu.RLock()
	handlers := b.subs[eventType]
	for _, ch := range b.listeners {
		select {
		case ch <- event:
		default:
			// Listener buffer full; drop rather than stall the publisher.
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}
