package server

import (
	"encoding/json"
	"sync"
)

// Event is the payload published to room subscribers.
type Event struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId,omitempty"`
	AuthorID string `json:"authorId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
	Winner   string `json:"winner,omitempty"`
}

// Broker is an in-process pub/sub for SSE events, keyed by room ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given room.
func (b *Broker) Subscribe(roomID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[chan []byte]struct{})
	}
	b.subs[roomID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the room's subscribers.
func (b *Broker) Unsubscribe(roomID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[roomID], ch)
	if len(b.subs[roomID]) == 0 {
		delete(b.subs, roomID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given room.
func (b *Broker) Publish(roomID string, event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[roomID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
