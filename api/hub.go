package api

import (
	"sync"

	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/models"
)

// subscriberBuffer is how many broadcast events a slow feed may lag behind
const subscriberBuffer = 64

// Subscriber receives hub broadcasts for one open feed
type Subscriber struct {
	Collection string
	C          <-chan models.ChangeEvent

	c chan models.ChangeEvent
}

// Hub tracks open feeds so server side events can reach all of them
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{subs: map[*Subscriber]struct{}{}}
}

// Join registers a feed. Call Leave when it closes.
func (h *Hub) Join(collection string) *Subscriber {
	c := make(chan models.ChangeEvent, subscriberBuffer)
	s := &Subscriber{Collection: collection, C: c, c: c}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Leave unregisters a feed
func (h *Hub) Leave(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
}

// Len returns the number of open feeds
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast queues ev on every open feed. A feed whose queue is full misses
// the event.
func (h *Hub) Broadcast(ev models.ChangeEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for s := range h.subs {
		select {
		case s.c <- ev:
			sent++
		default:
			zap.S().Warnw("feed is not keeping up, dropping broadcast", "collection", s.Collection, "type", ev.Type)
		}
	}
	return sent
}
