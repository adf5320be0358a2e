// Package notify fans bot events out to in-process subscribers such as websocket streams.
package notify

import (
	"context"
	"sync"

	"AlphaBot/internal/domain/models"
)

// Hub implements EventPublisher for local subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event and has its Dropped count bumped.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// Subscription receives events for one bot ("" subscribes to all bots).
type Subscription struct {
	C <-chan *models.BotEvent

	ch      chan *models.BotEvent
	botID   string
	hub     *Hub
	once    sync.Once
	mu      sync.Mutex
	dropped uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a new subscription. Callers must Close it.
func (h *Hub) Subscribe(botID string) *Subscription {
	ch := make(chan *models.BotEvent, h.buffer)
	s := &Subscription{C: ch, ch: ch, botID: botID, hub: h}

	h.mu.Lock()
	if h.subs[botID] == nil {
		h.subs[botID] = make(map[*Subscription]struct{})
	}
	h.subs[botID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Publish(_ context.Context, e *models.BotEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, key := range []string{e.BotID, ""} {
		for s := range h.subs[key] {
			s.offer(e)
		}
	}
	return nil
}

// Close drops every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.closeChan()
		}
	}
	return nil
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (s *Subscription) offer(e *models.BotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- e:
	default:
		s.dropped++
	}
}

// Dropped reports how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	if set, ok := s.hub.subs[s.botID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.hub.subs, s.botID)
		}
	}
	s.hub.mu.Unlock()
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
