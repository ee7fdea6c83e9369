package backend

import (
	"context"
	"sync"
)

type subscription struct {
	id int
	q  Query
	fn func(Change)
}

// Hub fans out changes to in-process subscribers whose query matches.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscription)}
}

// Subscribe registers fn for changes matching q's collection and filters.
// The subscription also ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, q Query, fn func(Change)) (func(), error) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = &subscription{id: id, q: q, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return cancel, nil
}

// Publish delivers c to matching subscribers synchronously.
func (h *Hub) Publish(collection string, c Change) {
	h.mu.RLock()
	targets := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		if s.q.Collection == collection && Match(c.Doc.Data, s.q.Filters) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.fn(c)
	}
}

// Len is the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
