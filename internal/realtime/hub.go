package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const defaultBuffer = 64

type subscription struct {
	filter Filter
	ch     chan Change
}

// Hub fans changes out to in-process subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	next   uint64
	closed bool
	logger *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[uint64]*subscription), logger: logger}
}

// Subscribe registers a filter and returns the delivery channel with its release function.
// The release function must be called when the subscriber goes away; it is idempotent.
func (h *Hub) Subscribe(f Filter, buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &subscription{filter: f, ch: make(chan Change, buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if s, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(s.ch)
			}
		})
	}
}

// Dispatch delivers c to every matching subscriber without blocking. A full subscriber
// drops the change; its next delivered change triggers the same refetch.
func (h *Hub) Dispatch(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.Match(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			h.logger.Warn("realtime subscriber lagging; change dropped",
				zap.String("table", c.Table),
				zap.String("record_id", c.RecordID.String()),
			)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close releases every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
