package events

import "sync"

const (
	subscriberBuffer = 100
	// progress events stop being queued once this many events are pending,
	// leaving the remaining slots for start and terminal events.
	progressHighWater = subscriberBuffer - 20
)

type subscription struct {
	jobID string // empty = all jobs
}

// Hub is a Listener that fans events out to any number of subscribers,
// typically one per open SSE connection. Slow subscribers miss progress
// events rather than stall the sender; start and terminal events displace
// the oldest queued event instead of being dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]subscription)}
}

// Subscribe registers a new subscriber. A non-empty jobID restricts the
// subscription to that job's events.
func (h *Hub) Subscribe(jobID string) chan Event {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = subscription{jobID: jobID}
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	_, ok := h.subscribers[ch]
	delete(h.subscribers, ch)
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// OnEvent broadcasts e to every matching subscriber without blocking.
func (h *Hub) OnEvent(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, sub := range h.subscribers {
		if sub.jobID != "" && sub.jobID != e.JobID {
			continue
		}
		if e.Status == StatusProgress {
			if len(ch) >= progressHighWater {
				continue
			}
			select {
			case ch <- e:
			default:
			}
			continue
		}
		deliver(ch, e)
	}
}

// deliver queues e, discarding the oldest pending events until it fits.
func deliver(ch chan Event, e Event) {
	for {
		select {
		case ch <- e:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
