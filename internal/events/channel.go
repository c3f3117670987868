package events

import "sync"

// Listener receives events from a Channel. OnEvent is called with the
// channel lock held and must not block.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Channel is the process-wide delivery point for job events. It holds at
// most one listener; events sent while nobody is attached are dropped.
// Send is safe for concurrent use and delivers one sender's events in order.
type Channel struct {
	mu       sync.Mutex
	listener Listener
}

// NewChannel creates a channel with no listener attached.
func NewChannel() *Channel {
	return &Channel{}
}

// Attach installs l, replacing any previous listener.
func (c *Channel) Attach(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// Detach removes the current listener.
func (c *Channel) Detach() {
	c.mu.Lock()
	c.listener = nil
	c.mu.Unlock()
}

// Attached reports whether a listener is installed.
func (c *Channel) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener != nil
}

// Send delivers e to the listener, if any.
func (c *Channel) Send(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		c.listener.OnEvent(e)
	}
}
