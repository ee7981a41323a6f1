package notification

import "sync"

// StreamCache remembers log streams this process has already created or
// found. It only saves CreateStream calls: a miss is always safe because the
// log store treats an existing stream as a no-op, and an entry is dropped as
// soon as the store reports the stream missing.
type StreamCache struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

func NewStreamCache() *StreamCache {
	return &StreamCache{known: make(map[string]struct{})}
}

func (c *StreamCache) Known(stream string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[stream]
	return ok
}

func (c *StreamCache) Add(stream string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[stream] = struct{}{}
}

func (c *StreamCache) Forget(stream string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.known, stream)
}

func (c *StreamCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.known)
}
