// Package tail streams logged events to websocket subscribers.
package tail

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
)

// AllCollections is the filter key of subscribers that want every event.
const AllCollections = ""

const (
	maxConnsPerFilter = 10
	maxConnsTotal     = 100
	sendBuffer        = 64
	writeTimeout      = 5 * time.Second
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// subscriber owns its connection's writes; only its writer goroutine
// touches conn after registration.
type subscriber struct {
	conn Conn
	send chan []byte
}

// Hub fans events out to websocket connections grouped by collection filter.
type Hub struct {
	connections map[string]map[Conn]*subscriber // collection -> connections
	total       int
	mutex       sync.Mutex
	writers     sync.WaitGroup
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[Conn]*subscriber),
		logger:      logger,
	}
}

// Add registers conn for events of collection, or all events when collection
// is AllCollections. It reports false when the filter or the hub is full.
func (h *Hub) Add(collection string, conn Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.total >= maxConnsTotal {
		h.logger.Warnf("Max live tail connections reached (%d)", h.total)
		return false
	}
	if _, exists := h.connections[collection]; !exists {
		h.connections[collection] = make(map[Conn]*subscriber)
	}
	if len(h.connections[collection]) >= maxConnsPerFilter {
		h.logger.Warnf("Max live tail connections reached for %q", collection)
		return false
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.connections[collection][conn] = sub
	h.total++
	h.writers.Add(1)
	go h.writeLoop(collection, sub)

	h.logger.Infof("Added live tail connection for %q (total: %d)", collection, len(h.connections[collection]))
	return true
}

func (h *Hub) writeLoop(collection string, sub *subscriber) {
	defer h.writers.Done()
	for data := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Errorf("Failed to send live tail event for %q: %v", collection, err)
			h.Remove(collection, sub.conn)
			break
		}
	}
	// discard frames queued before removal
	for range sub.send {
	}
	_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	_ = sub.conn.Close()
}

func (h *Hub) Remove(collection string, conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(collection, conn)
}

func (h *Hub) removeLocked(collection string, conn Conn) {
	conns, exists := h.connections[collection]
	if !exists {
		return
	}
	sub, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.connections, collection)
	}
	h.total--
	close(sub.send)
	h.logger.Infof("Removed live tail connection for %q (remaining: %d)", collection, len(conns))
}

// Count returns the number of connections subscribed with the given filter.
func (h *Hub) Count(collection string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[collection])
}

// Total returns the number of connections across all filters.
func (h *Hub) Total() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.total
}

// Publish queues msg as JSON for every matching subscriber without waiting
// on any connection. A subscriber whose queue is full is dropped.
func (h *Hub) Publish(msg models.EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to encode live tail event: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, filter := range []string{AllCollections, msg.CollectionName} {
		for conn, sub := range h.connections[filter] {
			select {
			case sub.send <- data:
			default:
				h.logger.Warnf("Live tail subscriber for %q is too slow, dropping it", filter)
				h.removeLocked(filter, conn)
			}
		}
		if msg.CollectionName == AllCollections {
			break
		}
	}
}

// CloseAll disconnects every subscriber and waits for their writers to
// finish, used on shutdown.
func (h *Hub) CloseAll() {
	h.mutex.Lock()
	for filter, conns := range h.connections {
		for conn := range conns {
			h.removeLocked(filter, conn)
		}
	}
	h.mutex.Unlock()
	h.writers.Wait()
}
