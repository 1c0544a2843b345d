// Package events streams finder events to WebSocket subscribers, so a map
// or list view running in a browser can follow the terminal client.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single frame write to a subscriber.
const writeTimeout = 5 * time.Second

// Broadcaster fans events out to every subscribed connection.
// Writes are serialized because a websocket.Conn allows a single writer.
type Broadcaster struct {
	logger *slog.Logger

	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	last        []byte
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		logger:      logger,
		connections: make(map[*websocket.Conn]struct{}),
	}
}

// Subscribe registers conn. The most recent event, if any, is replayed so a
// late subscriber starts from the current view.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connections[conn] = struct{}{}
	if b.last != nil {
		b.writeLocked(conn, b.last)
	}
}

// Unsubscribe removes conn.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// Publish encodes event as JSON and sends it to every subscriber. A
// subscriber whose write fails is dropped.
func (b *Broadcaster) Publish(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = data
	for conn := range b.connections {
		b.writeLocked(conn, data)
	}
}

func (b *Broadcaster) writeLocked(conn *websocket.Conn, data []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		b.logger.Warn("failed to send event to websocket client", "error", err)
		delete(b.connections, conn)
		conn.Close()
	}
}

// ConnectionCount returns the number of subscribers.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.connections)
}
