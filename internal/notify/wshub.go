package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// WSHub keeps one room of websocket connections per user and implements
// Transport. A user with no open connections simply misses the event.
type WSHub struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[*websocket.Conn]*sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{rooms: make(map[uuid.UUID]map[*websocket.Conn]*sync.Mutex)}
}

func (h *WSHub) Register(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[userID] == nil {
		h.rooms[userID] = make(map[*websocket.Conn]*sync.Mutex)
	}
	h.rooms[userID][conn] = &sync.Mutex{}
}

func (h *WSHub) Unregister(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.rooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, userID)
		}
	}
}

// Publish writes the event to every open connection of the user. Writes
// run outside the hub lock so one stalled client cannot block publishes
// to other users; a per-connection mutex keeps frames serialized. Failed
// connections are dropped from the room.
func (h *WSHub) Publish(userID uuid.UUID, event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	h.mu.Lock()
	targets := make([]target, 0, len(h.rooms[userID]))
	for conn, mu := range h.rooms[userID] {
		targets = append(targets, target{conn: conn, mu: mu})
	}
	h.mu.Unlock()

	var lastErr error
	for _, t := range targets {
		t.mu.Lock()
		t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := t.conn.WriteMessage(websocket.TextMessage, message)
		t.mu.Unlock()

		if err != nil {
			lastErr = err
			h.Unregister(userID, t.conn)
			t.conn.Close()
		}
	}
	return lastErr
}

// ConnectionCount reports open connections for a user, used by health checks
// and tests.
func (h *WSHub) ConnectionCount(userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[userID])
}
