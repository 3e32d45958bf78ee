// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// client is one websocket attached to one seat. Events are queued on send
// and written by a dedicated goroutine so the game lock is never held
// across network I/O.
type client struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
	dropped  bool // set by the hub when the client fell behind; guarded by roomHub.mu
}

func newClient(playerID uuid.UUID, conn *websocket.Conn) *client {
	return &client{playerID: playerID, conn: conn, send: make(chan []byte, sendBuffer)}
}

func (c *client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// writePump drains send until it is closed or a write fails.
func (c *client) writePump(logger logrus.FieldLogger) {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			logger.WithError(err).WithField("player", c.playerID).Debug("websocket write failed")
			c.conn.CloseNow()
			return
		}
	}
}

// roomHub fans a room's events out to its connected clients. Its methods
// are safe to call with the game lock held; the hub never takes that lock.
type roomHub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*client
	log     logrus.FieldLogger
}

func newRoomHub(logger logrus.FieldLogger) *roomHub {
	return &roomHub{clients: make(map[uuid.UUID]*client), log: logger}
}

// register attaches c and returns the connection it replaced, if any.
func (h *roomHub) register(c *client) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.clients[c.playerID]
	h.clients[c.playerID] = c
	if old != nil {
		old.closeSend()
	}
	return old
}

// unregister detaches c unless a newer connection already took its place.
// It reports whether c was the live connection; a client dropped for
// falling behind still counts, so its seat goes through the disconnect path.
func (h *roomHub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.closeSend()
	if h.clients[c.playerID] != c {
		return false
	}
	delete(h.clients, c.playerID)
	return true
}

func (h *roomHub) connected(playerID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[playerID]
	return ok && !c.dropped
}

// closeAll drops every client, e.g. when the room is deleted.
func (h *roomHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.closeSend()
		delete(h.clients, id)
	}
}

// broadcast is installed as UnoGame.BroadcastFn.
func (h *roomHub) broadcast(ev game.GameEvent) {
	data := game.EncodeEvent(ev)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueue(c, data, ev.Type)
	}
}

// sendTo is installed as UnoGame.BroadcastToPlayerFn.
func (h *roomHub) sendTo(playerID uuid.UUID, ev game.GameEvent) {
	data := game.EncodeEvent(ev)
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[playerID]; ok {
		h.enqueue(c, data, ev.Type)
	}
}

// enqueue never blocks: a client that cannot keep up is disconnected and
// resynchronizes on reconnect. The client stays registered until its read
// loop ends and unregisters it. Assumes h.mu is held.
func (h *roomHub) enqueue(c *client, data []byte, t game.GameEventType) {
	if c.dropped {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.WithFields(logrus.Fields{"player": c.playerID, "event": t}).Warn("client send buffer full, dropping connection")
		c.dropped = true
		c.closeSend()
		if c.conn != nil {
			c.conn.CloseNow()
		}
	}
}
