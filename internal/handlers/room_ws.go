// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RoomWSHandler upgrades a seated player's connection for /rooms/{id}/ws.
// The session token decides who the player is; the read loop then feeds
// every inbound action to the room under its lock.
func RoomWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "id")
		g, ok := gs.GameStore.GetGame(code)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"uno"},
			OriginPatterns: gs.origins,
		})
		if err != nil {
			gs.log.WithError(err).WithField("room", code).Warn("websocket accept failed")
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != "uno" {
			c.Close(BadSubprotocolError, "client must use the uno subprotocol")
			return
		}

		playerID, claims, err := gs.issuer.Verify(extractToken(r))
		if err != nil {
			c.Close(InvalidAuthTokenError, "invalid session token")
			return
		}
		if claims.Room != code {
			c.Close(InvalidRoomError, "session token is for another room")
			return
		}
		g.Mu.Lock()
		_, seat := g.Room.Player(playerID)
		g.Mu.Unlock()
		hub, ok := gs.hub(code)
		if seat == nil || !ok {
			c.Close(InvalidRoomError, "no seat in this room")
			return
		}

		logger := gs.log.WithFields(logrus.Fields{"room": code, "player": playerID})
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, code)

		cl := newClient(playerID, c)
		if old := hub.register(cl); old != nil {
			old.conn.Close(ReplacedError, "replaced by a newer connection")
		}
		go cl.writePump(logger)

		g.HandleReconnect(playerID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		err = gs.readActions(ctx, c, g, cl, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, code, err)

		if hub.unregister(cl) {
			g.HandleDisconnect(playerID)
			gs.scheduleSeatRelease(g, playerID)
		}
	}
}

// readActions runs until the socket closes. Actions over the per-connection
// rate are answered with an error_message and dropped.
func (gs *GameServer) readActions(ctx context.Context, c *websocket.Conn, g *game.UnoGame, cl *client, logger logrus.FieldLogger) error {
	limiter := rate.NewLimiter(rate.Limit(gs.maxActions), gs.maxActions)
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		if !limiter.Allow() {
			gs.reject(g, cl.playerID, "", "rate_limited", "too many actions, slow down")
			continue
		}

		var action models.GameAction
		if err := json.Unmarshal(data, &action); err != nil || action.ActionType == "" {
			logger.WithError(err).Debug("invalid message")
			gs.reject(g, cl.playerID, "", "bad_message", "message must be JSON with a type")
			continue
		}

		apply(g, cl.playerID, action)
	}
}

// apply runs one action under the room lock. The deferred unlock keeps the
// room usable if the action panics.
func apply(g *game.UnoGame, playerID uuid.UUID, action models.GameAction) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.HandlePlayerAction(playerID, action)
}

// reject sends a transport-level error that never reached the room.
func (gs *GameServer) reject(g *game.UnoGame, playerID uuid.UUID, action, code, msg string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.BroadcastToPlayerFn == nil {
		return
	}
	g.BroadcastToPlayerFn(playerID, game.GameEvent{
		Type: game.EventErrorMessage,
		Payload: map[string]interface{}{
			"action":  action,
			"code":    code,
			"kind":    "transport",
			"message": msg,
		},
	})
}
