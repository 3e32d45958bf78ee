// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/sirupsen/logrus"
)

const maxNameLen = 32

type createRoomRequest struct {
	Name     string                 `json:"name"`
	Password string                 `json:"password,omitempty"`
	Rules    map[string]interface{} `json:"rules,omitempty"`
}

type joinRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

// seatResponse is returned to a player who just took a seat. The token
// authenticates the room websocket.
type seatResponse struct {
	Code     string           `json:"code"`
	PlayerID uuid.UUID        `json:"playerId"`
	Token    string           `json:"token"`
	Room     game.RoomSummary `json:"room"`
}

type roomResponse struct {
	Room  game.RoomSummary `json:"room"`
	State engine.GameState `json:"state"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func cleanName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", false
	}
	return name, true
}

// CreateRoomHandler creates a room and seats the caller as host.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name, ok := cleanName(req.Name)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_name", "name must be 1-32 characters")
			return
		}
		rules, err := engine.ParseRules(req.Rules, gs.rules)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rules", err.Error())
			return
		}

		var hash string
		if req.Password != "" {
			if hash, err = auth.HashRoomPassword(req.Password); err != nil {
				gs.log.WithError(err).Error("failed to hash room password")
				writeError(w, http.StatusInternalServerError, "internal", "could not create room")
				return
			}
		}

		g := gs.NewRoom(rules, hash)
		gs.seat(w, g, name, http.StatusCreated)
	}
}

// JoinRoomHandler seats the caller in an existing room.
func JoinRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := gs.GameStore.GetGame(chi.URLParam(r, "id"))
		if !ok {
			writeEngineError(w, engine.ErrRoomNotFound)
			return
		}
		var req joinRoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name, ok := cleanName(req.Name)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_name", "name must be 1-32 characters")
			return
		}

		g.Mu.Lock()
		hash := g.PasswordHash
		g.Mu.Unlock()
		match, err := auth.CheckRoomPassword(req.Password, hash)
		if err != nil {
			gs.log.WithError(err).WithField("room", g.Code).Error("failed to check room password")
			writeError(w, http.StatusInternalServerError, "internal", "could not join room")
			return
		}
		if !match {
			writeError(w, http.StatusForbidden, "wrong_password", "wrong room password")
			return
		}
		gs.seat(w, g, name, http.StatusOK)
	}
}

// seat joins a fresh player id to g and answers with their session token.
func (gs *GameServer) seat(w http.ResponseWriter, g *game.UnoGame, name string, status int) {
	playerID := uuid.New()
	if err := g.Join(playerID, name); err != nil {
		writeEngineError(w, err)
		return
	}
	token, err := gs.issuer.Issue(playerID, g.Code, name)
	if err != nil {
		gs.log.WithError(err).Error("failed to issue session token")
		_, _ = g.Leave(playerID)
		writeError(w, http.StatusInternalServerError, "internal", "could not issue session")
		return
	}
	gs.scheduleSeatRelease(g, playerID)
	gs.log.WithFields(logrus.Fields{"room": g.Code, "player": playerID}).Info("seat issued")
	writeJSON(w, status, seatResponse{Code: g.Code, PlayerID: playerID, Token: token, Room: g.Summary()})
}

// LeaveRoomHandler gives up the caller's seat for good.
func LeaveRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "id")
		playerID, ok := gs.authorize(w, r, code)
		if !ok {
			return
		}
		g, ok := gs.GameStore.GetGame(code)
		if !ok {
			writeEngineError(w, engine.ErrRoomNotFound)
			return
		}
		if _, err := g.Leave(playerID); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListRoomsHandler lists every live room, oldest first.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gs.GameStore.List())
	}
}

// GetRoomHandler returns the public view of one room. Hands are never
// included.
func GetRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := gs.GameStore.GetGame(chi.URLParam(r, "id"))
		if !ok {
			writeEngineError(w, engine.ErrRoomNotFound)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{Room: g.Summary(), State: g.State()})
	}
}

// authorize verifies the session token and that it was issued for code.
func (gs *GameServer) authorize(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	playerID, claims, err := gs.issuer.Verify(extractToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", "missing or invalid session token")
		return uuid.Nil, false
	}
	if claims.Room != code {
		writeError(w, http.StatusForbidden, "wrong_room", "session token is for another room")
		return uuid.Nil, false
	}
	return playerID, true
}
