// internal/game/sync_state.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/engine"
)

// RoomSummary is the lobby listing view of a room.
type RoomSummary struct {
	Code        string            `json:"code"`
	HostID      uuid.UUID         `json:"hostId"`
	PlayerCount int               `json:"playerCount"`
	MaxPlayers  int               `json:"maxPlayers"`
	Started     bool              `json:"started"`
	Private     bool              `json:"private"`
	Rules       engine.HouseRules `json:"rules"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Summary locks the game and describes it for listings.
func (g *UnoGame) Summary() RoomSummary {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return RoomSummary{
		Code:        g.Code,
		HostID:      g.HostID,
		PlayerCount: len(g.Room.Players),
		MaxPlayers:  g.Room.Rules.MaxPlayers,
		Started:     g.Room.GameStarted,
		Private:     g.PasswordHash != "",
		Rules:       g.Room.Rules,
		CreatedAt:   g.CreatedAt,
	}
}

// State locks the game and returns the broadcast-safe snapshot.
func (g *UnoGame) State() engine.GameState {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.Room.State(nil)
}

// SendSyncState resends the room and the player's own hand, e.g. right
// after a websocket connects. Assumes lock is held by caller.
func (g *UnoGame) SendSyncState(playerID uuid.UUID) {
	state := g.Room.State(nil)
	g.fireEventToPlayer(playerID, GameEvent{Type: EventRoomUpdate, State: &state})
	if g.Room.GameStarted {
		g.sendHands(playerID)
	}
}
