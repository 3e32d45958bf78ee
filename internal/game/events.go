// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
)

// GameEventType names every event the server sends to room members.
type GameEventType string

const (
	EventRoomUpdate              GameEventType = "room_update"
	EventGameStarted             GameEventType = "game_started" // private, carries the hand
	EventHandUpdate              GameEventType = "hand_update"  // private
	EventCardPlayed              GameEventType = "card_played"
	EventCardDrawn               GameEventType = "card_drawn" // private
	EventTurnUpdate              GameEventType = "turn_update"
	EventUnoCalled               GameEventType = "uno_called"
	EventUnoChallengeResult      GameEventType = "uno_challenge_result"
	EventWild4ChallengeAvailable GameEventType = "wild4_challenge_available"
	EventWild4ChallengeResult    GameEventType = "wild4_challenge_result"
	EventWild4ChallengeExpired   GameEventType = "wild4_challenge_expired"
	EventRoundEnd                GameEventType = "round_end"
	EventGameEnd                 GameEventType = "game_end"
	EventPlayerJoined            GameEventType = "player_joined"
	EventPlayerLeft              GameEventType = "player_left"
	EventErrorMessage            GameEventType = "error_message" // private
	EventPong                    GameEventType = "pong"          // private
)

// Inbound action types.
const (
	ActionStartGame      = "start_game"
	ActionPlayCard       = "play_card"
	ActionDrawCard       = "draw_card"
	ActionPassTurn       = "pass_turn"
	ActionCallUno        = "call_uno"
	ActionChallengeUno   = "challenge_uno"
	ActionChallengeWild4 = "challenge_wild4"
	ActionDeclineWild4   = "decline_wild4"
	ActionPing           = "ping"
)

// EventUser identifies a player inside an event.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// GameEvent is the envelope for everything sent over a room connection.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Card    *models.Card           `json:"card,omitempty"`
	Hand    []models.Card          `json:"hand,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *engine.GameState      `json:"state,omitempty"`
}
