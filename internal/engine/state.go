package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

// PlayerState is the broadcast-safe view of one seat. Hands are never included.
type PlayerState struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	HandCount int       `json:"handCount"`
	Connected bool      `json:"connected"`
	CalledUno bool      `json:"calledUno"`
	Score     int       `json:"score"`
}

// GameState is the snapshot sent to every player in a room.
type GameState struct {
	RoomID             string            `json:"roomId"`
	Players            []PlayerState     `json:"players"`
	DiscardTop         *models.Card      `json:"discardTop"`
	DiscardPile        []models.Card     `json:"discardPile"`
	DeckCount          int               `json:"deckCount"`
	CurrentPlayerIndex int               `json:"currentPlayerIndex"`
	Direction          int               `json:"direction"`
	CurrentColor       models.Color      `json:"currentColor"`
	GameStarted        bool              `json:"gameStarted"`
	RoundOver          bool              `json:"roundOver"`
	Round              int               `json:"round"`
	UnoCallRequired    bool              `json:"unoCallRequired"`
	Scores             map[uuid.UUID]int `json:"scores"`
	RoundWinner        *uuid.UUID        `json:"roundWinner,omitempty"`
	GameWinner         *uuid.UUID        `json:"gameWinner,omitempty"`
	Wild4Challenge     bool              `json:"wild4ChallengeWindow"`
	Wild4ChallengeBy   *uuid.UUID        `json:"wild4ChallengeableBy,omitempty"`
	TotalPlayers       int               `json:"totalPlayers"`

	TurnOutcome
}

// State projects the room for broadcast. outcome may be nil.
func (r *Room) State(outcome *TurnOutcome) GameState {
	gs := GameState{
		RoomID:             r.ID,
		Players:            make([]PlayerState, 0, len(r.Players)),
		DiscardPile:        append([]models.Card{}, r.DiscardPile...),
		DeckCount:          len(r.Deck),
		CurrentPlayerIndex: r.CurrentPlayerIndex,
		Direction:          r.Direction,
		CurrentColor:       r.CurrentColor,
		GameStarted:        r.GameStarted,
		RoundOver:          r.RoundOver,
		Round:              r.Round,
		UnoCallRequired:    r.UnoCallRequired,
		Scores:             make(map[uuid.UUID]int, len(r.Scores)),
		Wild4Challenge:     r.Wild4.Open,
		TotalPlayers:       len(r.Players),
	}

	for _, p := range r.Players {
		gs.Players = append(gs.Players, PlayerState{
			ID:        p.ID,
			Name:      p.Name,
			HandCount: p.HandCount(),
			Connected: p.Connected,
			CalledUno: r.unoCalled[p.ID],
			Score:     r.Scores[p.ID],
		})
	}
	for id, s := range r.Scores {
		gs.Scores[id] = s
	}
	if top, ok := r.TopCard(); ok {
		gs.DiscardTop = &top
	}
	if r.RoundWinner != uuid.Nil {
		id := r.RoundWinner
		gs.RoundWinner = &id
	}
	if r.GameWinner != uuid.Nil {
		id := r.GameWinner
		gs.GameWinner = &id
	}
	if r.Wild4.Open {
		id := r.Wild4.ChallengeableBy
		gs.Wild4ChallengeBy = &id
	}
	if outcome != nil {
		gs.TurnOutcome = *outcome
	}
	return gs
}
