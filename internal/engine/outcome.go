package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

// PlayerRef names a player inside an effect for the UI.
type PlayerRef struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
}

// DrawEffect records a forced draw.
type DrawEffect struct {
	Count int `json:"count"`
	PlayerRef
}

// WildEffect records a wild: the color chosen and, for wild4, the forced draw.
type WildEffect struct {
	ColorChosen bool         `json:"colorChosen"`
	Color       models.Color `json:"color"`
	Count       int          `json:"count,omitempty"`
	*PlayerRef
}

// SwapEffect records two players exchanging hands.
type SwapEffect struct {
	PlayerID       uuid.UUID `json:"playerId"`
	TargetPlayerID uuid.UUID `json:"targetPlayerId"`
}

// TurnOutcome describes what the last action did, for broadcast only.
// It is returned from each action and never stored on the Room.
type TurnOutcome struct {
	SkipEffect    *PlayerRef  `json:"skipEffect"`
	ReverseEffect bool        `json:"reverseEffect"`
	DrawEffect    *DrawEffect `json:"drawEffect"`
	WildEffect    *WildEffect `json:"wildEffect"`
	SwapEffect    *SwapEffect `json:"swapEffect"`
	ShuffleEffect bool        `json:"shuffleEffect"`
	CustomRule    string      `json:"customRule,omitempty"`
}

func ref(p *models.Player) PlayerRef {
	return PlayerRef{PlayerID: p.ID, PlayerName: p.Name}
}
