package models

import (
	"github.com/google/uuid"
)

// Player is one seat at a room. Hand order is only kept stable for the UI.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Hand      []Card    `json:"hand"`
	Connected bool      `json:"connected"`
}

// HandCount is the broadcast-safe projection of the hand.
func (p *Player) HandCount() int {
	return len(p.Hand)
}

// CardIndex returns the position of cardID in the hand, or -1.
func (p *Player) CardIndex(cardID string) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// HasColor reports whether any card in the hand has color c.
func (p *Player) HasColor(c Color) bool {
	for _, card := range p.Hand {
		if card.Color == c {
			return true
		}
	}
	return false
}
