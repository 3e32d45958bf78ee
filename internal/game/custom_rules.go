// internal/game/custom_rules.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
)

// Named effects a wildCustom card can invoke.
const (
	RuleFlipDirection = "flip_direction"
	RuleRotateHands   = "rotate_hands"
)

// DefaultCustomRules is the table rooms get when none is supplied.
func DefaultCustomRules() map[string]engine.CustomRule {
	return map[string]engine.CustomRule{
		RuleFlipDirection: flipDirection,
		RuleRotateHands:   rotateHands,
	}
}

func flipDirection(r *engine.Room, _ uuid.UUID) {
	r.Direction = -r.Direction
}

// rotateHands passes every hand one seat along the direction of play.
func rotateHands(r *engine.Room, _ uuid.UUID) {
	n := len(r.Players)
	if n < 2 {
		return
	}
	hands := make([][]models.Card, n)
	for i, p := range r.Players {
		hands[engine.NextIndex(i, r.Direction, n)] = p.Hand
	}
	for i, p := range r.Players {
		p.Hand = hands[i]
	}
}
