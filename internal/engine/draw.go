package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

// DrawResult is returned from DrawCard. Card is private to the drawer.
type DrawResult struct {
	Card    models.Card
	CanPlay bool // the drawer keeps the turn and may play it or pass
	State   GameState
}

// DrawCard draws one card for the current player. An unplayable card ends
// the turn at once; a playable one leaves the turn with the drawer.
func (r *Room) DrawCard(playerID uuid.UUID) (*DrawResult, error) {
	if err := r.checkInRound(); err != nil {
		return nil, err
	}
	_, player, err := r.checkTurn(playerID)
	if err != nil {
		return nil, err
	}
	if r.Wild4.Open {
		return nil, ErrChallengePending
	}
	if r.drewThisTurn {
		return nil, ErrAlreadyDrew
	}

	drawn, err := r.drawCards(player, 1)
	if err != nil {
		return nil, err
	}
	card := drawn[0]

	top, _ := r.TopCard()
	res := &DrawResult{Card: card, CanPlay: CanPlay(card, top, r.CurrentColor)}
	if res.CanPlay {
		r.drewThisTurn = true
	} else {
		r.advance(1)
	}
	res.State = r.State(nil)
	return res, nil
}

// PassTurn ends the turn of a player who drew a playable card and kept it.
func (r *Room) PassTurn(playerID uuid.UUID) (GameState, error) {
	if err := r.checkInRound(); err != nil {
		return GameState{}, err
	}
	if _, _, err := r.checkTurn(playerID); err != nil {
		return GameState{}, err
	}
	if r.Wild4.Open {
		return GameState{}, ErrChallengePending
	}
	if !r.drewThisTurn {
		return GameState{}, ErrMustDrawFirst
	}
	r.advance(1)
	return r.State(nil), nil
}
