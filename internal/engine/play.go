package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// PlayOptions carries the optional parameters of a play.
type PlayOptions struct {
	ChosenColor    models.Color
	TargetPlayerID uuid.UUID // wildSwap
	CustomRule     string    // wildCustom
}

// PlayResult is returned from a successful PlayCard.
type PlayResult struct {
	PlayedCard  models.Card
	ChosenColor models.Color
	Winner      *models.Player // set when the play emptied the hand
	Points      int            // credited to Winner
	GameWinner  *models.Player // set when the round win decided the match
	Outcome     TurnOutcome
	State       GameState
}

// CanPlay reports whether card may be played on top while color is active.
// Draw cards never stack beyond this rule.
func CanPlay(card, top models.Card, color models.Color) bool {
	return card.Color == color || card.Value == top.Value || card.IsWild()
}

// PlayCard validates and applies one play. Every check runs before the
// first mutation, so a rejected play leaves the room as it was.
func (r *Room) PlayCard(playerID uuid.UUID, cardID string, opts PlayOptions) (*PlayResult, error) {
	if err := r.checkInRound(); err != nil {
		return nil, err
	}
	seat, player, err := r.checkTurn(playerID)
	if err != nil {
		return nil, err
	}
	if r.Wild4.Open {
		return nil, ErrChallengePending
	}

	cardIdx := player.CardIndex(cardID)
	if cardIdx < 0 {
		return nil, ErrCardNotInHand
	}
	card := player.Hand[cardIdx]
	top, ok := r.TopCard()
	if !ok || !CanPlay(card, top, r.CurrentColor) {
		return nil, ErrIllegalPlay
	}

	if len(player.Hand) == 2 && r.UnoCallRequired && r.LastPlayerToCallUno != playerID {
		return nil, ErrUnoCallRequired
	}

	var target *models.Player
	switch card.Value {
	case models.FaceWildSwap:
		if opts.TargetPlayerID == uuid.Nil {
			return nil, ErrMissingParameter
		}
		if opts.TargetPlayerID == playerID {
			return nil, ErrInvalidTarget
		}
		if _, target = r.findPlayer(opts.TargetPlayerID); target == nil {
			return nil, ErrTargetNotFound
		}
	case models.FaceWildCustom:
		if _, ok := r.customRules[opts.CustomRule]; opts.CustomRule == "" || !ok {
			return nil, ErrMissingParameter
		}
	}

	// the played card lands on the discard pile, so the old top becomes
	// reshufflable before any forced draw
	if need := forcedDraw(card.Value); need > 0 && r.drawable(1) < need {
		return nil, ErrOutOfCards
	}

	winning := len(player.Hand) == 1

	var snapshot []models.Card
	if card.Value == models.FaceWild4 {
		snapshot = append([]models.Card(nil), player.Hand...)
	}
	illegalWild4 := card.Value == models.FaceWild4 && player.HasColor(r.CurrentColor)
	prevColor := r.CurrentColor

	player.Hand = append(player.Hand[:cardIdx:cardIdx], player.Hand[cardIdx+1:]...)
	r.DiscardPile = append(r.DiscardPile, card)

	chosen := card.Color
	if card.IsWild() {
		chosen = opts.ChosenColor
		if !chosen.IsPlayColor() {
			chosen = DefaultWildColor
		}
	}
	r.CurrentColor = chosen

	r.UnoCallRequired = false
	delete(r.unoCalled, playerID)
	if r.LastPlayerToCallUno == playerID {
		r.LastPlayerToCallUno = uuid.Nil
	}

	play := &playContext{
		seat:         seat,
		player:       player,
		card:         card,
		target:       target,
		opts:         opts,
		winning:      winning,
		snapshot:     snapshot,
		illegalWild4: illegalWild4,
		prevColor:    prevColor,
	}
	if err := r.applyEffect(play); err != nil {
		return nil, err
	}

	res := &PlayResult{
		PlayedCard:  card,
		ChosenColor: chosen,
		Outcome:     play.outcome,
	}
	if winning {
		res.Winner = player
		res.Points = r.scoreRound(player)
		if r.GameWinner != uuid.Nil {
			_, res.GameWinner = r.findPlayer(r.GameWinner)
		}
	}

	r.log.WithFields(logrus.Fields{
		"player": playerID,
		"card":   card.ID,
		"color":  r.CurrentColor,
		"next":   r.CurrentPlayerIndex,
	}).Debug("card played")

	res.State = r.State(&res.Outcome)
	return res, nil
}

// forcedDraw is how many cards the following player must draw.
func forcedDraw(f models.Face) int {
	switch f {
	case models.FaceDraw2:
		return 2
	case models.FaceWild4:
		return 4
	}
	return 0
}
