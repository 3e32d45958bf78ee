package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	UnoPenalty         = 2
	Wild4Penalty       = 4
	Wild4FailedPenalty = 6
)

// ChallengeResult reports how a challenge resolved.
type ChallengeResult struct {
	Success      bool
	PenaltyCards int
	Penalized    uuid.UUID // the player who drew the penalty
	State        GameState
}

// CallUno declares the caller's last card. It is legal on any turn while the
// caller holds exactly one card.
func (r *Room) CallUno(playerID uuid.UUID) (GameState, error) {
	if err := r.checkInRound(); err != nil {
		return GameState{}, err
	}
	_, p := r.findPlayer(playerID)
	if p == nil {
		return GameState{}, ErrPlayerNotFound
	}
	if len(p.Hand) != 1 {
		return GameState{}, ErrInvalidCallState
	}
	r.UnoCallRequired = true
	r.LastPlayerToCallUno = playerID
	r.unoCalled[playerID] = true
	r.log.WithField("player", playerID).Debug("uno called")
	return r.State(nil), nil
}

// ChallengeUno accuses target of sitting on one card without calling. A
// correct accusation costs the target two cards, a wrong one costs the
// challenger two.
func (r *Room) ChallengeUno(challengerID, targetID uuid.UUID) (*ChallengeResult, error) {
	if err := r.checkInRound(); err != nil {
		return nil, err
	}
	_, challenger := r.findPlayer(challengerID)
	if challenger == nil {
		return nil, ErrPlayerNotFound
	}
	if challengerID == targetID {
		return nil, ErrInvalidTarget
	}
	_, target := r.findPlayer(targetID)
	if target == nil {
		return nil, ErrTargetNotFound
	}
	if r.drawable(0) < UnoPenalty {
		return nil, ErrOutOfCards
	}

	res := &ChallengeResult{PenaltyCards: UnoPenalty}
	penalized := challenger
	if len(target.Hand) == 1 && !r.unoCalled[targetID] {
		res.Success = true
		penalized = target
	}
	if _, err := r.drawCards(penalized, UnoPenalty); err != nil {
		return nil, err
	}
	res.Penalized = penalized.ID

	r.log.WithFields(logrus.Fields{
		"challenger": challengerID,
		"target":     targetID,
		"success":    res.Success,
	}).Debug("uno challenge resolved")

	res.State = r.State(nil)
	return res, nil
}

// ChallengeWild4 disputes the wild draw four that opened the current window.
// The window closes whatever the verdict. An illegal play is retracted: the
// offender's hand is restored, the challenger's four cards go back on the
// draw stack, the color reverts and the offender draws four with the turn
// forced to the challenger. A legal play costs the challenger six more.
func (r *Room) ChallengeWild4(challengerID uuid.UUID) (*ChallengeResult, error) {
	if err := r.checkInRound(); err != nil {
		return nil, err
	}
	if !r.Wild4.Open {
		return nil, ErrChallengeWindowClosed
	}
	if challengerID != r.Wild4.ChallengeableBy {
		return nil, ErrNotEligibleChallenger
	}
	seat, challenger := r.findPlayer(challengerID)
	if challenger == nil {
		return nil, ErrPlayerNotFound
	}
	_, offender := r.findPlayer(r.Wild4.PlayerID)
	if offender == nil {
		return nil, ErrPlayerNotFound
	}
	w := r.Wild4
	if !w.Illegal && r.drawable(0) < Wild4FailedPenalty {
		return nil, ErrOutOfCards
	}

	r.Wild4 = Wild4Challenge{}

	res := &ChallengeResult{}
	if w.Illegal {
		r.retractWild4(w, offender, challenger)
		r.moveTo(seat)
		if _, err := r.drawCards(offender, Wild4Penalty); err != nil {
			return nil, err
		}
		res.Success = true
		res.PenaltyCards = Wild4Penalty
		res.Penalized = offender.ID
	} else {
		if _, err := r.drawCards(challenger, Wild4FailedPenalty); err != nil {
			return nil, err
		}
		res.PenaltyCards = Wild4FailedPenalty
		res.Penalized = challenger.ID
	}

	r.log.WithFields(logrus.Fields{
		"challenger": challengerID,
		"offender":   w.PlayerID,
		"success":    res.Success,
	}).Debug("wild4 challenge resolved")

	res.State = r.State(nil)
	return res, nil
}

// retractWild4 undoes an illegal wild draw four. Cards the offender picked
// up while the window was open stay in the restored hand.
func (r *Room) retractWild4(w Wild4Challenge, offender, challenger *models.Player) {
	for i := len(r.DiscardPile) - 1; i >= 0; i-- {
		if r.DiscardPile[i].ID == w.CardID {
			r.DiscardPile = append(r.DiscardPile[:i:i], r.DiscardPile[i+1:]...)
			break
		}
	}

	inSnapshot := make(map[string]bool, len(w.HandSnapshot))
	for _, c := range w.HandSnapshot {
		inSnapshot[c.ID] = true
	}
	restored := append([]models.Card(nil), w.HandSnapshot...)
	for _, c := range offender.Hand {
		if !inSnapshot[c.ID] {
			restored = append(restored, c)
		}
	}
	offender.Hand = restored

	for i := len(w.DrawnCards) - 1; i >= 0; i-- {
		idx := challenger.CardIndex(w.DrawnCards[i].ID)
		if idx < 0 {
			continue
		}
		challenger.Hand = append(challenger.Hand[:idx:idx], challenger.Hand[idx+1:]...)
		r.Deck = append(r.Deck, w.DrawnCards[i])
	}
	r.CurrentColor = w.PrevColor
}

// DeclineWild4 lets the eligible challenger accept the draw and close the
// window without a challenge.
func (r *Room) DeclineWild4(playerID uuid.UUID) (GameState, error) {
	if err := r.checkInRound(); err != nil {
		return GameState{}, err
	}
	if !r.Wild4.Open {
		return GameState{}, ErrChallengeWindowClosed
	}
	if playerID != r.Wild4.ChallengeableBy {
		return GameState{}, ErrNotEligibleChallenger
	}
	r.Wild4 = Wild4Challenge{}
	return r.State(nil), nil
}

// ExpireWild4 closes an open window on timeout. It reports whether a window
// was open; the caller's timer may fire after a challenge already resolved.
func (r *Room) ExpireWild4() bool {
	if !r.Wild4.Open {
		return false
	}
	r.log.WithField("challenger", r.Wild4.ChallengeableBy).Debug("wild4 challenge window expired")
	r.Wild4 = Wild4Challenge{}
	return true
}
