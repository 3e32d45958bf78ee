package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// HandPoints sums the card values left in a hand.
func HandPoints(hand []models.Card) int {
	total := 0
	for _, c := range hand {
		total += c.Points()
	}
	return total
}

// scoreRound credits winner with every opponent's remaining hand value,
// ends the round and decides the match once someone reaches the target.
// Hands are only read.
func (r *Room) scoreRound(winner *models.Player) int {
	points := 0
	for _, p := range r.Players {
		if p.ID == winner.ID {
			continue
		}
		points += HandPoints(p.Hand)
	}
	r.Scores[winner.ID] += points

	r.RoundOver = true
	r.RoundWinner = winner.ID
	r.UnoCallRequired = false
	r.Wild4 = Wild4Challenge{}

	for _, p := range r.Players {
		if r.Scores[p.ID] >= r.Rules.TargetScore {
			r.GameWinner = p.ID
			break
		}
	}

	entry := r.log.WithFields(logrus.Fields{"winner": winner.ID, "points": points, "total": r.Scores[winner.ID]})
	if r.GameWinner != uuid.Nil {
		entry = entry.WithField("match_winner", r.GameWinner)
	}
	entry.Debug("round won")
	return points
}
