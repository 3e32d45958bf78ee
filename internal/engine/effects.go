package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// playContext is everything an effect handler may need about the play.
type playContext struct {
	seat         int
	player       *models.Player
	card         models.Card
	target       *models.Player
	opts         PlayOptions
	winning      bool
	snapshot     []models.Card
	illegalWild4 bool
	prevColor    models.Color

	outcome TurnOutcome
}

// applyEffect dispatches on the card face. Each handler leaves the turn
// pointer on the seat that acts next.
func (r *Room) applyEffect(pc *playContext) error {
	switch f := pc.card.Value; {
	case f.IsNumber():
		r.advance(1)
		return nil
	case f == models.FaceSkip:
		return r.effectSkip(pc)
	case f == models.FaceReverse:
		return r.effectReverse(pc)
	case f == models.FaceDraw2:
		return r.effectDraw2(pc)
	case f == models.FaceWild:
		return r.effectWild(pc)
	case f == models.FaceWild4:
		return r.effectWild4(pc)
	case f == models.FaceWildSwap:
		return r.effectWildSwap(pc)
	case f == models.FaceWildShuffle:
		return r.effectWildShuffle(pc)
	case f == models.FaceWildCustom:
		return r.effectWildCustom(pc)
	default:
		panic(fmt.Sprintf("engine: no effect for face %q", f))
	}
}

func (r *Room) effectSkip(pc *playContext) error {
	skipped := r.Players[r.NextPlayerIndex()]
	pc.outcome.SkipEffect = &PlayerRef{PlayerID: skipped.ID, PlayerName: skipped.Name}
	r.advance(2)
	return nil
}

// effectReverse flips direction. With two seats the pass back is a no-op,
// so reverse is a skip.
func (r *Room) effectReverse(pc *playContext) error {
	r.reverse()
	pc.outcome.ReverseEffect = true
	if len(r.Players) == 2 {
		skipped := r.Players[r.NextPlayerIndex()]
		pc.outcome.SkipEffect = &PlayerRef{PlayerID: skipped.ID, PlayerName: skipped.Name}
		r.advance(2)
		return nil
	}
	r.advance(1)
	return nil
}

func (r *Room) effectDraw2(pc *playContext) error {
	victim := r.Players[r.NextPlayerIndex()]
	if _, err := r.drawCards(victim, 2); err != nil {
		return err
	}
	pc.outcome.DrawEffect = &DrawEffect{Count: 2, PlayerRef: ref(victim)}
	r.advance(2)
	return nil
}

func (r *Room) effectWild(pc *playContext) error {
	pc.outcome.WildEffect = &WildEffect{ColorChosen: true, Color: r.CurrentColor}
	r.advance(1)
	return nil
}

// effectWild4 makes the next player draw four and lose the turn, then opens
// the challenge window for that player. The draw is final unless a
// challenge succeeds.
func (r *Room) effectWild4(pc *playContext) error {
	victim := r.Players[r.NextPlayerIndex()]
	drawn, err := r.drawCards(victim, 4)
	if err != nil {
		return err
	}
	victimRef := ref(victim)
	pc.outcome.WildEffect = &WildEffect{ColorChosen: true, Color: r.CurrentColor, Count: 4, PlayerRef: &victimRef}

	if !pc.winning {
		r.Wild4 = Wild4Challenge{
			Open:            true,
			ChallengeableBy: victim.ID,
			PlayerID:        pc.player.ID,
			CardID:          pc.card.ID,
			Illegal:         pc.illegalWild4,
			HandSnapshot:    pc.snapshot,
			PrevColor:       pc.prevColor,
			DrawnCards:      drawn,
		}
		r.log.WithFields(logrus.Fields{"player": pc.player.ID, "challenger": victim.ID}).Debug("wild4 challenge window opened")
	}
	r.advance(2)
	return nil
}

func (r *Room) effectWildSwap(pc *playContext) error {
	pc.outcome.WildEffect = &WildEffect{ColorChosen: true, Color: r.CurrentColor}
	if !pc.winning {
		pc.player.Hand, pc.target.Hand = pc.target.Hand, pc.player.Hand
		delete(r.unoCalled, pc.player.ID)
		delete(r.unoCalled, pc.target.ID)
		pc.outcome.SwapEffect = &SwapEffect{PlayerID: pc.player.ID, TargetPlayerID: pc.target.ID}
	}
	r.advance(1)
	return nil
}

// effectWildShuffle pools every hand and deals it back one card at a time,
// starting from the seat after the player. Leftover cards land on the
// earliest seats in that order.
func (r *Room) effectWildShuffle(pc *playContext) error {
	pc.outcome.WildEffect = &WildEffect{ColorChosen: true, Color: r.CurrentColor}
	if !pc.winning {
		var pool []models.Card
		for _, p := range r.Players {
			pool = append(pool, p.Hand...)
			p.Hand = nil
		}
		shuffle(pool, r.rng)

		seat := r.nextIndexFrom(pc.seat)
		for _, c := range pool {
			r.Players[seat].Hand = append(r.Players[seat].Hand, c)
			seat = r.nextIndexFrom(seat)
		}
		r.unoCalled = make(map[uuid.UUID]bool)
		r.LastPlayerToCallUno = uuid.Nil
		pc.outcome.ShuffleEffect = true
	}
	r.advance(1)
	return nil
}

func (r *Room) effectWildCustom(pc *playContext) error {
	pc.outcome.WildEffect = &WildEffect{ColorChosen: true, Color: r.CurrentColor}
	pc.outcome.CustomRule = pc.opts.CustomRule
	if !pc.winning {
		r.customRules[pc.opts.CustomRule](r, pc.player.ID)
	}
	r.advance(1)
	return nil
}
