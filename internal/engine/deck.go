package engine

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	wildSwapCount    = 4
	wildShuffleCount = 4
	wildCustomCount  = 3

	StandardDeckSize  = 108
	ExpansionDeckSize = StandardDeckSize + wildSwapCount + wildShuffleCount + wildCustomCount
)

// DeckSize is the size CreateDeck produces.
func DeckSize(expansion bool) int {
	if expansion {
		return ExpansionDeckSize
	}
	return StandardDeckSize
}

// CreateDeck builds and shuffles a full deck. Per color: one 0, two each of
// 1-9, skip, reverse and draw2. Then four wild and four wild4, plus the
// expansion wilds when enabled. A size mismatch is a programming error.
func CreateDeck(expansion bool, rng *rand.Rand) []models.Card {
	deck := make([]models.Card, 0, DeckSize(expansion))

	for _, color := range models.PlayColors {
		deck = append(deck, models.Card{ID: fmt.Sprintf("%s_0", color), Color: color, Value: "0"})
		for _, value := range models.NumberFaces[1:] {
			deck = append(deck, pair(color, value)...)
		}
		for _, value := range models.ActionFaces {
			deck = append(deck, pair(color, value)...)
		}
	}

	deck = appendWilds(deck, models.FaceWild, 4)
	deck = appendWilds(deck, models.FaceWild4, 4)
	if expansion {
		deck = appendWilds(deck, models.FaceWildSwap, wildSwapCount)
		deck = appendWilds(deck, models.FaceWildShuffle, wildShuffleCount)
		deck = appendWilds(deck, models.FaceWildCustom, wildCustomCount)
	}

	if want := DeckSize(expansion); len(deck) != want {
		panic(fmt.Sprintf("engine: deck has %d cards, should have %d", len(deck), want))
	}

	shuffle(deck, rng)
	return deck
}

func pair(color models.Color, value models.Face) []models.Card {
	return []models.Card{
		{ID: fmt.Sprintf("%s_%s_1", color, value), Color: color, Value: value},
		{ID: fmt.Sprintf("%s_%s_2", color, value), Color: color, Value: value},
	}
}

func appendWilds(deck []models.Card, value models.Face, n int) []models.Card {
	for i := 0; i < n; i++ {
		deck = append(deck, models.Card{ID: fmt.Sprintf("%s_%d", value, i), Color: models.ColorWild, Value: value})
	}
	return deck
}

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle(cards []models.Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// reshuffleFromDiscard moves every discard except the top back into the
// draw stack and shuffles it.
func (r *Room) reshuffleFromDiscard() error {
	if len(r.DiscardPile) < 2 {
		return ErrOutOfCards
	}
	top := r.DiscardPile[len(r.DiscardPile)-1]
	r.Deck = append(r.Deck, r.DiscardPile[:len(r.DiscardPile)-1]...)
	r.DiscardPile = []models.Card{top}
	shuffle(r.Deck, r.rng)
	r.log.WithField("deck", len(r.Deck)).Debug("reshuffled discard pile into deck")
	return nil
}

// draw takes the top of the draw stack, reshuffling first when it is empty.
func (r *Room) draw() (models.Card, error) {
	if len(r.Deck) == 0 {
		if err := r.reshuffleFromDiscard(); err != nil {
			return models.Card{}, err
		}
	}
	return r.popDeck(), nil
}

// popDeck assumes the deck is non-empty.
func (r *Room) popDeck() models.Card {
	c := r.Deck[len(r.Deck)-1]
	r.Deck = r.Deck[:len(r.Deck)-1]
	return c
}

// drawable is how many cards can still be drawn, counting a reshuffle.
// extraDiscards covers a card about to land on the discard pile.
func (r *Room) drawable(extraDiscards int) int {
	reshufflable := len(r.DiscardPile) + extraDiscards - 1
	if reshufflable < 0 {
		reshufflable = 0
	}
	return len(r.Deck) + reshufflable
}

// drawCards gives count cards to p and returns them. Callers check
// drawable first, so a shortfall here means the deck ran dry mid-draw;
// the remaining draws are abandoned and the error surfaced.
func (r *Room) drawCards(p *models.Player, count int) ([]models.Card, error) {
	drawn := make([]models.Card, 0, count)
	for i := 0; i < count; i++ {
		c, err := r.draw()
		if err != nil {
			r.log.WithFields(logrus.Fields{"player": p.ID, "wanted": count, "got": i}).Warn("ran out of cards mid-draw")
			return drawn, err
		}
		p.Hand = append(p.Hand, c)
		drawn = append(drawn, c)
	}
	if count > 0 {
		delete(r.unoCalled, p.ID)
		if r.LastPlayerToCallUno == p.ID {
			r.LastPlayerToCallUno = uuid.Nil
		}
	}
	return drawn, nil
}
