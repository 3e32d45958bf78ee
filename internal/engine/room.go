// Package engine is the authoritative UNO rules engine for a single room.
//
// A Room is mutated only through its methods, one call per player action.
// Nothing in this package locks, sleeps or performs I/O: callers must
// serialize all calls against the same Room. The wild draw four challenge
// window is the one timed rule, and its timer belongs to the caller, which
// closes the window with ExpireWild4.
package engine

import (
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultWildColor is used when a wild is played without naming a play color.
const DefaultWildColor = models.ColorRed

// CustomRule is a named effect for the wildCustom expansion card.
type CustomRule func(r *Room, playerID uuid.UUID)

// RoomConfig is fixed at creation time.
type RoomConfig struct {
	Rules       HouseRules
	CustomRules map[string]CustomRule
	Scores      map[uuid.UUID]int // carried-over match scores, may be nil
	Rand        *rand.Rand        // nil uses a time-seeded source
	Logger      logrus.FieldLogger
}

// Wild4Challenge is the state of an open wild draw four challenge window.
type Wild4Challenge struct {
	Open            bool
	ChallengeableBy uuid.UUID
	PlayerID        uuid.UUID
	CardID          string
	Illegal         bool          // the offender held a card of PrevColor
	HandSnapshot    []models.Card // offender's hand including the wild4
	PrevColor       models.Color
	DrawnCards      []models.Card // the four cards the challenger drew
}

// Room is the aggregate root for one game.
type Room struct {
	ID      string
	Players []*models.Player

	Deck        []models.Card // top is the last element
	DiscardPile []models.Card // top is the last element

	CurrentPlayerIndex int
	Direction          int
	CurrentColor       models.Color

	GameStarted         bool
	RoundOver           bool
	Round               int
	UnoCallRequired     bool
	LastPlayerToCallUno uuid.UUID

	Wild4 Wild4Challenge

	Scores      map[uuid.UUID]int
	RoundWinner uuid.UUID
	GameWinner  uuid.UUID

	Rules HouseRules

	customRules  map[string]CustomRule
	unoCalled    map[uuid.UUID]bool
	drewThisTurn bool
	rng          *rand.Rand
	log          logrus.FieldLogger
}

// NewRoom builds an empty room. Players are added with AddPlayer.
func NewRoom(id string, cfg RoomConfig) *Room {
	rules := cfg.Rules
	if rules.StartingHandSize <= 0 {
		rules.StartingHandSize = DefaultHandSize
	}
	if rules.MaxPlayers <= 0 {
		rules.MaxPlayers = DefaultMaxPlayers
	}
	if rules.TargetScore <= 0 {
		rules.TargetScore = DefaultTargetScore
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	scores := make(map[uuid.UUID]int, len(cfg.Scores))
	for id, s := range cfg.Scores {
		scores[id] = s
	}

	return &Room{
		ID:          id,
		Players:     []*models.Player{},
		Deck:        []models.Card{},
		DiscardPile: []models.Card{},
		Direction:   1,
		Scores:      scores,
		Rules:       rules,
		customRules: cfg.CustomRules,
		unoCalled:   make(map[uuid.UUID]bool),
		rng:         rng,
		log:         logger.WithField("room", id),
	}
}

// AddPlayer seats a new player at the end of the turn order.
func (r *Room) AddPlayer(id uuid.UUID, name string) error {
	if r.GameStarted && r.GameWinner == uuid.Nil {
		return ErrGameAlreadyStarted
	}
	if len(r.Players) >= r.Rules.MaxPlayers {
		return ErrRoomFull
	}
	if _, p := r.findPlayer(id); p != nil {
		return ErrDuplicatePlayer
	}
	r.Players = append(r.Players, &models.Player{
		ID:        id,
		Name:      name,
		Hand:      []models.Card{},
		Connected: true,
	})
	if _, ok := r.Scores[id]; !ok {
		r.Scores[id] = 0
	}
	return nil
}

// RemovePlayer drops a seat. The departing hand goes to the bottom of the
// draw stack so no card leaves the round. If it was the player's turn, the
// next player in the direction of play starts a fresh turn.
func (r *Room) RemovePlayer(id uuid.UUID) error {
	idx, p := r.findPlayer(id)
	if p == nil {
		return ErrPlayerNotFound
	}

	if len(p.Hand) > 0 {
		r.Deck = append(append([]models.Card{}, p.Hand...), r.Deck...)
		p.Hand = nil
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	delete(r.unoCalled, id)
	if r.LastPlayerToCallUno == id {
		r.LastPlayerToCallUno = uuid.Nil
	}
	if r.Wild4.Open && (r.Wild4.PlayerID == id || r.Wild4.ChallengeableBy == id) {
		r.Wild4 = Wild4Challenge{}
	}

	switch {
	case len(r.Players) == 0:
		r.CurrentPlayerIndex = 0
	case idx == r.CurrentPlayerIndex:
		// the turn passes to whoever was next in play order
		if r.Direction < 0 {
			r.CurrentPlayerIndex = NextIndex(idx, -1, len(r.Players))
		} else if r.CurrentPlayerIndex >= len(r.Players) {
			r.CurrentPlayerIndex = 0
		}
		r.startTurn()
	case idx < r.CurrentPlayerIndex:
		r.CurrentPlayerIndex--
	}

	if r.GameStarted && !r.RoundOver && len(r.Players) < 2 {
		r.log.Debug("round aborted: not enough players")
		r.GameStarted = false
		r.UnoCallRequired = false
	}
	return nil
}

// SetConnected records a player's transport state; it has no rules effect.
func (r *Room) SetConnected(id uuid.UUID, connected bool) error {
	_, p := r.findPlayer(id)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Connected = connected
	return nil
}

// StartGame deals the first round of a match. A finished match may be
// restarted, which resets every score.
func (r *Room) StartGame() (GameState, error) {
	if r.GameStarted && r.GameWinner == uuid.Nil {
		return GameState{}, ErrGameAlreadyStarted
	}
	if len(r.Players) < 2 {
		return GameState{}, ErrNotEnoughPlayers
	}
	if len(r.Players)*r.Rules.StartingHandSize >= DeckSize(r.Rules.Expansion) {
		return GameState{}, ErrOutOfCards
	}
	if err := r.deal(1); err != nil {
		return GameState{}, err
	}
	if r.GameWinner != uuid.Nil {
		for id := range r.Scores {
			r.Scores[id] = 0
		}
	}
	r.GameStarted = true
	r.GameWinner = uuid.Nil
	r.CurrentPlayerIndex = r.rng.Intn(len(r.Players))
	return r.State(nil), nil
}

// StartRound deals the next round after a round winner when the match is
// still undecided. Scores carry over.
func (r *Room) StartRound() (GameState, error) {
	if !r.GameStarted {
		return GameState{}, ErrGameNotStarted
	}
	if !r.RoundOver {
		return GameState{}, ErrRoundInProgress
	}
	if r.GameWinner != uuid.Nil {
		return GameState{}, ErrMatchOver
	}
	if len(r.Players) < 2 {
		return GameState{}, ErrNotEnoughPlayers
	}
	if err := r.deal(r.Round + 1); err != nil {
		return GameState{}, err
	}
	r.CurrentPlayerIndex = r.nextIndexFrom(r.CurrentPlayerIndex)
	return r.State(nil), nil
}

// deal builds a fresh deck, deals every hand and turns the first discard.
// Wilds turned while searching for a starting color go to the bottom. If
// only wilds are left after dealing, the room is left untouched.
func (r *Room) deal(round int) error {
	deck := CreateDeck(r.Rules.Expansion, r.rng)
	pop := func() models.Card {
		c := deck[len(deck)-1]
		deck = deck[:len(deck)-1]
		return c
	}

	hands := make([][]models.Card, len(r.Players))
	for i := range r.Players {
		hands[i] = make([]models.Card, 0, r.Rules.StartingHandSize)
		for j := 0; j < r.Rules.StartingHandSize; j++ {
			hands[i] = append(hands[i], pop())
		}
	}

	var top models.Card
	found := false
	for tries := len(deck); tries > 0; tries-- {
		c := pop()
		if !c.IsWild() {
			top, found = c, true
			break
		}
		deck = append([]models.Card{c}, deck...)
	}
	if !found {
		r.log.WithField("players", len(r.Players)).Warn("no starting card left after dealing")
		return ErrOutOfCards
	}

	for i, p := range r.Players {
		p.Hand = hands[i]
	}
	r.Deck = deck
	r.DiscardPile = []models.Card{top}
	r.CurrentColor = top.Color
	r.Round = round
	r.Direction = 1
	r.RoundOver = false
	r.RoundWinner = uuid.Nil
	r.UnoCallRequired = false
	r.LastPlayerToCallUno = uuid.Nil
	r.unoCalled = make(map[uuid.UUID]bool)
	r.Wild4 = Wild4Challenge{}
	r.drewThisTurn = false
	r.log.WithFields(logrus.Fields{"round": r.Round, "players": len(r.Players)}).Debug("round dealt")
	return nil
}

// Hand returns a copy of a player's hand for delivery to that player only.
func (r *Room) Hand(id uuid.UUID) ([]models.Card, error) {
	_, p := r.findPlayer(id)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	return append([]models.Card(nil), p.Hand...), nil
}

// Player returns the seat index and player for id, or -1 and nil.
func (r *Room) Player(id uuid.UUID) (int, *models.Player) {
	return r.findPlayer(id)
}

// CurrentPlayer returns the player whose turn it is, or nil with no players.
func (r *Room) CurrentPlayer() *models.Player {
	if len(r.Players) == 0 {
		return nil
	}
	return r.Players[r.CurrentPlayerIndex]
}

// TopCard returns the discard top. ok is false before the first deal.
func (r *Room) TopCard() (models.Card, bool) {
	if len(r.DiscardPile) == 0 {
		return models.Card{}, false
	}
	return r.DiscardPile[len(r.DiscardPile)-1], true
}

// CardCount is deck + discard + every hand; it is constant within a round.
func (r *Room) CardCount() int {
	n := len(r.Deck) + len(r.DiscardPile)
	for _, p := range r.Players {
		n += len(p.Hand)
	}
	return n
}

// CalledUno reports whether the player has declared while holding one card.
func (r *Room) CalledUno(id uuid.UUID) bool {
	return r.unoCalled[id]
}

func (r *Room) findPlayer(id uuid.UUID) (int, *models.Player) {
	for i, p := range r.Players {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

// checkInRound is the shared gate for every in-round action.
func (r *Room) checkInRound() error {
	if !r.GameStarted {
		return ErrGameNotStarted
	}
	if r.RoundOver {
		return ErrRoundOver
	}
	return nil
}

// checkTurn returns the acting player's seat if it is their turn.
func (r *Room) checkTurn(playerID uuid.UUID) (int, *models.Player, error) {
	idx, p := r.findPlayer(playerID)
	if p == nil {
		return -1, nil, ErrPlayerNotFound
	}
	if idx != r.CurrentPlayerIndex {
		return -1, nil, ErrNotYourTurn
	}
	return idx, p, nil
}
