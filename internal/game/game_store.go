// internal/game/game_store.go
package game

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// GameStore holds every live room in memory, keyed by room code.
type GameStore struct {
	mu    sync.Mutex
	games map[string]*UnoGame
	rng   *rand.Rand
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*UnoGame),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewCode returns an unused room code. The code is not reserved until
// AddGame is called.
func (s *GameStore) NewCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[s.rng.Intn(len(codeAlphabet))]
		}
		if _, taken := s.games[string(b)]; !taken {
			return string(b)
		}
	}
}

// AddGame stores the game and removes it again once it empties.
func (s *GameStore) AddGame(game *UnoGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.Code] = game
	prev := game.OnEmpty
	game.OnEmpty = func(code string) {
		if prev != nil {
			prev(code)
		}
		s.DeleteGame(code)
	}
}

func (s *GameStore) GetGame(code string) (*UnoGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[code]
	return g, exists
}

func (s *GameStore) DeleteGame(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, code)
}

// List returns a summary of every room, oldest first.
func (s *GameStore) List() []RoomSummary {
	s.mu.Lock()
	games := make([]*UnoGame, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	s.mu.Unlock()

	out := make([]RoomSummary, 0, len(games))
	for _, g := range games {
		out = append(out, g.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len is the number of live rooms.
func (s *GameStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
