// internal/handlers/game_server.go
package handlers

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/sirupsen/logrus"
)

// ServerOptions configures a GameServer.
type ServerOptions struct {
	Issuer           *auth.Issuer
	Historian        game.ActionPublisher // nil disables action history
	OnMatchEnd       game.OnMatchEndFunc
	Logger           logrus.FieldLogger
	DefaultRules     engine.HouseRules
	RoundDelay       time.Duration
	DisconnectGrace  time.Duration // 0 keeps seats until the player leaves
	MaxActionsPerSec int
	AllowedOrigins   []string
	Rand             *rand.Rand // shared by every room; tests seed it
}

// GameServer owns the room store and the websocket hub of every room.
type GameServer struct {
	GameStore *game.GameStore

	issuer     *auth.Issuer
	historian  game.ActionPublisher
	onMatchEnd game.OnMatchEndFunc
	log        logrus.FieldLogger
	rules      engine.HouseRules
	roundDelay time.Duration
	grace      time.Duration
	maxActions int
	origins    []string
	rng        *rand.Rand

	mu   sync.Mutex
	hubs map[string]*roomHub
}

func NewGameServer(opts ServerOptions) *GameServer {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	rules := opts.DefaultRules
	if rules == (engine.HouseRules{}) {
		rules = engine.DefaultHouseRules()
	}
	maxActions := opts.MaxActionsPerSec
	if maxActions <= 0 {
		maxActions = 10
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &GameServer{
		GameStore:  game.NewGameStore(),
		issuer:     opts.Issuer,
		historian:  opts.Historian,
		onMatchEnd: opts.OnMatchEnd,
		log:        logger,
		rules:      rules,
		roundDelay: opts.RoundDelay,
		grace:      opts.DisconnectGrace,
		maxActions: maxActions,
		origins:    origins,
		rng:        opts.Rand,
		hubs:       make(map[string]*roomHub),
	}
}

// NewRoom creates a room with its hub wired in and stores it. The room is
// removed from the store, and its hub closed, once the last player leaves.
func (gs *GameServer) NewRoom(rules engine.HouseRules, passwordHash string) *game.UnoGame {
	code := gs.GameStore.NewCode()
	g := game.NewUnoGame(code, game.Options{
		Rules:      rules,
		Historian:  gs.historian,
		Logger:     gs.log,
		Rand:       gs.roomRand(),
		RoundDelay: gs.roundDelay,
	})
	g.PasswordHash = passwordHash
	hub := newRoomHub(gs.log.WithField("room", code))
	g.BroadcastFn = hub.broadcast
	g.BroadcastToPlayerFn = hub.sendTo
	g.OnMatchEnd = gs.onMatchEnd
	g.OnEmpty = func(code string) {
		gs.mu.Lock()
		delete(gs.hubs, code)
		gs.mu.Unlock()
		hub.closeAll()
		gs.log.WithField("room", code).Info("room closed")
	}

	gs.mu.Lock()
	gs.hubs[code] = hub
	gs.mu.Unlock()
	gs.GameStore.AddGame(g)
	gs.log.WithField("room", code).Info("room created")
	return g
}

func (gs *GameServer) hub(code string) (*roomHub, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	h, ok := gs.hubs[code]
	return h, ok
}

// roomRand derives a per-room source so rooms never share an unguarded rng.
func (gs *GameServer) roomRand() *rand.Rand {
	if gs.rng == nil {
		return nil
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return rand.New(rand.NewSource(gs.rng.Int63()))
}

// scheduleSeatRelease frees a seat whose owner has not (re)connected
// within the grace period.
func (gs *GameServer) scheduleSeatRelease(g *game.UnoGame, playerID uuid.UUID) {
	if gs.grace <= 0 {
		return
	}
	time.AfterFunc(gs.grace, func() {
		h, ok := gs.hub(g.Code)
		if !ok || h.connected(playerID) {
			return
		}
		if _, err := g.Leave(playerID); err == nil {
			gs.log.WithFields(logrus.Fields{"room": g.Code, "player": playerID}).Info("seat released after disconnect grace")
		}
	})
}
