// internal/game/game_test.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) getLastEvent() *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.allEvents) == 0 {
		return nil
	}
	return &mb.allEvents[len(mb.allEvents)-1]
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

// ofType returns the broadcast events of type t, oldest first.
func (mb *mockBroadcaster) ofType(t GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) playerOfType(id uuid.UUID, t GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.playerEvents[id] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func mk(id string, color models.Color, value models.Face) models.Card {
	return models.Card{ID: id, Color: color, Value: value}
}

func newTestGame(t *testing.T, numPlayers int, opts Options) (*UnoGame, []uuid.UUID, *mockBroadcaster) {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(42))
	}
	g := NewUnoGame("TEST01", opts)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	ids := make([]uuid.UUID, numPlayers)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, g.Join(ids[i], fmt.Sprintf("p%d", i)))
	}
	return g, ids, mb
}

// setupTestGame seats the players and starts the match as the host.
func setupTestGame(t *testing.T, numPlayers int, opts Options) (*UnoGame, []uuid.UUID, *mockBroadcaster) {
	t.Helper()
	g, ids, mb := newTestGame(t, numPlayers, opts)
	act(g, ids[0], ActionStartGame, nil)
	require.True(t, g.Room.GameStarted, "Game should be marked as started")
	mb.clear()
	return g, ids, mb
}

// rig replaces the dealt round with known hands. Seat 0 acts next.
func rig(g *UnoGame, top models.Card, hands ...[]models.Card) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	r := g.Room
	for i, h := range hands {
		r.Players[i].Hand = h
	}
	r.DiscardPile = []models.Card{top}
	r.CurrentColor = top.Color
	r.CurrentPlayerIndex = 0
	r.Direction = 1
	r.Deck = make([]models.Card, 0, 30)
	for i := 0; i < 30; i++ {
		r.Deck = append(r.Deck, mk(fmt.Sprintf("filler_%d", i), models.ColorGreen, "0"))
	}
}

// act delivers one inbound action the way the websocket handler does.
func act(g *UnoGame, playerID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.HandlePlayerAction(playerID, models.GameAction{ActionType: actionType, Payload: payload})
}

func errorCode(t *testing.T, mb *mockBroadcaster, playerID uuid.UUID) string {
	t.Helper()
	ev := mb.getLastPlayerEvent(playerID)
	require.NotNil(t, ev)
	require.Equal(t, EventErrorMessage, ev.Type)
	code, _ := ev.Payload["code"].(string)
	return code
}

func TestJoinAssignsHost(t *testing.T) {
	g, ids, mb := newTestGame(t, 2, Options{})

	assert.Equal(t, ids[0], g.HostID)
	joined := mb.ofType(EventPlayerJoined)
	require.Len(t, joined, 2)
	assert.Equal(t, "p1", joined[1].User.Name)
	assert.Equal(t, 2, joined[1].State.TotalPlayers)

	assert.ErrorIs(t, g.Join(ids[1], "again"), engine.ErrDuplicatePlayer)

	sum := g.Summary()
	assert.Equal(t, "TEST01", sum.Code)
	assert.Equal(t, 2, sum.PlayerCount)
	assert.False(t, sum.Started)
	assert.False(t, sum.Private)
}

func TestStartGameRequiresHost(t *testing.T) {
	g, ids, mb := newTestGame(t, 3, Options{})
	mb.clear()

	act(g, ids[1], ActionStartGame, nil)
	assert.Equal(t, "not_host", errorCode(t, mb, ids[1]))
	assert.False(t, g.Room.GameStarted)

	act(g, ids[0], ActionStartGame, nil)
	require.True(t, g.Room.GameStarted)
	for _, id := range ids {
		started := mb.playerOfType(id, EventGameStarted)
		require.Len(t, started, 1)
		assert.Len(t, started[0].Hand, engine.DefaultHandSize)
		require.NotNil(t, started[0].State)
		assert.Equal(t, 1, started[0].State.Round)
	}
	last := mb.getLastEvent()
	require.NotNil(t, last)
	assert.Equal(t, EventTurnUpdate, last.Type)
	assert.Equal(t, g.Room.CurrentPlayer().ID, last.User.ID)

	act(g, ids[0], ActionStartGame, nil)
	assert.Equal(t, "game_already_started", errorCode(t, mb, ids[0]))
}

func TestStartGameNeedsTwoPlayers(t *testing.T) {
	g, ids, mb := newTestGame(t, 1, Options{})
	act(g, ids[0], ActionStartGame, nil)
	assert.Equal(t, "not_enough_players", errorCode(t, mb, ids[0]))
}

func TestPlayCardBroadcasts(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5"), mk("g1", models.ColorGreen, "1")},
		[]models.Card{mk("b2", models.ColorBlue, "2"), mk("y3", models.ColorYellow, "3")},
	)

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "r5"})

	played := mb.ofType(EventCardPlayed)
	require.Len(t, played, 1)
	assert.Equal(t, "r5", played[0].Card.ID)
	assert.Equal(t, ids[0], played[0].User.ID)
	assert.Equal(t, 1, played[0].State.Players[0].HandCount)
	assert.Nil(t, played[0].Hand, "broadcasts never carry a hand")

	hand := mb.getLastPlayerEvent(ids[0])
	require.NotNil(t, hand)
	assert.Equal(t, EventHandUpdate, hand.Type)
	assert.Len(t, hand.Hand, 1)

	turn := mb.getLastEvent()
	assert.Equal(t, EventTurnUpdate, turn.Type)
	assert.Equal(t, ids[1], turn.User.ID)
}

func TestRejectedActionLeavesStateUnchanged(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5"), mk("g1", models.ColorGreen, "1")},
		[]models.Card{mk("b2", models.ColorBlue, "2")},
	)
	before := g.State()

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "g1"})
	assert.Equal(t, "illegal_play", errorCode(t, mb, ids[0]))

	act(g, ids[1], ActionPlayCard, map[string]interface{}{"cardId": "b2"})
	assert.Equal(t, "not_your_turn", errorCode(t, mb, ids[1]))

	act(g, ids[0], ActionChallengeUno, map[string]interface{}{"targetId": "nope"})
	assert.Equal(t, "invalid_target", errorCode(t, mb, ids[0]))

	act(g, ids[0], "shuffle_everything", nil)
	assert.Equal(t, "unknown_action", errorCode(t, mb, ids[0]))

	assert.Equal(t, before, g.State())
	assert.Empty(t, mb.ofType(EventCardPlayed))
}

func TestDrawThenPass(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	rig(g, mk("top", models.ColorGreen, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5")},
		[]models.Card{mk("b2", models.ColorBlue, "2")},
	)

	// fillers are green, so the drawn card is playable and the turn stays
	act(g, ids[0], ActionDrawCard, nil)
	drawn := mb.playerOfType(ids[0], EventCardDrawn)
	require.Len(t, drawn, 1)
	assert.Equal(t, true, drawn[0].Payload["canPlay"])
	assert.Len(t, drawn[0].Hand, 2)
	assert.Equal(t, 0, g.State().CurrentPlayerIndex)

	act(g, ids[0], ActionPassTurn, nil)
	assert.Equal(t, 1, g.State().CurrentPlayerIndex)
	assert.Equal(t, ids[1], mb.getLastEvent().User.ID)
}

func TestWild4WindowExpires(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	g.ChallengeWindow = 30 * time.Millisecond
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("w4", models.ColorWild, models.FaceWild4), mk("r1", models.ColorRed, "1"), mk("g2", models.ColorGreen, "2")},
		[]models.Card{mk("b2", models.ColorBlue, "2")},
	)

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "w4", "chosenColor": "blue"})
	avail := mb.ofType(EventWild4ChallengeAvailable)
	require.Len(t, avail, 1)
	assert.Equal(t, ids[1], avail[0].Payload["challengerId"])
	assert.Equal(t, int64(30), avail[0].Payload["timeoutMs"])
	assert.True(t, g.State().Wild4Challenge)

	require.Eventually(t, func() bool {
		return len(mb.ofType(EventWild4ChallengeExpired)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, g.State().Wild4Challenge)

	act(g, ids[1], ActionChallengeWild4, nil)
	assert.Equal(t, "challenge_window_closed", errorCode(t, mb, ids[1]))
}

func TestWild4ChallengeStopsTimer(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	g.ChallengeWindow = 40 * time.Millisecond
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("w4", models.ColorWild, models.FaceWild4), mk("r1", models.ColorRed, "1"), mk("g2", models.ColorGreen, "2")},
		[]models.Card{mk("b2", models.ColorBlue, "2")},
	)

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "w4", "chosenColor": "blue"})
	act(g, ids[1], ActionChallengeWild4, nil)

	res := mb.ofType(EventWild4ChallengeResult)
	require.Len(t, res, 1)
	assert.Equal(t, true, res[0].Payload["success"])
	assert.Equal(t, ids[0], res[0].Payload["penalizedId"])

	g.Mu.Lock()
	_, offender := g.Room.Player(ids[0])
	_, challenger := g.Room.Player(ids[1])
	assert.Len(t, offender.Hand, 3+engine.Wild4Penalty, "wild4 returned plus penalty")
	assert.Len(t, challenger.Hand, 1)
	assert.Equal(t, models.ColorRed, g.Room.CurrentColor)
	assert.Equal(t, 1, g.Room.CurrentPlayerIndex)
	g.Mu.Unlock()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, mb.ofType(EventWild4ChallengeExpired))
}

func TestDeclineWild4(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("w4", models.ColorWild, models.FaceWild4), mk("g2", models.ColorGreen, "2")},
		[]models.Card{mk("b2", models.ColorBlue, "2")},
	)
	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "w4", "chosenColor": "green"})

	act(g, ids[0], ActionDeclineWild4, nil)
	assert.Equal(t, "not_eligible_challenger", errorCode(t, mb, ids[0]))

	act(g, ids[1], ActionDeclineWild4, nil)
	expired := mb.ofType(EventWild4ChallengeExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, true, expired[0].Payload["declined"])
	assert.False(t, g.State().Wild4Challenge)
}

func TestCallUnoAndChallenge(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5")},
		[]models.Card{mk("b2", models.ColorBlue, "2"), mk("y3", models.ColorYellow, "3")},
	)

	act(g, ids[1], ActionCallUno, nil)
	assert.Equal(t, "invalid_call_state", errorCode(t, mb, ids[1]))

	act(g, ids[0], ActionCallUno, nil)
	called := mb.ofType(EventUnoCalled)
	require.Len(t, called, 1)
	assert.Equal(t, ids[0], called[0].User.ID)

	act(g, ids[1], ActionChallengeUno, map[string]interface{}{"targetId": ids[0].String()})
	res := mb.ofType(EventUnoChallengeResult)
	require.Len(t, res, 1)
	assert.Equal(t, false, res[0].Payload["success"])
	assert.Equal(t, ids[1], res[0].Payload["penalizedId"])

	hand := mb.getLastPlayerEvent(ids[1])
	require.NotNil(t, hand)
	assert.Equal(t, EventHandUpdate, hand.Type)
	assert.Len(t, hand.Hand, 2+engine.UnoPenalty)
}

func TestRoundEndStartsNextRound(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5")},
		[]models.Card{mk("b2", models.ColorBlue, "2"), mk("sk", models.ColorYellow, models.FaceSkip)},
	)

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "r5"})

	ends := mb.ofType(EventRoundEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, ids[0], ends[0].User.ID)
	assert.Equal(t, 22, ends[0].Payload["points"])
	assert.Empty(t, mb.ofType(EventGameEnd))

	// RoundDelay 0 redeals immediately
	for _, id := range ids {
		started := mb.playerOfType(id, EventGameStarted)
		require.Len(t, started, 1)
		assert.Equal(t, 2, started[0].State.Round)
		assert.Len(t, started[0].Hand, engine.DefaultHandSize)
	}
	state := g.State()
	assert.False(t, state.RoundOver)
	assert.Equal(t, 22, state.Scores[ids[0]])
}

func TestRoundDelaySchedulesRedeal(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{RoundDelay: 20 * time.Millisecond})
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5")},
		[]models.Card{mk("b2", models.ColorBlue, "2")},
	)

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "r5"})
	assert.True(t, g.State().RoundOver)

	act(g, ids[1], ActionDrawCard, nil)
	assert.Equal(t, "round_over", errorCode(t, mb, ids[1]))

	require.Eventually(t, func() bool { return g.State().Round == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, g.State().RoundOver)
}

func TestMatchEnd(t *testing.T) {
	var got []MatchResult
	g, ids, mb := setupTestGame(t, 2, Options{Rules: engine.HouseRules{TargetScore: 1}})
	g.OnMatchEnd = func(res MatchResult) { got = append(got, res) }
	rig(g, mk("top", models.ColorRed, "3"),
		[]models.Card{mk("r5", models.ColorRed, "5")},
		[]models.Card{mk("b9", models.ColorBlue, "9")},
	)

	act(g, ids[0], ActionPlayCard, map[string]interface{}{"cardId": "r5"})

	end := mb.ofType(EventGameEnd)
	require.Len(t, end, 1)
	assert.Equal(t, ids[0], end[0].User.ID)

	require.Len(t, got, 1)
	assert.Equal(t, g.ID, got[0].GameID)
	assert.Equal(t, "TEST01", got[0].RoomCode)
	assert.Equal(t, ids[0], got[0].WinnerID)
	assert.Equal(t, 1, got[0].Rounds)
	require.Len(t, got[0].Players, 2)
	assert.Equal(t, 9, got[0].Players[0].Score)
	assert.Empty(t, mb.playerOfType(ids[1], EventGameStarted), "no redeal after the match")

	// the host may start a new match, which resets scores
	act(g, ids[0], ActionStartGame, nil)
	assert.Zero(t, g.State().Scores[ids[0]])
}

func TestLeaveReassignsHostAndEmpties(t *testing.T) {
	store := NewGameStore()
	g, ids, mb := newTestGame(t, 2, Options{})
	store.AddGame(g)

	n, err := g.Leave(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ids[1], g.HostID)
	left := mb.ofType(EventPlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "p0", left[0].User.Name)

	_, err = g.Leave(ids[0])
	assert.ErrorIs(t, err, engine.ErrPlayerNotFound)

	_, err = g.Leave(ids[1])
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, g.HostID)
	_, ok := store.GetGame(g.Code)
	assert.False(t, ok)
}

func TestLeaveAbortsRound(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, Options{})
	_, err := g.Leave(ids[1])
	require.NoError(t, err)
	assert.False(t, g.State().GameStarted)

	require.NoError(t, g.Join(uuid.New(), "late"))
}

func TestDisconnectReconnect(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})

	g.HandleDisconnect(ids[1])
	assert.False(t, g.State().Players[1].Connected)
	act(g, ids[1], ActionPing, nil)
	assert.Nil(t, mb.getLastPlayerEvent(ids[1]), "nothing is sent to an away player")

	g.HandleReconnect(ids[1])
	assert.True(t, g.State().Players[1].Connected)
	hand := mb.getLastPlayerEvent(ids[1])
	require.NotNil(t, hand)
	assert.Equal(t, EventHandUpdate, hand.Type)
	assert.Len(t, hand.Hand, engine.DefaultHandSize)

	act(g, ids[1], ActionPing, nil)
	assert.Equal(t, EventPong, mb.getLastPlayerEvent(ids[1]).Type)
}

func TestSendSyncState(t *testing.T) {
	g, ids, mb := setupTestGame(t, 2, Options{})
	g.Mu.Lock()
	g.SendSyncState(ids[0])
	g.Mu.Unlock()

	events := mb.playerEvents[ids[0]]
	require.Len(t, events, 2)
	assert.Equal(t, EventRoomUpdate, events[0].Type)
	assert.Equal(t, EventHandUpdate, events[1].Type)
}

type chanPublisher struct {
	ch chan cache.GameActionRecord
}

func (p *chanPublisher) PublishGameAction(_ context.Context, rec cache.GameActionRecord) error {
	p.ch <- rec
	return nil
}

func TestActionsArePublished(t *testing.T) {
	pub := &chanPublisher{ch: make(chan cache.GameActionRecord, 16)}
	g, ids, _ := newTestGame(t, 2, Options{Historian: pub})
	act(g, ids[0], ActionStartGame, nil)

	seen := make(map[int]cache.GameActionRecord)
	for len(seen) < 3 {
		select {
		case rec := <-pub.ch:
			seen[rec.ActionIndex] = rec
		case <-time.After(time.Second):
			t.Fatalf("only %d records published", len(seen))
		}
	}
	assert.Equal(t, "player_joined", seen[1].ActionType)
	assert.Equal(t, ids[1], seen[2].ActorUserID)
	assert.Equal(t, ActionStartGame, seen[3].ActionType)
	for _, rec := range seen {
		assert.Equal(t, g.ID, rec.GameID)
		assert.Equal(t, "TEST01", rec.RoomCode)
	}
}
