package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const codeLen = 6

func newTestServer(t *testing.T, maxActions int) (*GameServer, *httptest.Server) {
	t.Helper()
	issuer, err := auth.NewIssuer(0)
	require.NoError(t, err)
	gs := NewGameServer(ServerOptions{
		Issuer:           issuer,
		MaxActionsPerSec: maxActions,
		Rand:             rand.New(rand.NewSource(7)),
	})
	srv := httptest.NewServer(NewRouter(gs))
	t.Cleanup(srv.Close)
	return gs, srv
}

func postJSON(t *testing.T, url string, body interface{}, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSeat(t *testing.T, resp *http.Response) seatResponse {
	t.Helper()
	var seat seatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&seat))
	return seat
}

func createRoom(t *testing.T, srv *httptest.Server, body map[string]interface{}) seatResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/rooms", body, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeSeat(t, resp)
}

func joinRoom(t *testing.T, srv *httptest.Server, code, name string) seatResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/rooms/"+code+"/join", map[string]string{"name": name}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeSeat(t, resp)
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, code, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + code + "/ws?token=" + token
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"uno"}})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

// readUntil skips events until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, typ game.GameEventType) game.GameEvent {
	t.Helper()
	for {
		var ev game.GameEvent
		require.NoError(t, wsjson.Read(ctx, c, &ev), "waiting for %s", typ)
		if ev.Type == typ {
			return ev
		}
	}
}

func TestCreateAndListRooms(t *testing.T) {
	_, srv := newTestServer(t, 10)

	seat := createRoom(t, srv, map[string]interface{}{
		"name":  "alice",
		"rules": map[string]interface{}{"targetScore": 100},
	})
	assert.Len(t, seat.Code, codeLen)
	assert.NotEmpty(t, seat.Token)
	assert.Equal(t, seat.PlayerID, seat.Room.HostID)
	assert.Equal(t, 100, seat.Room.Rules.TargetScore)

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []game.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, seat.Code, list[0].Code)
	assert.Equal(t, 1, list[0].PlayerCount)
	assert.False(t, list[0].Private)

	resp, err = http.Get(srv.URL + "/rooms/" + seat.Code)
	require.NoError(t, err)
	defer resp.Body.Close()
	var room roomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	require.Len(t, room.State.Players, 1)
	assert.Equal(t, "alice", room.State.Players[0].Name)
	assert.False(t, room.State.GameStarted)
}

func TestCreateRoomValidation(t *testing.T) {
	_, srv := newTestServer(t, 10)

	resp := postJSON(t, srv.URL+"/rooms", map[string]interface{}{"name": "  "}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/rooms", map[string]interface{}{
		"name":  "alice",
		"rules": map[string]interface{}{"maxPlayers": 50},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := http.Post(srv.URL+"/rooms", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestJoinRoomPassword(t *testing.T) {
	_, srv := newTestServer(t, 10)
	seat := createRoom(t, srv, map[string]interface{}{"name": "alice", "password": "secret"})
	assert.True(t, seat.Room.Private)

	resp := postJSON(t, srv.URL+"/rooms/"+seat.Code+"/join", map[string]string{"name": "bob", "password": "nope"}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/rooms/"+seat.Code+"/join", map[string]string{"name": "bob", "password": "secret"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bob := decodeSeat(t, resp)
	assert.Equal(t, 2, bob.Room.PlayerCount)
	assert.Equal(t, seat.PlayerID, bob.Room.HostID)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, srv := newTestServer(t, 10)
	resp := postJSON(t, srv.URL+"/rooms/NOPE42/join", map[string]string{"name": "bob"}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinFullRoom(t *testing.T) {
	_, srv := newTestServer(t, 10)
	seat := createRoom(t, srv, map[string]interface{}{
		"name":  "alice",
		"rules": map[string]interface{}{"maxPlayers": 2},
	})
	joinRoom(t, srv, seat.Code, "bob")

	resp := postJSON(t, srv.URL+"/rooms/"+seat.Code+"/join", map[string]string{"name": "carol"}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "room_full", body.Code)
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	gs, srv := newTestServer(t, 10)
	seat := createRoom(t, srv, map[string]interface{}{"name": "alice"})
	other := createRoom(t, srv, map[string]interface{}{"name": "zed"})

	resp := postJSON(t, srv.URL+"/rooms/"+seat.Code+"/leave", map[string]string{}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/rooms/"+seat.Code+"/leave", map[string]string{}, other.Token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/rooms/"+seat.Code+"/leave", map[string]string{}, seat.Token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, ok := gs.GameStore.GetGame(seat.Code)
	assert.False(t, ok)
	_, ok = gs.hub(seat.Code)
	assert.False(t, ok)

	get, err := http.Get(srv.URL + "/rooms/" + seat.Code)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)
}

func TestPing(t *testing.T) {
	_, srv := newTestServer(t, 10)
	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomWebSocketGameStart(t *testing.T) {
	_, srv := newTestServer(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := createRoom(t, srv, map[string]interface{}{"name": "alice"})
	bob := joinRoom(t, srv, alice.Code, "bob")

	ac := dial(t, ctx, srv, alice.Code, alice.Token)
	readUntil(t, ctx, ac, game.EventRoomUpdate)
	bc := dial(t, ctx, srv, alice.Code, bob.Token)
	readUntil(t, ctx, bc, game.EventRoomUpdate)

	require.NoError(t, wsjson.Write(ctx, bc, models.GameAction{ActionType: game.ActionStartGame}))
	ev := readUntil(t, ctx, bc, game.EventErrorMessage)
	assert.Equal(t, "not_host", ev.Payload["code"])

	require.NoError(t, wsjson.Write(ctx, ac, models.GameAction{ActionType: game.ActionStartGame}))
	for _, c := range []*websocket.Conn{ac, bc} {
		ev := readUntil(t, ctx, c, game.EventGameStarted)
		assert.Len(t, ev.Hand, 7)
		require.NotNil(t, ev.State)
		assert.True(t, ev.State.GameStarted)
		for _, p := range ev.State.Players {
			assert.Equal(t, 7, p.HandCount)
		}
		turn := readUntil(t, ctx, c, game.EventTurnUpdate)
		require.NotNil(t, turn.User)
	}
}

func TestRoomWebSocketRejectsBadToken(t *testing.T) {
	_, srv := newTestServer(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := createRoom(t, srv, map[string]interface{}{"name": "alice"})
	other := createRoom(t, srv, map[string]interface{}{"name": "zed"})

	for token, want := range map[string]websocket.StatusCode{
		"garbage":   InvalidAuthTokenError,
		other.Token: InvalidRoomError,
	} {
		c := dial(t, ctx, srv, alice.Code, token)
		_, _, err := c.Read(ctx)
		require.Error(t, err)
		assert.Equal(t, want, websocket.CloseStatus(err))
	}
}

func TestRoomWebSocketRateLimit(t *testing.T) {
	_, srv := newTestServer(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := createRoom(t, srv, map[string]interface{}{"name": "alice"})
	c := dial(t, ctx, srv, alice.Code, alice.Token)
	readUntil(t, ctx, c, game.EventRoomUpdate)

	for i := 0; i < 3; i++ {
		require.NoError(t, wsjson.Write(ctx, c, models.GameAction{ActionType: game.ActionPing}))
	}
	readUntil(t, ctx, c, game.EventPong)
	ev := readUntil(t, ctx, c, game.EventErrorMessage)
	assert.Equal(t, "rate_limited", ev.Payload["code"])
}

func TestRoomWebSocketBadMessage(t *testing.T) {
	_, srv := newTestServer(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := createRoom(t, srv, map[string]interface{}{"name": "alice"})
	c := dial(t, ctx, srv, alice.Code, alice.Token)
	readUntil(t, ctx, c, game.EventRoomUpdate)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("not json")))
	ev := readUntil(t, ctx, c, game.EventErrorMessage)
	assert.Equal(t, "bad_message", ev.Payload["code"])

	require.NoError(t, wsjson.Write(ctx, c, models.GameAction{ActionType: "fly"}))
	ev = readUntil(t, ctx, c, game.EventErrorMessage)
	assert.Equal(t, "unknown_action", ev.Payload["code"])
}

func TestRoomHub(t *testing.T) {
	h := newRoomHub(nil)
	id := uuid.New()
	first := newClient(id, nil)
	second := newClient(id, nil)

	assert.Nil(t, h.register(first))
	assert.Equal(t, first, h.register(second))
	_, open := <-first.send
	assert.False(t, open)

	h.sendTo(id, game.GameEvent{Type: game.EventPong})
	h.broadcast(game.GameEvent{Type: game.EventRoomUpdate})
	assert.Contains(t, string(<-second.send), `"pong"`)
	assert.Contains(t, string(<-second.send), `"room_update"`)

	assert.False(t, h.unregister(first))
	assert.True(t, h.connected(id))
	assert.True(t, h.unregister(second))
	assert.False(t, h.connected(id))
}

func TestRoomHubDropsSlowClient(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := newRoomHub(logger)
	id := uuid.New()
	c := newClient(id, nil)
	h.register(c)

	for i := 0; i <= sendBuffer; i++ {
		h.broadcast(game.GameEvent{Type: game.EventRoomUpdate})
	}
	assert.False(t, h.connected(id))
	assert.NotPanics(t, func() { h.sendTo(id, game.GameEvent{Type: game.EventPong}) })

	n := 0
	for range c.send {
		n++
	}
	assert.Equal(t, sendBuffer, n)
	assert.True(t, h.unregister(c), "a dropped client still releases its seat on disconnect")
}

func TestApplyReleasesLockOnPanic(t *testing.T) {
	g := game.NewUnoGame("LOCK01", game.Options{})
	id := uuid.New()
	require.NoError(t, g.Join(id, "alice"))
	g.BroadcastToPlayerFn = func(uuid.UUID, game.GameEvent) { panic("write failed") }

	assert.Panics(t, func() { apply(g, id, models.GameAction{ActionType: game.ActionPing}) })
	require.True(t, g.Mu.TryLock())
	g.Mu.Unlock()
}
