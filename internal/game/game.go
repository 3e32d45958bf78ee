// internal/game/game.go
package game

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotHost       = &engine.Error{Kind: engine.KindInvalidState, Code: "not_host", Message: "only the host can start the game"}
	ErrUnknownAction = &engine.Error{Kind: engine.KindIllegalAction, Code: "unknown_action", Message: "unknown action type"}
	ErrBadTarget     = &engine.Error{Kind: engine.KindIllegalAction, Code: "invalid_target", Message: "target player id is not valid"}
)

// ActionPublisher receives one record per applied action. cache.Queue
// is the production implementation.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, rec cache.GameActionRecord) error
}

// MatchPlayer is one participant in a finished match.
type MatchPlayer struct {
	ID    uuid.UUID
	Name  string
	Score int
}

// MatchResult is handed to OnMatchEnd once a player reaches the target score.
type MatchResult struct {
	GameID    uuid.UUID
	RoomCode  string
	WinnerID  uuid.UUID
	Rounds    int
	Players   []MatchPlayer
	StartedAt time.Time
	EndedAt   time.Time
}

// OnMatchEndFunc handles a finished match, e.g. persisting it.
type OnMatchEndFunc func(res MatchResult)

// Options configures a new UnoGame.
type Options struct {
	Rules       engine.HouseRules
	CustomRules map[string]engine.CustomRule
	Historian   ActionPublisher
	Logger      logrus.FieldLogger
	Rand        *rand.Rand
	RoundDelay  time.Duration
}

// UnoGame serializes every action against one engine.Room and turns the
// results into events. All exported fields are guarded by Mu.
type UnoGame struct {
	ID           uuid.UUID
	Code         string
	HostID       uuid.UUID
	PasswordHash string
	CreatedAt    time.Time

	Room *engine.Room

	// ChallengeWindow auto-declines an unanswered wild draw four; 0 waits forever.
	ChallengeWindow time.Duration
	// RoundDelay is how long round results stay up; 0 redeals at once.
	RoundDelay time.Duration

	Mu sync.Mutex

	// BroadcastFn is used to send events to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	// OnMatchEnd is invoked with the lock held when a match is decided.
	OnMatchEnd OnMatchEndFunc

	// OnEmpty is invoked after the last player leaves.
	OnEmpty func(code string)

	historian    ActionPublisher
	log          logrus.FieldLogger
	actionIndex  int
	matchStarted time.Time

	wild4Timer *time.Timer
	wild4Seq   int
	roundTimer *time.Timer
}

// NewUnoGame builds an empty room under code.
func NewUnoGame(code string, opts Options) *UnoGame {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	rules := opts.Rules
	customRules := opts.CustomRules
	if customRules == nil {
		customRules = DefaultCustomRules()
	}
	id := uuid.New()
	logger = logger.WithFields(logrus.Fields{"room": code, "game_id": id})

	g := &UnoGame{
		ID:              id,
		Code:            code,
		CreatedAt:       time.Now(),
		ChallengeWindow: time.Duration(rules.Wild4ChallengeSec) * time.Second,
		RoundDelay:      opts.RoundDelay,
		historian:       opts.Historian,
		log:             logger,
	}
	g.Room = engine.NewRoom(code, engine.RoomConfig{
		Rules:       rules,
		CustomRules: customRules,
		Rand:        opts.Rand,
		Logger:      logger,
	})
	return g
}

// Join seats a player. The first player to join hosts the room.
func (g *UnoGame) Join(playerID uuid.UUID, name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.Room.AddPlayer(playerID, name); err != nil {
		return err
	}
	if g.HostID == uuid.Nil {
		g.HostID = playerID
	}
	g.log.WithField("player", playerID).Info("player joined")
	g.logAction(playerID, "player_joined", map[string]interface{}{"name": name})

	state := g.Room.State(nil)
	g.fireEvent(GameEvent{Type: EventPlayerJoined, User: &EventUser{ID: playerID, Name: name}, State: &state})
	g.fireEvent(GameEvent{Type: EventRoomUpdate, State: &state})
	return nil
}

// Leave removes a player for good. Host passes to the next seat. The
// number of remaining players is returned.
func (g *UnoGame) Leave(playerID uuid.UUID) (int, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	_, p := g.Room.Player(playerID)
	if p == nil {
		return len(g.Room.Players), engine.ErrPlayerNotFound
	}
	name := p.Name
	wasStarted := g.Room.GameStarted && !g.Room.RoundOver
	if err := g.Room.RemovePlayer(playerID); err != nil {
		return len(g.Room.Players), err
	}
	remaining := len(g.Room.Players)

	if g.HostID == playerID {
		g.HostID = uuid.Nil
		if remaining > 0 {
			g.HostID = g.Room.Players[0].ID
		}
	}
	if !g.Room.Wild4.Open {
		g.stopWild4Timer()
	}
	if wasStarted && !g.Room.GameStarted {
		g.log.Info("round aborted, not enough players")
		g.stopTimers()
	}

	g.log.WithFields(logrus.Fields{"player": playerID, "remaining": remaining}).Info("player left")
	g.logAction(playerID, "player_left", nil)

	state := g.Room.State(nil)
	g.fireEvent(GameEvent{Type: EventPlayerLeft, User: &EventUser{ID: playerID, Name: name}, State: &state})
	g.fireEvent(GameEvent{Type: EventRoomUpdate, State: &state})

	if remaining == 0 {
		g.stopTimers()
		if g.OnEmpty != nil {
			g.OnEmpty(g.Code)
		}
	}
	return remaining, nil
}

// HandleDisconnect marks a player as away. The seat is kept so the player
// can reconnect with the same session.
func (g *UnoGame) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.Room.SetConnected(playerID, false); err != nil {
		return
	}
	g.log.WithField("player", playerID).Info("player disconnected")
	g.logAction(playerID, "player_disconnect", nil)
	state := g.Room.State(nil)
	g.fireEvent(GameEvent{Type: EventRoomUpdate, State: &state})
}

// HandleReconnect marks a player as present again and resends their view:
// the room, then their hand once the game has started.
func (g *UnoGame) HandleReconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.Room.SetConnected(playerID, true); err != nil {
		return
	}
	g.log.WithField("player", playerID).Info("player reconnected")
	g.logAction(playerID, "player_reconnect", nil)
	state := g.Room.State(nil)
	g.fireEvent(GameEvent{Type: EventRoomUpdate, State: &state})
	g.SendSyncState(playerID)
}

// HandlePlayerAction routes one inbound message. Errors go back to the
// sender as error_message and leave the room unchanged.
// Assumes lock is held by the caller.
func (g *UnoGame) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) {
	var err error
	switch action.ActionType {
	case ActionStartGame:
		err = g.handleStartGame(playerID)
	case ActionPlayCard:
		err = g.handlePlayCard(playerID, action)
	case ActionDrawCard:
		err = g.handleDrawCard(playerID)
	case ActionPassTurn:
		err = g.handlePassTurn(playerID)
	case ActionCallUno:
		err = g.handleCallUno(playerID)
	case ActionChallengeUno:
		err = g.handleChallengeUno(playerID, action)
	case ActionChallengeWild4:
		err = g.handleChallengeWild4(playerID)
	case ActionDeclineWild4:
		err = g.handleDeclineWild4(playerID)
	case ActionPing:
		g.fireEventToPlayer(playerID, GameEvent{Type: EventPong})
	default:
		err = ErrUnknownAction
	}
	if err != nil {
		g.sendError(playerID, action.ActionType, err)
	}
}

func (g *UnoGame) handleStartGame(playerID uuid.UUID) error {
	if playerID != g.HostID {
		return ErrNotHost
	}
	state, err := g.Room.StartGame()
	if err != nil {
		return err
	}
	g.stopTimers()
	g.matchStarted = time.Now()
	g.log.WithField("players", len(g.Room.Players)).Info("match started")
	g.logAction(playerID, "start_game", map[string]interface{}{"players": len(g.Room.Players), "round": state.Round})
	g.dealtRound(state)
	return nil
}

func (g *UnoGame) handlePlayCard(playerID uuid.UUID, action models.GameAction) error {
	opts := engine.PlayOptions{
		ChosenColor: models.Color(action.String("chosenColor")),
		CustomRule:  action.String("customRule"),
	}
	if raw := action.String("targetPlayerId"); raw != "" {
		target, err := uuid.Parse(raw)
		if err != nil {
			return ErrBadTarget
		}
		opts.TargetPlayerID = target
	}

	res, err := g.Room.PlayCard(playerID, action.String("cardId"), opts)
	if err != nil {
		return err
	}

	g.logAction(playerID, ActionPlayCard, map[string]interface{}{
		"card":  res.PlayedCard.ID,
		"color": res.ChosenColor,
	})
	card := res.PlayedCard
	g.fireEvent(GameEvent{
		Type:    EventCardPlayed,
		User:    g.eventUser(playerID),
		Card:    &card,
		Payload: map[string]interface{}{"chosenColor": res.ChosenColor},
		State:   &res.State,
	})
	g.sendHands(g.affectedBy(playerID, res.Outcome)...)

	if res.Winner != nil {
		g.finishRound(res)
		return nil
	}
	if g.Room.Wild4.Open {
		g.openWild4Window()
	}
	g.broadcastTurn(res.State, nil)
	return nil
}

func (g *UnoGame) handleDrawCard(playerID uuid.UUID) error {
	res, err := g.Room.DrawCard(playerID)
	if err != nil {
		return err
	}
	g.logAction(playerID, ActionDrawCard, map[string]interface{}{"card": res.Card.ID, "canPlay": res.CanPlay})

	card := res.Card
	hand, _ := g.Room.Hand(playerID)
	g.fireEventToPlayer(playerID, GameEvent{
		Type:    EventCardDrawn,
		Card:    &card,
		Hand:    hand,
		Payload: map[string]interface{}{"canPlay": res.CanPlay},
	})
	g.broadcastTurn(res.State, map[string]interface{}{"drew": playerID})
	return nil
}

func (g *UnoGame) handlePassTurn(playerID uuid.UUID) error {
	state, err := g.Room.PassTurn(playerID)
	if err != nil {
		return err
	}
	g.logAction(playerID, ActionPassTurn, nil)
	g.broadcastTurn(state, nil)
	return nil
}

func (g *UnoGame) handleCallUno(playerID uuid.UUID) error {
	state, err := g.Room.CallUno(playerID)
	if err != nil {
		return err
	}
	g.logAction(playerID, ActionCallUno, nil)
	g.fireEvent(GameEvent{Type: EventUnoCalled, User: g.eventUser(playerID), State: &state})
	return nil
}

func (g *UnoGame) handleChallengeUno(playerID uuid.UUID, action models.GameAction) error {
	target, err := uuid.Parse(action.String("targetId"))
	if err != nil {
		return ErrBadTarget
	}
	res, err := g.Room.ChallengeUno(playerID, target)
	if err != nil {
		return err
	}
	g.logAction(playerID, ActionChallengeUno, map[string]interface{}{
		"target":    target,
		"success":   res.Success,
		"penalized": res.Penalized,
	})
	g.fireEvent(GameEvent{
		Type: EventUnoChallengeResult,
		User: g.eventUser(playerID),
		Payload: map[string]interface{}{
			"targetId":     target,
			"success":      res.Success,
			"penalizedId":  res.Penalized,
			"penaltyCards": res.PenaltyCards,
		},
		State: &res.State,
	})
	g.sendHands(res.Penalized)
	return nil
}

func (g *UnoGame) handleChallengeWild4(playerID uuid.UUID) error {
	offender := g.Room.Wild4.PlayerID
	res, err := g.Room.ChallengeWild4(playerID)
	if err != nil {
		return err
	}
	g.stopWild4Timer()
	g.logAction(playerID, ActionChallengeWild4, map[string]interface{}{
		"offender": offender,
		"success":  res.Success,
	})
	g.fireEvent(GameEvent{
		Type: EventWild4ChallengeResult,
		User: g.eventUser(playerID),
		Payload: map[string]interface{}{
			"success":      res.Success,
			"playerId":     offender,
			"penalizedId":  res.Penalized,
			"penaltyCards": res.PenaltyCards,
		},
		State: &res.State,
	})
	g.sendHands(playerID, offender)
	g.broadcastTurn(res.State, nil)
	return nil
}

func (g *UnoGame) handleDeclineWild4(playerID uuid.UUID) error {
	state, err := g.Room.DeclineWild4(playerID)
	if err != nil {
		return err
	}
	g.stopWild4Timer()
	g.logAction(playerID, ActionDeclineWild4, nil)
	g.fireEvent(GameEvent{
		Type:    EventWild4ChallengeExpired,
		User:    g.eventUser(playerID),
		Payload: map[string]interface{}{"declined": true},
		State:   &state,
	})
	return nil
}

// openWild4Window announces the challenge and arms the auto-decline timer.
// Assumes lock is held.
func (g *UnoGame) openWild4Window() {
	w := g.Room.Wild4
	g.fireEvent(GameEvent{
		Type: EventWild4ChallengeAvailable,
		User: g.eventUser(w.PlayerID),
		Payload: map[string]interface{}{
			"challengerId": w.ChallengeableBy,
			"playerId":     w.PlayerID,
			"timeoutMs":    g.ChallengeWindow.Milliseconds(),
		},
	})
	g.stopWild4Timer()
	if g.ChallengeWindow <= 0 {
		return
	}
	seq := g.wild4Seq
	g.wild4Timer = time.AfterFunc(g.ChallengeWindow, func() {
		g.expireWild4(seq)
	})
}

// expireWild4 runs on the timer goroutine. A stale seq means the window it
// was armed for already closed.
func (g *UnoGame) expireWild4(seq int) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if seq != g.wild4Seq {
		return
	}
	g.wild4Timer = nil
	challenger := g.Room.Wild4.ChallengeableBy
	if !g.Room.ExpireWild4() {
		return
	}
	g.log.WithField("challenger", challenger).Debug("wild4 challenge timed out")
	g.logAction(challenger, "wild4_challenge_expired", nil)
	state := g.Room.State(nil)
	g.fireEvent(GameEvent{
		Type:    EventWild4ChallengeExpired,
		User:    g.eventUser(challenger),
		Payload: map[string]interface{}{"declined": false},
		State:   &state,
	})
}

// finishRound announces the round result and either ends the match or
// schedules the next deal. Assumes lock is held.
func (g *UnoGame) finishRound(res *engine.PlayResult) {
	g.stopWild4Timer()
	winner := res.Winner.ID
	g.log.WithFields(logrus.Fields{"winner": winner, "points": res.Points, "round": res.State.Round}).Info("round over")
	g.logAction(winner, "round_end", map[string]interface{}{"points": res.Points, "round": res.State.Round})
	g.fireEvent(GameEvent{
		Type: EventRoundEnd,
		User: g.eventUser(winner),
		Payload: map[string]interface{}{
			"points": res.Points,
			"round":  res.State.Round,
			"scores": res.State.Scores,
		},
		State: &res.State,
	})

	if res.GameWinner != nil {
		g.endMatch(res.GameWinner.ID, res.State)
		return
	}
	g.scheduleNextRound()
}

func (g *UnoGame) endMatch(winnerID uuid.UUID, state engine.GameState) {
	result := MatchResult{
		GameID:    g.ID,
		RoomCode:  g.Code,
		WinnerID:  winnerID,
		Rounds:    state.Round,
		StartedAt: g.matchStarted,
		EndedAt:   time.Now(),
	}
	for _, p := range g.Room.Players {
		result.Players = append(result.Players, MatchPlayer{ID: p.ID, Name: p.Name, Score: g.Room.Scores[p.ID]})
	}

	g.log.WithFields(logrus.Fields{"winner": winnerID, "rounds": state.Round}).Info("match over")
	g.logAction(winnerID, string(EventGameEnd), map[string]interface{}{"scores": state.Scores, "rounds": state.Round})
	g.fireEvent(GameEvent{
		Type:    EventGameEnd,
		User:    g.eventUser(winnerID),
		Payload: map[string]interface{}{"scores": state.Scores, "rounds": state.Round},
		State:   &state,
	})
	if g.OnMatchEnd != nil {
		g.OnMatchEnd(result)
	}
}

func (g *UnoGame) scheduleNextRound() {
	if g.RoundDelay <= 0 {
		g.startNextRound()
		return
	}
	if g.roundTimer != nil {
		g.roundTimer.Stop()
	}
	g.roundTimer = time.AfterFunc(g.RoundDelay, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		g.roundTimer = nil
		g.startNextRound()
	})
}

// startNextRound redeals. Assumes lock is held.
func (g *UnoGame) startNextRound() {
	state, err := g.Room.StartRound()
	if err != nil {
		g.log.WithError(err).Warn("could not start next round")
		return
	}
	g.logAction(uuid.Nil, "round_start", map[string]interface{}{"round": state.Round})
	g.dealtRound(state)
}

// dealtRound sends every player their new hand, then the first turn.
func (g *UnoGame) dealtRound(state engine.GameState) {
	for _, p := range g.Room.Players {
		hand, _ := g.Room.Hand(p.ID)
		g.fireEventToPlayer(p.ID, GameEvent{Type: EventGameStarted, Hand: hand, State: &state})
	}
	g.broadcastTurn(state, nil)
}

func (g *UnoGame) broadcastTurn(state engine.GameState, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"currentPlayerIndex": state.CurrentPlayerIndex,
		"direction":          state.Direction,
		"currentColor":       state.CurrentColor,
	}
	for k, v := range extra {
		payload[k] = v
	}
	var user *EventUser
	if p := g.Room.CurrentPlayer(); p != nil {
		user = &EventUser{ID: p.ID, Name: p.Name}
	}
	g.fireEvent(GameEvent{Type: EventTurnUpdate, User: user, Payload: payload, State: &state})
}

// affectedBy lists the players whose hands a play changed.
func (g *UnoGame) affectedBy(playerID uuid.UUID, out engine.TurnOutcome) []uuid.UUID {
	if out.ShuffleEffect || out.CustomRule != "" {
		ids := make([]uuid.UUID, 0, len(g.Room.Players))
		for _, p := range g.Room.Players {
			ids = append(ids, p.ID)
		}
		return ids
	}
	ids := []uuid.UUID{playerID}
	if out.DrawEffect != nil {
		ids = append(ids, out.DrawEffect.PlayerID)
	}
	if out.WildEffect != nil && out.WildEffect.PlayerRef != nil {
		ids = append(ids, out.WildEffect.PlayerID)
	}
	if out.SwapEffect != nil {
		ids = append(ids, out.SwapEffect.TargetPlayerID)
	}
	return ids
}

// sendHands pushes a private hand_update to each listed player.
func (g *UnoGame) sendHands(ids ...uuid.UUID) {
	for _, id := range ids {
		hand, err := g.Room.Hand(id)
		if err != nil {
			continue
		}
		g.fireEventToPlayer(id, GameEvent{Type: EventHandUpdate, Hand: hand})
	}
}

func (g *UnoGame) sendError(playerID uuid.UUID, actionType string, err error) {
	entry := g.log.WithFields(logrus.Fields{"player": playerID, "action": actionType})
	if engine.KindOf(err) == engine.KindUnknown {
		entry.WithError(err).Warn("action failed")
	} else {
		entry.WithField("code", engine.CodeOf(err)).Debug("action rejected")
	}
	g.fireEventToPlayer(playerID, GameEvent{
		Type: EventErrorMessage,
		Payload: map[string]interface{}{
			"action":  actionType,
			"code":    engine.CodeOf(err),
			"kind":    engine.KindOf(err).String(),
			"message": err.Error(),
		},
	})
}

func (g *UnoGame) eventUser(id uuid.UUID) *EventUser {
	if _, p := g.Room.Player(id); p != nil {
		return &EventUser{ID: p.ID, Name: p.Name}
	}
	return &EventUser{ID: id}
}

// fireEvent broadcasts an event to all connected players.
// Assumes lock is held.
func (g *UnoGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event only to a specific, connected player.
// Assumes lock is held.
func (g *UnoGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		return
	}
	if _, p := g.Room.Player(playerID); p != nil && p.Connected {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

func (g *UnoGame) stopWild4Timer() {
	if g.wild4Timer != nil {
		g.wild4Timer.Stop()
		g.wild4Timer = nil
	}
	g.wild4Seq++
}

func (g *UnoGame) stopTimers() {
	g.stopWild4Timer()
	if g.roundTimer != nil {
		g.roundTimer.Stop()
		g.roundTimer = nil
	}
}

// logAction publishes an action record to the historian queue without
// blocking the game. Assumes lock is held.
func (g *UnoGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if g.historian == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		RoomCode:      g.Code,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.historian.PublishGameAction(ctx, rec); err != nil {
			g.log.WithError(err).WithField("action_index", rec.ActionIndex).Warn("failed to publish game action")
		}
	}(record)
}
