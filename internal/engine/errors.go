package engine

import "errors"

// Kind groups engine errors so the transport can decide how to report them.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindIllegalAction
	KindResourceExhausted
	KindChallengeProtocol
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindIllegalAction:
		return "illegal_action"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindChallengeProtocol:
		return "challenge_protocol_violation"
	default:
		return "unknown"
	}
}

// Error is returned by every Room operation that rejects an action.
// A rejected action leaves the Room untouched.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrRoomNotFound   = newError(KindNotFound, "room_not_found", "room not found")
	ErrPlayerNotFound = newError(KindNotFound, "player_not_found", "player not found")
	ErrTargetNotFound = newError(KindNotFound, "target_not_found", "target player not found")

	ErrNotYourTurn        = newError(KindInvalidState, "not_your_turn", "not your turn")
	ErrGameNotStarted     = newError(KindInvalidState, "game_not_started", "game has not started")
	ErrGameAlreadyStarted = newError(KindInvalidState, "game_already_started", "game already started")
	ErrNotEnoughPlayers   = newError(KindInvalidState, "not_enough_players", "need at least 2 players to start")
	ErrRoomFull           = newError(KindInvalidState, "room_full", "room is full")
	ErrDuplicatePlayer    = newError(KindInvalidState, "duplicate_player", "player already in room")
	ErrRoundOver          = newError(KindInvalidState, "round_over", "round is over")
	ErrRoundInProgress    = newError(KindInvalidState, "round_in_progress", "round still in progress")
	ErrMatchOver          = newError(KindInvalidState, "match_over", "match is over")
	ErrAlreadyDrew        = newError(KindInvalidState, "already_drew", "already drew a card this turn")
	ErrMustDrawFirst      = newError(KindInvalidState, "must_draw_first", "draw a card before passing")

	ErrCardNotInHand    = newError(KindIllegalAction, "card_not_in_hand", "card not in hand")
	ErrIllegalPlay      = newError(KindIllegalAction, "illegal_play", "cannot play this card")
	ErrUnoCallRequired  = newError(KindIllegalAction, "uno_call_required", "must call UNO when you have one card left")
	ErrMissingParameter = newError(KindIllegalAction, "missing_parameter", "missing parameter for wild card")
	ErrInvalidTarget    = newError(KindIllegalAction, "invalid_target", "cannot target yourself")
	ErrInvalidCallState = newError(KindIllegalAction, "invalid_call_state", "can only call UNO with one card")

	ErrOutOfCards = newError(KindResourceExhausted, "out_of_cards", "no cards left to draw")

	ErrChallengeWindowClosed = newError(KindChallengeProtocol, "challenge_window_closed", "no wild draw four challenge is open")
	ErrNotEligibleChallenger = newError(KindChallengeProtocol, "not_eligible_challenger", "only the next player may challenge")
	ErrChallengePending      = newError(KindChallengeProtocol, "challenge_pending", "wild draw four challenge is still open")
)

// KindOf returns the Kind of an engine error anywhere in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the wire code of an engine error, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
