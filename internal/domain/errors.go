package domain

import "errors"

// Error is a client-facing failure identified by a stable code.
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Code
}

var (
	ErrNotYourTurn      = &Error{Code: "not_your_turn", Msg: "not your turn"}
	ErrIllegalMove      = &Error{Code: "illegal_move", Msg: "illegal move"}
	ErrWrongPhase       = &Error{Code: "wrong_phase", Msg: "game is not in progress"}
	ErrAlreadyActive    = &Error{Code: "already_active", Msg: "user is already queued or playing"}
	ErrInvalidState     = &Error{Code: "invalid_state", Msg: "user cannot be modified in its current state"}
	ErrUserNotFound     = &Error{Code: "user_not_found", Msg: "user not found"}
	ErrUserDeleted      = &Error{Code: "user_deleted", Msg: "user has been deleted"}
	ErrNotAdmin         = &Error{Code: "not_admin", Msg: "admin privileges required"}
	ErrMalformedPayload = &Error{Code: "malformed_payload", Msg: "malformed payload"}
	ErrNotInGame        = &Error{Code: "not_in_game", Msg: "user is not in a game"}
	ErrInvalidTimeLimit = &Error{Code: "invalid_time_limit", Msg: "time limit out of range"}
	ErrNotLoggedIn      = &Error{Code: "not_logged_in", Msg: "not logged in"}
	ErrGameNotFound     = &Error{Code: "game_not_found", Msg: "game not found"}
)

// CodeOf returns the code of the first *Error in err's chain, or "internal".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}
