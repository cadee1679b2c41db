package domain

import "strings"

// UserState is the lifecycle position of a user relative to matchmaking.
type UserState string

const (
	StateNone    UserState = "none"
	StateQueued  UserState = "queued"
	StateGame    UserState = "game"
	StateDeleted UserState = "deleted"
)

func ParseUserState(s string) (UserState, bool) {
	switch UserState(strings.ToLower(strings.TrimSpace(s))) {
	case StateNone:
		return StateNone, true
	case StateQueued:
		return StateQueued, true
	case StateGame:
		return StateGame, true
	case StateDeleted:
		return StateDeleted, true
	}
	return "", false
}

// User is keyed by Email; registration happens outside this service.
type User struct {
	Username string
	Email    string
	IsAdmin  bool
	Elo      int
	State    UserState
}

// DefaultElo is assigned to accounts created without an explicit rating.
const DefaultElo = 1200

func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
