package arenadto

import "github.com/park285/chess-arena/internal/domain"

type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
	Elo      int    `json:"elo"`
	State    string `json:"state"`
}

func FromUser(u domain.User) User {
	return User{Username: u.Username, Email: u.Email, IsAdmin: u.IsAdmin, Elo: u.Elo, State: string(u.State)}
}

func FromUsers(list []domain.User) []User {
	out := make([]User, 0, len(list))
	for _, u := range list {
		out = append(out, FromUser(u))
	}
	return out
}
