package domain

import "time"

// HistoricalGame is an immutable record of a finished game.
type HistoricalGame struct {
	ID             string
	WhitePlayer    string
	BlackPlayer    string
	WhiteUsername  string
	BlackUsername  string
	Winner         Result
	Reason         string
	StartTime      time.Time
	EndTime        time.Time
	TimeLimitMs    int64
	PGN            string
	FinalFEN       string
	WhiteEloBefore int
	BlackEloBefore int
	WhiteEloAfter  int
	BlackEloAfter  int
}

// Involves reports whether email played in the game.
func (g HistoricalGame) Involves(email string) bool {
	e := NormalizeEmail(email)
	return e != "" && (g.WhitePlayer == e || g.BlackPlayer == e)
}

// Completion is everything that must become visible together when a game ends.
type Completion struct {
	Game           HistoricalGame
	WhiteEloBefore int
	BlackEloBefore int
	WhiteEloAfter  int
	BlackEloAfter  int
}
