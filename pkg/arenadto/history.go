package arenadto

import (
	"time"

	"github.com/park285/chess-arena/internal/domain"
)

type HistoricalGame struct {
	ID             string    `json:"id"`
	WhitePlayer    string    `json:"whitePlayer"`
	BlackPlayer    string    `json:"blackPlayer"`
	WhiteUsername  string    `json:"whiteUsername"`
	BlackUsername  string    `json:"blackUsername"`
	Winner         string    `json:"winner"`
	Reason         string    `json:"reason"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	TimeLimitMs    int64     `json:"timeLimitMs"`
	FullNotation   string    `json:"fullNotation"`
	FinalFEN       string    `json:"finalFen"`
	WhiteEloBefore int       `json:"whiteEloBefore"`
	BlackEloBefore int       `json:"blackEloBefore"`
	WhiteEloAfter  int       `json:"whiteEloAfter"`
	BlackEloAfter  int       `json:"blackEloAfter"`
}

func FromHistoricalGame(g domain.HistoricalGame) HistoricalGame {
	return HistoricalGame{
		ID:             g.ID,
		WhitePlayer:    g.WhitePlayer,
		BlackPlayer:    g.BlackPlayer,
		WhiteUsername:  g.WhiteUsername,
		BlackUsername:  g.BlackUsername,
		Winner:         string(g.Winner),
		Reason:         g.Reason,
		StartTime:      g.StartTime,
		EndTime:        g.EndTime,
		TimeLimitMs:    g.TimeLimitMs,
		FullNotation:   g.PGN,
		FinalFEN:       g.FinalFEN,
		WhiteEloBefore: g.WhiteEloBefore,
		BlackEloBefore: g.BlackEloBefore,
		WhiteEloAfter:  g.WhiteEloAfter,
		BlackEloAfter:  g.BlackEloAfter,
	}
}

func FromHistoricalGames(list []domain.HistoricalGame) []HistoricalGame {
	out := make([]HistoricalGame, 0, len(list))
	for _, g := range list {
		out = append(out, FromHistoricalGame(g))
	}
	return out
}
