package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-arena/internal/domain"
)

func pgnResult(r domain.Result) string {
	switch r {
	case domain.ResultWhite:
		return "1-0"
	case domain.ResultBlack:
		return "0-1"
	case domain.ResultDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

type pgnHeader struct {
	White, Black       string
	WhiteElo, BlackElo int
	Date               time.Time
	TimeLimit          time.Duration
	Termination        string
	Result             domain.Result
}

// buildPGN renders a PGN document from SAN moves.
func buildPGN(h pgnHeader, san []string) string {
	var b strings.Builder
	date := h.Date
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(h.Result)
	b.WriteString("[Event \"Arena rated game\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(h.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(h.Black))
	fmt.Fprintf(&b, "[Result \"%s\"]\n", result)
	fmt.Fprintf(&b, "[WhiteElo \"%d\"]\n", h.WhiteElo)
	fmt.Fprintf(&b, "[BlackElo \"%d\"]\n", h.BlackElo)
	if h.TimeLimit > 0 {
		fmt.Fprintf(&b, "[TimeControl \"%d\"]\n", int64(h.TimeLimit/time.Second))
	}
	if strings.TrimSpace(h.Termination) != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(h.Termination))
	}
	b.WriteString("\n")

	if mt := MoveText(san); mt != "" {
		b.WriteString(mt)
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

// MoveText numbers SAN moves the PGN way: "1. e4 e5 2. Nf3".
func MoveText(san []string) string {
	var b strings.Builder
	for i := 0; i < len(san); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(san[i]))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(san[i+1]))
		}
	}
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
