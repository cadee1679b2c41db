package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

func pieceCode(t nchess.PieceType) string {
	switch t {
	case nchess.King:
		return "k"
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	case nchess.Pawn:
		return "p"
	}
	return ""
}

// NormalizePieceCode maps a client supplied piece name to its single letter
// code. "k" is ambiguous in some clients; it is read as a knight only when the
// piece actually on the board is a knight.
func NormalizePieceCode(raw string, actual nchess.PieceType) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return ""
	case "knight", "kn", "n":
		return "n"
	case "king":
		return "k"
	case "k":
		if actual == nchess.Knight {
			return "n"
		}
		return "k"
	case "queen":
		return "q"
	case "rook":
		return "r"
	case "bishop":
		return "b"
	case "pawn":
		return "p"
	}
	if len(s) == 1 && strings.ContainsAny(s, "qrbp") {
		return s
	}
	return "?"
}

// promotionCode validates the requested promotion against the moving piece.
// A pawn reaching the last rank without a choice promotes to a queen. The
// field is ignored on any other move, since clients often always send it.
func promotionCode(raw string, piece nchess.Piece, to nchess.Square) (string, bool) {
	lastRank := piece.Type() == nchess.Pawn &&
		((piece.Color() == nchess.White && to.Rank() == nchess.Rank8) ||
			(piece.Color() == nchess.Black && to.Rank() == nchess.Rank1))
	if !lastRank {
		return "", true
	}
	// Nothing promotes to a king, so a bare "k" here is a knight.
	code := NormalizePieceCode(raw, nchess.Knight)
	switch code {
	case "":
		return "q", true
	case "q", "r", "b", "n":
		return code, true
	}
	return "", false
}

func parseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}
