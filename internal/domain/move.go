package domain

// Move flags follow the single letter convention used by browser chess clients.
const (
	FlagNormal      = "n"
	FlagBigPawn     = "b"
	FlagEnPassant   = "e"
	FlagCapture     = "c"
	FlagPromotion   = "p"
	FlagKingCastle  = "k"
	FlagQueenCastle = "q"
)

// Move is an accepted move. Captured and Promotion are empty when not applicable.
type Move struct {
	Color     Color
	From      string
	To        string
	Flags     string
	Piece     string
	Captured  string
	Promotion string
	SAN       string
}

// UCI returns the coordinate form, e.g. "e7e8q".
func (m Move) UCI() string { return m.From + m.To + m.Promotion }

// MoveInput is a move request as submitted by a client.
// Piece is an optional hint that must match the piece on From.
type MoveInput struct {
	From      string
	To        string
	Promotion string
	Piece     string
}
