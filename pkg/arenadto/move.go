package arenadto

import "github.com/park285/chess-arena/internal/domain"

// Move mirrors the verbose move objects browser chess clients use.
type Move struct {
	Color     string `json:"color"`
	From      string `json:"from"`
	To        string `json:"to"`
	Flags     string `json:"flags"`
	Piece     string `json:"piece"`
	Captured  string `json:"captured,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
}

func FromMove(m domain.Move) Move {
	return Move{
		Color:     m.Color.Short(),
		From:      m.From,
		To:        m.To,
		Flags:     m.Flags,
		Piece:     m.Piece,
		Captured:  m.Captured,
		Promotion: m.Promotion,
		SAN:       m.SAN,
	}
}

func FromMoves(list []domain.Move) []Move {
	out := make([]Move, 0, len(list))
	for _, m := range list {
		out = append(out, FromMove(m))
	}
	return out
}

// InputChessMove is the make_move payload.
type InputChessMove struct {
	From      string `json:"from" validate:"required,len=2"`
	To        string `json:"to" validate:"required,len=2"`
	Piece     string `json:"piece" validate:"omitempty,max=1"`
	Promotion string `json:"promotion,omitempty" validate:"omitempty,oneof=q r b n k"`
}

func (in InputChessMove) Domain() domain.MoveInput {
	return domain.MoveInput{From: in.From, To: in.To, Piece: in.Piece, Promotion: in.Promotion}
}
