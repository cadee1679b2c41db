package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-arena/internal/domain"
)

// Corentings is the Engine backed by github.com/corentings/chess.
type Corentings struct{}

func NewEngine() Corentings { return Corentings{} }

func (Corentings) NewGame() Game { return &chessGame{g: nchess.NewGame()} }

func (Corentings) FromFEN(fen string) (Game, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &chessGame{g: nchess.NewGame(opt)}, nil
}

type chessGame struct {
	g       *nchess.Game
	history []domain.Move
	status  Status
}

func (c *chessGame) Turn() domain.Color { return colorOf(c.g.Position().Turn()) }

func (c *chessGame) FEN() string { return c.g.FEN() }

func (c *chessGame) History() []domain.Move {
	out := make([]domain.Move, len(c.history))
	copy(out, c.history)
	return out
}

func (c *chessGame) Apply(in domain.MoveInput) (domain.Move, error) {
	if c.status != Ongoing {
		return domain.Move{}, ErrIllegal
	}
	from, okFrom := parseSquare(in.From)
	to, okTo := parseSquare(in.To)
	if !okFrom || !okTo || from == to {
		return domain.Move{}, ErrIllegal
	}
	pos := c.g.Position()
	board := pos.Board()
	piece := board.Piece(from)
	if piece == nchess.NoPiece || colorOf(piece.Color()) != c.Turn() {
		return domain.Move{}, ErrIllegal
	}
	if hint := NormalizePieceCode(in.Piece, piece.Type()); hint != "" && hint != pieceCode(piece.Type()) {
		return domain.Move{}, ErrIllegal
	}
	promo, ok := promotionCode(in.Promotion, piece, to)
	if !ok {
		return domain.Move{}, ErrIllegal
	}
	uci := from.String() + to.String() + promo
	if !c.isLegal(uci) {
		return domain.Move{}, ErrIllegal
	}
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return domain.Move{}, ErrIllegal
	}
	out := describe(board, piece, from, to, promo)
	out.SAN = nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := c.g.Move(mv, nil); err != nil {
		return domain.Move{}, fmt.Errorf("%w: apply %s: %v", ErrCorrupt, uci, err)
	}
	c.history = append(c.history, out)
	c.status = c.classify()
	return out, nil
}

func (c *chessGame) isLegal(uci string) bool {
	for _, vm := range c.g.ValidMoves() {
		if vm.String() == uci {
			return true
		}
	}
	return false
}

func (c *chessGame) LegalMoves() []domain.Move {
	if c.status != Ongoing {
		return nil
	}
	pos := c.g.Position()
	board := pos.Board()
	valid := c.g.ValidMoves()
	out := make([]domain.Move, 0, len(valid))
	for _, vm := range valid {
		uci := vm.String()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			continue
		}
		promo := ""
		if len(uci) == 5 {
			promo = uci[4:]
		}
		m := describe(board, board.Piece(mv.S1()), mv.S1(), mv.S2(), promo)
		m.SAN = nchess.AlgebraicNotation{}.Encode(pos, mv)
		out = append(out, m)
	}
	return out
}

func (c *chessGame) Status() Status { return c.status }

// classify reads the library outcome and claims repetition and fifty-move
// draws as soon as they become available.
func (c *chessGame) classify() Status {
	switch c.g.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		return Checkmate
	case nchess.Draw:
		return drawStatus(c.g.Method())
	}
	for _, m := range c.g.EligibleDraws() {
		switch m {
		case nchess.ThreefoldRepetition:
			_ = c.g.Draw(m)
			return ThreefoldRepetition
		}
	}
	for _, m := range c.g.EligibleDraws() {
		switch m {
		case nchess.FiftyMoveRule:
			_ = c.g.Draw(m)
			return FiftyMoveRule
		}
	}
	return Ongoing
}

func drawStatus(m nchess.Method) Status {
	switch m {
	case nchess.Stalemate:
		return Stalemate
	case nchess.InsufficientMaterial:
		return InsufficientMaterial
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return ThreefoldRepetition
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return FiftyMoveRule
	default:
		return Stalemate
	}
}

func describe(board *nchess.Board, piece nchess.Piece, from, to nchess.Square, promo string) domain.Move {
	m := domain.Move{
		Color:     colorOf(piece.Color()),
		From:      from.String(),
		To:        to.String(),
		Piece:     pieceCode(piece.Type()),
		Promotion: promo,
	}
	target := board.Piece(to)
	isPawn := piece.Type() == nchess.Pawn
	var flags strings.Builder
	if isPawn && abs(int(to.Rank())-int(from.Rank())) == 2 {
		flags.WriteString(domain.FlagBigPawn)
	}
	if isPawn && from.File() != to.File() && target == nchess.NoPiece {
		flags.WriteString(domain.FlagEnPassant)
		m.Captured = "p"
	}
	if target != nchess.NoPiece {
		flags.WriteString(domain.FlagCapture)
		m.Captured = pieceCode(target.Type())
	}
	if promo != "" {
		flags.WriteString(domain.FlagPromotion)
	}
	if piece.Type() == nchess.King {
		switch int(to.File()) - int(from.File()) {
		case 2:
			flags.WriteString(domain.FlagKingCastle)
		case -2:
			flags.WriteString(domain.FlagQueenCastle)
		}
	}
	if flags.Len() == 0 {
		flags.WriteString(domain.FlagNormal)
	}
	m.Flags = flags.String()
	return m
}

func colorOf(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
