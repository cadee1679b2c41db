package domain

// Outcome is nil while a game is in progress, otherwise Decisive or Draw.
// Once a session stores a non-nil Outcome it never changes.
type Outcome interface {
	isOutcome()
	Reason() string
}

type DecisiveReason string

const (
	ReasonCheckmate DecisiveReason = "checkmate"
	ReasonTimeout   DecisiveReason = "timeout"
	ReasonForfeit   DecisiveReason = "forfeit"
)

type DrawReason string

const (
	ReasonFiftyMove            DrawReason = "fifty-move"
	ReasonInsufficientMaterial DrawReason = "insufficient-material"
	ReasonStalemate            DrawReason = "stalemate"
	ReasonThreefoldRepetition  DrawReason = "threefold-repetition"
)

type Decisive struct {
	Why    DecisiveReason
	Winner Color
}

func (Decisive) isOutcome()       {}
func (d Decisive) Reason() string { return string(d.Why) }

type Draw struct {
	Why DrawReason
}

func (Draw) isOutcome()       {}
func (d Draw) Reason() string { return string(d.Why) }

// Result is the persisted winner column: "white", "black" or "draw".
type Result string

const (
	ResultWhite Result = "white"
	ResultBlack Result = "black"
	ResultDraw  Result = "draw"
)

// ResultOf maps a terminal outcome to its Result. ok is false for nil.
func ResultOf(o Outcome) (Result, bool) {
	switch v := o.(type) {
	case Decisive:
		if v.Winner == White {
			return ResultWhite, true
		}
		return ResultBlack, true
	case Draw:
		return ResultDraw, true
	default:
		return "", false
	}
}

// Score returns the points earned by c under o (1, 0.5 or 0).
func Score(o Outcome, c Color) float64 {
	switch v := o.(type) {
	case Decisive:
		if v.Winner == c {
			return 1
		}
		return 0
	case Draw:
		return 0.5
	default:
		return 0
	}
}
