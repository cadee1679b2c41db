package rating

import (
	"math"

	"github.com/park285/chess-arena/internal/domain"
)

// DefaultKFactor is used when a Calculator is built with k <= 0.
const DefaultKFactor = 32.0

type Calculator struct {
	k float64
}

func New(k float64) Calculator {
	if k <= 0 {
		k = DefaultKFactor
	}
	return Calculator{k: k}
}

func (c Calculator) K() float64 { return c.k }

// Expected returns the expected score of a player rated ra against rb.
func Expected(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

// Update returns the post-game ratings for white and black given the
// ratings captured when the session started.
func (c Calculator) Update(whiteBefore, blackBefore int, outcome domain.Outcome) (white, black int) {
	sw := domain.Score(outcome, domain.White)
	sb := domain.Score(outcome, domain.Black)
	ew := Expected(whiteBefore, blackBefore)
	eb := Expected(blackBefore, whiteBefore)
	white = int(math.Round(float64(whiteBefore) + c.k*(sw-ew)))
	black = int(math.Round(float64(blackBefore) + c.k*(sb-eb)))
	return white, black
}
