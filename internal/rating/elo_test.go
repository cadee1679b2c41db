package rating

import (
	"math"
	"testing"

	"github.com/park285/chess-arena/internal/domain"
)

func TestExpectedSumsToOne(t *testing.T) {
	pairs := [][2]int{{1200, 1200}, {1500, 1100}, {800, 2400}, {2000, 1999}}
	for _, p := range pairs {
		sum := Expected(p[0], p[1]) + Expected(p[1], p[0])
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%v: expected scores sum to %f", p, sum)
		}
	}
}

func TestUpdateEqualRatings(t *testing.T) {
	c := New(32)
	w, b := c.Update(1200, 1200, domain.Decisive{Why: domain.ReasonCheckmate, Winner: domain.White})
	if w != 1216 || b != 1184 {
		t.Fatalf("got %d/%d", w, b)
	}
	w, b = c.Update(1200, 1200, domain.Draw{Why: domain.ReasonStalemate})
	if w != 1200 || b != 1200 {
		t.Fatalf("draw between equals should not move ratings: %d/%d", w, b)
	}
}

func TestUpdateUpsetMovesMore(t *testing.T) {
	c := New(0)
	if c.K() != DefaultKFactor {
		t.Fatalf("default k not applied: %v", c.K())
	}
	favWin, _ := c.Update(1600, 1200, domain.Decisive{Why: domain.ReasonTimeout, Winner: domain.White})
	_, upsetWin := c.Update(1600, 1200, domain.Decisive{Why: domain.ReasonForfeit, Winner: domain.Black})
	if favWin-1600 >= upsetWin-1200 {
		t.Fatalf("underdog win should gain more: fav +%d, underdog +%d", favWin-1600, upsetWin-1200)
	}
}

func TestUpdateDrawFavoursUnderdog(t *testing.T) {
	w, b := New(32).Update(1800, 1400, domain.Draw{Why: domain.ReasonFiftyMove})
	if w >= 1800 || b <= 1400 {
		t.Fatalf("draw should move ratings toward each other: %d/%d", w, b)
	}
}
