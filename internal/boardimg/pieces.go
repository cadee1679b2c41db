package boardimg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyphs are drawn on a 45x45 view box. %[1]s expands to the paint
// attributes of the side.
var glyphs = map[nchess.PieceType]string{
	nchess.Pawn: `<circle %[1]s cx="22.5" cy="14" r="6"/>` +
		`<path %[1]s d="M15 38 L18 24 Q22.5 20 27 24 L30 38 Z"/>`,
	nchess.Rook: `<path %[1]s d="M11 38 H34 V34 H31 V18 H34 V10 H30 V13 H26 V10 H19 V13 H15 V10 H11 V18 H14 V34 H11 Z"/>`,
	nchess.Knight: `<path %[1]s d="M14 38 H33 C33 28 31 18 26 12 L24 8 L21 12 C16 14 11 20 11 24 ` +
		`C11 27 14 27 16 25 L20 23 C18 28 15 32 14 38 Z"/>`,
	nchess.Bishop: `<circle %[1]s cx="22.5" cy="8" r="3"/>` +
		`<path %[1]s d="M13 38 H32 L29 33 C32 28 31 20 22.5 11 C14 20 13 28 16 33 Z"/>`,
	nchess.Queen: `<path %[1]s d="M11 38 H34 L32 31 L37 14 L29 24 L27 10 L22.5 20 L18 10 L16 24 L8 14 L13 31 Z"/>`,
	nchess.King: `<path %[1]s d="M21 4 H24 V8 H28 V11 H24 V15 H21 V11 H17 V8 H21 Z"/>` +
		`<path %[1]s d="M11 38 H34 L32 30 C38 24 34 16 22.5 18 C11 16 7 24 13 30 Z"/>`,
}

func paint(c nchess.Color) string {
	if c == nchess.White {
		return `fill="#f8f8f8" stroke="#1c1f2e" stroke-width="1.5" stroke-linejoin="round"`
	}
	return `fill="#1c1f2e" stroke="#e9e9e9" stroke-width="1" stroke-linejoin="round"`
}

func pieceSVG(p nchess.Piece) (string, error) {
	body, ok := glyphs[p.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", p)
	}
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` +
		fmt.Sprintf(body, paint(p.Color())) + `</svg>`, nil
}

type pieceKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPiece(p nchess.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: p, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
