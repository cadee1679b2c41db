// Package boardimg renders chess positions to PNG, used for the final
// position thumbnails of finished games.
package boardimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultSquare = 64
	minSquare     = 16
	maxSquare     = 160
)

type Options struct {
	// SquareSize in pixels; DefaultSquare when zero.
	SquareSize int
	// Flip draws the board from black's side.
	Flip bool
	// Width scales the final image to this many pixels wide when set.
	Width int
}

var (
	lightSquare = color.RGBA{233, 207, 163, 255}
	darkSquare  = color.RGBA{187, 136, 96, 255}
	marginColor = color.RGBA{28, 31, 46, 255}
	coordColor  = color.RGBA{204, 210, 236, 255}
)

// RenderFEN draws the position of fen.
func RenderFEN(ctx context.Context, fen string, opts Options) ([]byte, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return Render(ctx, nchess.NewGame(opt).Position().Board(), opts)
}

func Render(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	sq := opts.SquareSize
	if sq == 0 {
		sq = DefaultSquare
	}
	if sq < minSquare || sq > maxSquare {
		return nil, fmt.Errorf("square size %d out of range [%d,%d]", sq, minSquare, maxSquare)
	}
	margin := sq / 3
	boardPx := sq * 8
	img := image.NewRGBA(image.Rect(0, 0, margin+boardPx, boardPx+margin))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(marginColor), image.Point{}, xdraw.Src)
	origin := image.Point{X: margin}

	squares := board.SquareMap()
	for i := 0; i < 64; i++ {
		s := nchess.Square(i)
		r := squareRect(s, sq, origin, opts.Flip)
		xdraw.Draw(img, r, image.NewUniform(squareColor(s)), image.Point{}, xdraw.Src)
		p, ok := squares[s]
		if !ok || p == nchess.NoPiece {
			continue
		}
		pimg, err := renderPiece(p, sq)
		if err != nil {
			return nil, err
		}
		xdraw.Draw(img, r, pimg, image.Point{}, xdraw.Over)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	drawCoordinates(img, sq, origin, opts.Flip)

	var out image.Image = img
	if opts.Width > 0 && opts.Width != img.Bounds().Dx() {
		h := img.Bounds().Dy() * opts.Width / img.Bounds().Dx()
		scaled := image.NewRGBA(image.Rect(0, 0, opts.Width, h))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareRect(s nchess.Square, size int, origin image.Point, flip bool) image.Rectangle {
	col, row := int(s.File()), 7-int(s.Rank())
	if flip {
		col, row = 7-col, 7-row
	}
	x := origin.X + col*size
	y := origin.Y + row*size
	return image.Rect(x, y, x+size, y+size)
}

func squareColor(s nchess.Square) color.Color {
	if (int(s.File())+int(s.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func drawCoordinates(img *image.RGBA, sq int, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(coordColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		rank := nchess.Rank(i)
		file := nchess.File(i)
		r := squareRect(nchess.NewSquare(nchess.FileA, rank), sq, origin, flip)
		centered(d, rank.String(), origin.X/2, r.Min.Y+sq/2+ascent/2)
		f := squareRect(nchess.NewSquare(file, nchess.Rank1), sq, origin, flip)
		centered(d, file.String(), f.Min.X+sq/2, origin.Y+8*sq+(sq/3+ascent)/2)
	}
}

func centered(d *font.Drawer, text string, cx, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(cx-w/2, baseline)
	d.DrawString(text)
}
