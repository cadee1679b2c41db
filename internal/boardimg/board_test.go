package boardimg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func decode(t *testing.T, raw []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func sameRGB(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar == br && ag == bg && ab == bb
}

// center returns the pixel centre of a square given file/rank indexes.
func center(file, rank int, flip bool) (int, int) {
	col, row := file, 7-rank
	if flip {
		col, row = 7-col, 7-row
	}
	margin := DefaultSquare / 3
	return margin + col*DefaultSquare + DefaultSquare/2, row*DefaultSquare + DefaultSquare/2
}

func TestRenderStartPosition(t *testing.T) {
	raw, err := RenderFEN(context.Background(), startFEN, Options{})
	if err != nil {
		t.Fatalf("RenderFEN: %v", err)
	}
	img := decode(t, raw)
	want := DefaultSquare/3 + 8*DefaultSquare
	if b := img.Bounds(); b.Dx() != want || b.Dy() != want {
		t.Fatalf("size %v, want %dx%d", b, want, want)
	}
	// e4 is empty and light
	if x, y := center(4, 3, false); !sameRGB(img.At(x, y), lightSquare) {
		t.Fatalf("e4 should be an empty light square, got %v", img.At(x, y))
	}
	// d4 is empty and dark
	if x, y := center(3, 3, false); !sameRGB(img.At(x, y), darkSquare) {
		t.Fatalf("d4 should be an empty dark square, got %v", img.At(x, y))
	}
	// e1 holds the white king
	if x, y := center(4, 0, false); sameRGB(img.At(x, y), darkSquare) || sameRGB(img.At(x, y), lightSquare) {
		t.Fatalf("e1 should show a piece")
	}
}

func TestRenderFlipAndScale(t *testing.T) {
	fen := "8/8/8/8/8/8/8/K6k w - - 0 1"
	raw, err := RenderFEN(context.Background(), fen, Options{Flip: true})
	if err != nil {
		t.Fatalf("RenderFEN: %v", err)
	}
	img := decode(t, raw)
	if x, y := center(0, 0, true); sameRGB(img.At(x, y), darkSquare) {
		t.Fatalf("flipped a1 should hold the white king")
	}
	if x, y := center(0, 7, true); !sameRGB(img.At(x, y), lightSquare) {
		t.Fatalf("flipped a8 should be empty")
	}

	raw, err = RenderFEN(context.Background(), fen, Options{SquareSize: 32, Width: 120})
	if err != nil {
		t.Fatalf("RenderFEN scaled: %v", err)
	}
	if b := decode(t, raw).Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Fatalf("scaled size %v", b)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	if _, err := RenderFEN(context.Background(), "not a fen", Options{}); err == nil {
		t.Fatalf("bad fen must fail")
	}
	if _, err := RenderFEN(context.Background(), startFEN, Options{SquareSize: 4}); err == nil {
		t.Fatalf("tiny squares must fail")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RenderFEN(ctx, startFEN, Options{}); err == nil {
		t.Fatalf("cancelled context must fail")
	}
}
