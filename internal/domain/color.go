package domain

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Short is the single letter form used in move payloads ("w"/"b").
func (c Color) Short() string {
	if c == White {
		return "w"
	}
	return "b"
}

func (c Color) Valid() bool { return c == White || c == Black }
