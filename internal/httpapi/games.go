package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/park285/chess-arena/internal/boardimg"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/pkg/arenadto"
)

type GamesHandler struct {
	games Games
}

func NewGamesHandler(g Games) *GamesHandler { return &GamesHandler{games: g} }

// List handles GET /previousGames.
func (h *GamesHandler) List(c echo.Context) error {
	email, err := viewerOf(c)
	if err != nil {
		return err
	}
	list, err := h.games.PreviousGames(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, arenadto.FromHistoricalGames(list))
}

type boardRequest struct {
	ID    string `param:"id" validate:"required,uuid"`
	Width int    `query:"width" validate:"omitempty,min=64,max=1024"`
}

// Board handles GET /previousGames/:id/board.png, the final position seen
// from the viewer's side.
func (h *GamesHandler) Board(c echo.Context) error {
	email, err := viewerOf(c)
	if err != nil {
		return err
	}
	var req boardRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrMalformedPayload
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	g, err := h.games.PreviousGame(c.Request().Context(), email, req.ID)
	if err != nil {
		return err
	}
	png, err := boardimg.RenderFEN(c.Request().Context(), g.FinalFEN, boardimg.Options{
		Flip:  g.BlackPlayer == email,
		Width: req.Width,
	})
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Blob(http.StatusOK, "image/png", png)
}
