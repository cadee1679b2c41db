package httpapi

import (
	"github.com/labstack/echo/v4"

	"github.com/park285/chess-arena/internal/auth"
	"github.com/park285/chess-arena/internal/domain"
)

const viewerKey = "viewer"

// RequireViewer resolves the caller and stores the email under "viewer".
func RequireViewer(r auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			email, err := r.Resolve(c.Request().Context(), c.Request())
			if err != nil {
				return domain.ErrNotLoggedIn
			}
			c.Set(viewerKey, email)
			return next(c)
		}
	}
}

func viewerOf(c echo.Context) (string, error) {
	email, _ := c.Get(viewerKey).(string)
	if email == "" {
		return "", domain.ErrNotLoggedIn
	}
	return email, nil
}
