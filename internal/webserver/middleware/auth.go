package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/chunkd/internal/webserver/weberror"
)

// Authenticate rejects the requests without the given X-Auth-Token.
func Authenticate(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			provided := c.Request().Header.Get("X-Auth-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return weberror.New(http.StatusUnauthorized, "authorization failed")
			}

			return next(c)
		}
	}
}
