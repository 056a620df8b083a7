package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/chunkd/internal/webserver/weberror"
	"github.com/mdouchement/logger"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		if !c.Response().Committed {
			var err2 error

			switch err := err.(type) {
			case *echo.HTTPError:
				err2 = weberror.New(err.Code, http.StatusText(err.Code))
				if msg, ok := err.Message.(string); ok {
					err2 = weberror.New(err.Code, msg)
				}
				err2 = c.JSON(weberror.StatusCode(err2), err2)
			case service.DetailedError:
				werr := weberror.NewDetailed(err.HTTPCode(), err.Error(), err.Reason(), err.Details())
				err2 = c.JSON(err.HTTPCode(), werr)
			case *weberror.Error:
				err2 = c.JSON(weberror.StatusCode(err), err)
			default:
				err = weberror.New(http.StatusInternalServerError, err.Error())
				err2 = c.JSON(weberror.StatusCode(err), err)
			}

			if weberror.StatusCode(err) >= http.StatusInternalServerError {
				log.Error(err)
			} else {
				log.Debug(err)
			}
			if err2 != nil {
				log.Errorf("HTTPErrorHandler: %s", err2)
			}
		}
	}
}
