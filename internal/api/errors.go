package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var errNotReady = errors.New("dataset is still loading, try again shortly")

// datasetError maps a load failure to 503. The message names the missing
// file, sheet or columns, so it is returned as is.
func datasetError(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error()).SetInternal(err)
}

func (h *Handler) internalError(c echo.Context, err error, msg string) error {
	h.log.Error(msg, "error", err, "method", c.Request().Method, "path", c.Path())
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}
