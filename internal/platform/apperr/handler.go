package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the wire shape every error takes.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPErrorHandler returns an echo error handler that renders apperr values,
// echo HTTPErrors, and anything else as a {"success": false, "message"}
// payload. Upstream causes are logged, not exposed.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var ae *Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = ae.Status()
			message = ae.Message
			if ae.Kind == KindUpstream {
				logger.Error().Err(ae.Err).Str("path", c.Request().URL.Path).Msg(ae.Message)
			}
		case errors.As(err, &he):
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		default:
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, Response{Success: false, Message: message})
	}
}
