// Package handler contains the HTTP handlers of the billing API.  Handlers
// bind and shape requests, call a service and write the uniform envelope;
// failures are returned to echo and rendered by ErrorHandler.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/middleware"
	"github.com/iliyamo/invoice-billing/internal/model"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data"`
	Errors  []string `json:"errors"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

const internalMessage = "Something went wrong"

// ErrorHandler renders errors in the envelope.  apperr kinds map to their
// status; echo's own errors keep their code.  Unclassified errors are logged
// and, unless showInternal is set, their text is replaced.
func ErrorHandler(showInternal bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := apperr.Status(err), apperr.Message(err)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil && status >= http.StatusInternalServerError {
				err = he.Internal
			}
		}

		if status >= http.StatusInternalServerError {
			slog.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
			if !showInternal {
				msg = internalMessage
			}
		}

		body := Envelope{Success: false, Message: msg}
		if status == http.StatusBadRequest {
			body.Errors = []string{msg}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			slog.Error("write error response", "error", err)
		}
	}
}

// viewer returns the authenticated caller.  Routes using it sit behind
// JWTAuth, so a miss means the middleware was not mounted.
func viewer(c echo.Context) (model.Viewer, error) {
	v, ok := middleware.ViewerFrom(c)
	if !ok {
		return model.Viewer{}, fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
	}
	return v, nil
}

// bind decodes the request body into dst, reporting malformed input as a
// validation error.
func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
