package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baiirun/taskboard/internal/auth"
	"github.com/baiirun/taskboard/internal/tasks"
)

// handleError maps domain errors onto the wire. Forbidden shares the 401 of
// Unauthorized; the message tells them apart.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := s.errorResponse(err, c)
	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, body)
	}
	if writeErr != nil {
		s.logger.Error("Failed to write error response", slog.String("error", writeErr.Error()))
	}
}

func (s *Server) errorResponse(err error, c echo.Context) (int, StatusResponse) {
	var verr *tasks.ValidationError
	var herr *echo.HTTPError

	switch {
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusUnauthorized, StatusResponse{Status: "Unauthorized", Message: "forbidden"}
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, StatusResponse{Status: "Unauthorized", Message: "unauthorized"}
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound, StatusResponse{Status: "error", Message: err.Error()}
	case errors.Is(err, tasks.ErrInvalidStatus):
		return http.StatusBadRequest, StatusResponse{Status: "error", Message: err.Error()}
	case errors.As(err, &verr):
		return http.StatusBadRequest, StatusResponse{Status: "error", Message: verr.Error()}
	case errors.As(err, &herr):
		return herr.Code, StatusResponse{Status: "error", Message: fmt.Sprint(herr.Message)}
	default:
		s.logger.Error("Unhandled error",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
		return http.StatusInternalServerError, StatusResponse{Status: "error", Message: "internal error"}
	}
}
