package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/board"
)

type errorResponse struct {
	Msg string `json:"msg"`
}

// respondError maps an engine error onto the wire. NotFound and Unauthorized
// stay distinguishable in the log fields even though the caller just sees
// the status.
func respondError(c echo.Context, logger *log.Logger, err error) error {
	status := http.StatusInternalServerError
	msg := "server error"
	switch {
	case errors.Is(err, board.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, board.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, board.ErrUnauthorized):
		status, msg = http.StatusForbidden, "operation denied"
	case errors.Is(err, board.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, board.ErrUpstreamUnavailable):
		status, msg = http.StatusBadGateway, "upstream unavailable"
	}
	logger.WithFields(log.Fields{
		"path":   c.Path(),
		"status": status,
		"error":  err.Error(),
	}).Warn("request failed")
	return c.JSON(status, errorResponse{Msg: msg})
}
