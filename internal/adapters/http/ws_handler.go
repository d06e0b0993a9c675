package http

import (
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskhub/internal/adapters/notify"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
)

// WSHandler upgrades authenticated requests to the event stream.
type WSHandler struct {
	hub    *notify.Hub
	logger *logger.Logger
}

func NewWSHandler(hub *notify.Hub, logger *logger.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Serve streams the caller's task events
//
// @Summary Event stream
// @Description WebSocket. Frames are {"event": "taskCreated|taskUpdated|taskDeleted", "data": ...}.
// @Tags Events
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Router /ws [get]
func (h *WSHandler) Serve(c echo.Context) error {
	actor := mustActor(c)

	if err := h.hub.ServeWS(c.Response(), c.Request(), actor.ID); err != nil {
		h.logger.Warnw("WebSocket connection failed", "user_id", actor.ID.String(), "error", err)
		if c.Response().Committed {
			return nil
		}
		return err
	}
	return nil
}
