package controllers

import (
	"log/slog"
	"net/http"

	"rehearsalplanner/internal/adapters/realtime"
	h "rehearsalplanner/internal/delivery/http/helpers"
	"rehearsalplanner/internal/delivery/http/middleware"
)

// RealtimeController upgrades authenticated members to a websocket and hands
// the connection to the hub for lifecycle broadcasts.
type RealtimeController struct {
	Logger *slog.Logger
	Hub    *realtime.Hub
}

func NewRealtimeController(logger *slog.Logger, hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{
		Logger: logger,
		Hub:    hub,
	}
}

// Connect godoc
// @Summary Open a realtime event stream
// @Description Upgrades to a websocket. The server pushes rehearsal.created, rehearsal.updated, and rehearsal.deleted events addressed to the member; clients send nothing. A newer connection replaces an older one for the same member.
// @Tags realtime
// @Security BearerAuth
// @Success 101 "Switching Protocols"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /ws [get]
func (c *RealtimeController) Connect(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	c.Hub.ServeWS(w, r, memberID)
}
