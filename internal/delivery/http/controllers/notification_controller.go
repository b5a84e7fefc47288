package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	h "rehearsalplanner/internal/delivery/http/helpers"
	"rehearsalplanner/internal/delivery/http/middleware"
	"rehearsalplanner/internal/domain"
)

// ListNotificationsResponse is the data payload for GET /notifications (200).
type ListNotificationsResponse struct {
	Items      []*domain.InboxItem `json:"items"`
	Pagination h.PaginationMeta    `json:"pagination"`
}

// ListNotificationsSuccessResponse is the success response envelope for GET /notifications (200).
type ListNotificationsSuccessResponse struct {
	Data  ListNotificationsResponse `json:"data"`
	Error *h.APIError               `json:"error"`
}

// MarkRespondedResponse is the data payload for POST /notifications/{notificationID}/respond (200).
type MarkRespondedResponse struct {
	Status string `json:"status"`
}

type NotificationController struct {
	Logger  *slog.Logger
	Service domain.NotificationService
}

func NewNotificationController(logger *slog.Logger, svc domain.NotificationService) *NotificationController {
	return &NotificationController{
		Logger:  logger,
		Service: svc,
	}
}

// List godoc
// @Summary List the current member's notifications
// @Description Returns a paginated inbox, newest first. Each item carries the recipient's responded state; responded items keep the thread content they were forked from.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListNotificationsSuccessResponse "data contains items and pagination"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications [get]
func (c *NotificationController) List(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	params := h.ParsePagination(r)
	items, total, err := c.Service.ListForMember(r.Context(), memberID, params)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	if items == nil {
		items = []*domain.InboxItem{}
	}
	meta := h.NewPaginationMeta(params, total)
	h.WriteJSONSuccess(w, http.StatusOK, ListNotificationsResponse{Items: items, Pagination: meta})
}

// MarkResponded godoc
// @Summary Mark a notification as responded
// @Description Flips the caller's recipient row to responded. Idempotent; the first response timestamp is kept. Once responded, later edits to the rehearsal fork a fresh thread instead of amending this one.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationID path string true "Notification ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data contains status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found (not a recipient)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/{notificationID}/respond [post]
func (c *NotificationController) MarkResponded(w http.ResponseWriter, r *http.Request) {
	notificationID := r.PathValue("notificationID")
	if notificationID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing notificationID")
		return
	}
	memberID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if err := c.Service.MarkResponded(r.Context(), memberID, notificationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "notification not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, MarkRespondedResponse{Status: "responded"})
}
