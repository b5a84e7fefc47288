package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	h "rehearsalplanner/internal/delivery/http/helpers"
	"rehearsalplanner/internal/delivery/http/middleware"
	"rehearsalplanner/internal/domain"
)

// RehearsalRequest is the request body for rehearsal create, update, and
// publish endpoints. All fields are optional; omitted fields are defaulted on
// create and unchanged on update. invitee_ids omitted leaves the invitee set
// untouched; an empty array clears it.
type RehearsalRequest struct {
	Title          *string  `json:"title"`
	Date           *string  `json:"date"`     // "2006-01-02"
	Time           *string  `json:"time"`     // "15:04"
	EndTime        *string  `json:"end_time"` // "15:04"
	Location       *string  `json:"location"`
	Description    *string  `json:"description"`
	DeadlineOption *string  `json:"deadline_option"`
	InviteeIDs     []string `json:"invitee_ids"`
}

// Validate implements Validator. Format errors on date and time are left to
// the service, which treats unparseable values per endpoint semantics.
func (r RehearsalRequest) Validate() []string {
	var errs []string
	if r.Title != nil && len(strings.TrimSpace(*r.Title)) > 200 {
		errs = append(errs, "title must be at most 200 characters")
	}
	return errs
}

func (r RehearsalRequest) toInput() domain.RehearsalInput {
	return domain.RehearsalInput{
		Title:          r.Title,
		Date:           r.Date,
		Time:           r.Time,
		EndTime:        r.EndTime,
		Location:       r.Location,
		Description:    r.Description,
		DeadlineOption: r.DeadlineOption,
		InviteeIDs:     r.InviteeIDs,
	}
}

// RehearsalSuccessResponse is the success response envelope for endpoints
// returning a single rehearsal.
type RehearsalSuccessResponse struct {
	Data  *domain.Rehearsal `json:"data"`
	Error *h.APIError       `json:"error"`
}

// GetRehearsalResponse is the data payload for GET /rehearsals/{rehearsalID}.
type GetRehearsalResponse struct {
	Rehearsal  *domain.Rehearsal `json:"rehearsal"`
	InviteeIDs []string          `json:"invitee_ids"`
}

// GetRehearsalSuccessResponse is the success response envelope for GET /rehearsals/{rehearsalID} (200).
type GetRehearsalSuccessResponse struct {
	Data  GetRehearsalResponse `json:"data"`
	Error *h.APIError          `json:"error"`
}

// ListRehearsalsSuccessResponse is the success response envelope for GET /rehearsals (200).
type ListRehearsalsSuccessResponse struct {
	Data  []*domain.Rehearsal `json:"data"`
	Error *h.APIError         `json:"error"`
}

// DeleteRehearsalResponse is the data payload for DELETE /rehearsals/{rehearsalID} (200).
type DeleteRehearsalResponse struct {
	Status string `json:"status"`
}

type RehearsalController struct {
	Logger  *slog.Logger
	Service domain.RehearsalService
}

func NewRehearsalController(logger *slog.Logger, svc domain.RehearsalService) *RehearsalController {
	return &RehearsalController{
		Logger:  logger,
		Service: svc,
	}
}

// writeServiceError maps domain sentinels to HTTP responses; anything else is
// logged and reported as internal_error.
func (c *RehearsalController) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "rehearsal not found")
	case errors.Is(err, domain.ErrForbidden):
		h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotDraft):
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeNotDraft, "rehearsal is not a draft")
	case errors.Is(err, domain.ErrNoRecipients):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeNoRecipients, "no members to notify")
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
	}
}

// CreateDraft godoc
// @Summary Create a draft rehearsal
// @Description Create a draft from partial fields. Missing fields are defaulted (next full hour, two hour duration, placeholder title and location, one week registration deadline). Drafts are visible only to their planner and send no notifications.
// @Tags rehearsals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RehearsalRequest true "Draft fields (all optional)"
// @Success 201 {object} controllers.RehearsalSuccessResponse "data contains the created draft"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals/draft [post]
func (c *RehearsalController) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req RehearsalRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	plannerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsal, err := c.Service.CreateDraft(r.Context(), plannerID, req.toInput())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, rehearsal)
}

// UpdateDraft godoc
// @Summary Update a draft rehearsal
// @Description Edit a draft in place. Only the planner can edit; no notifications are sent. Returns 409 not_draft if the rehearsal has been published.
// @Tags rehearsals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rehearsalID path string true "Rehearsal ID (UUID)"
// @Param body body RehearsalRequest true "Fields to update (all optional)"
// @Success 200 {object} controllers.RehearsalSuccessResponse "data contains the updated draft"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not planner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: not_draft"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals/{rehearsalID}/draft [patch]
func (c *RehearsalController) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	rehearsalID := r.PathValue("rehearsalID")
	if rehearsalID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing rehearsalID")
		return
	}
	var req RehearsalRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	plannerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsal, err := c.Service.UpdateDraft(r.Context(), plannerID, rehearsalID, req.toInput())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, rehearsal)
}

// Update godoc
// @Summary Update a rehearsal
// @Description Edit a rehearsal in either state. Draft edits are silent; edits to a planned rehearsal reconcile notification threads (amend for pending recipients, fork for responded ones) and broadcast the changed fields.
// @Tags rehearsals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rehearsalID path string true "Rehearsal ID (UUID)"
// @Param body body RehearsalRequest true "Fields to update (all optional)"
// @Success 200 {object} controllers.RehearsalSuccessResponse "data contains the updated rehearsal"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not planner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals/{rehearsalID} [patch]
func (c *RehearsalController) Update(w http.ResponseWriter, r *http.Request) {
	rehearsalID := r.PathValue("rehearsalID")
	if rehearsalID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing rehearsalID")
		return
	}
	var req RehearsalRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	plannerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsal, err := c.Service.Update(r.Context(), plannerID, rehearsalID, req.toInput())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, rehearsal)
}

// Publish godoc
// @Summary Publish a draft rehearsal
// @Description One-way transition from draft to planned. The payload may adjust fields and the invitee set before going live; the synchronized invitees are notified and receive a realtime event. Returns 409 not_draft if already published.
// @Tags rehearsals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rehearsalID path string true "Rehearsal ID (UUID)"
// @Param body body RehearsalRequest true "Final fields and invitees (all optional)"
// @Success 200 {object} controllers.RehearsalSuccessResponse "data contains the published rehearsal"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not planner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: not_draft"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals/{rehearsalID}/publish [post]
func (c *RehearsalController) Publish(w http.ResponseWriter, r *http.Request) {
	rehearsalID := r.PathValue("rehearsalID")
	if rehearsalID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing rehearsalID")
		return
	}
	var req RehearsalRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	plannerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsal, err := c.Service.Publish(r.Context(), plannerID, rehearsalID, req.toInput())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, rehearsal)
}

// CreatePlanned godoc
// @Summary Create a planned rehearsal directly
// @Description Create and publish in one step. When invitee_ids is omitted or empty, the full roster is invited; an empty roster fails with no_recipients. Invitees are notified immediately.
// @Tags rehearsals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RehearsalRequest true "Rehearsal fields (all optional)"
// @Success 201 {object} controllers.RehearsalSuccessResponse "data contains the created rehearsal"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or no_recipients"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals [post]
func (c *RehearsalController) CreatePlanned(w http.ResponseWriter, r *http.Request) {
	var req RehearsalRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	plannerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsal, err := c.Service.CreatePlanned(r.Context(), plannerID, req.toInput())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, rehearsal)
}

// Delete godoc
// @Summary Delete a rehearsal
// @Description Delete a rehearsal in either state, cascading its invitee and notification rows. Everyone who ever had visibility receives a deletion broadcast.
// @Tags rehearsals
// @Produce json
// @Security BearerAuth
// @Param rehearsalID path string true "Rehearsal ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data contains status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not planner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals/{rehearsalID} [delete]
func (c *RehearsalController) Delete(w http.ResponseWriter, r *http.Request) {
	rehearsalID := r.PathValue("rehearsalID")
	if rehearsalID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing rehearsalID")
		return
	}
	plannerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if err := c.Service.Delete(r.Context(), plannerID, rehearsalID); err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, DeleteRehearsalResponse{Status: "deleted"})
}

// GetByID godoc
// @Summary Get a rehearsal by ID
// @Description Returns the rehearsal and its invitee IDs. Drafts are visible only to their planner (404 otherwise); planned rehearsals to the planner and invitees (403 otherwise).
// @Tags rehearsals
// @Produce json
// @Security BearerAuth
// @Param rehearsalID path string true "Rehearsal ID (UUID)"
// @Success 200 {object} controllers.GetRehearsalSuccessResponse "data contains rehearsal and invitee_ids"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals/{rehearsalID} [get]
func (c *RehearsalController) GetByID(w http.ResponseWriter, r *http.Request) {
	rehearsalID := r.PathValue("rehearsalID")
	if rehearsalID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing rehearsalID")
		return
	}
	callerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsal, inviteeIDs, err := c.Service.GetByID(r.Context(), callerID, rehearsalID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	if inviteeIDs == nil {
		inviteeIDs = []string{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, GetRehearsalResponse{Rehearsal: rehearsal, InviteeIDs: inviteeIDs})
}

// List godoc
// @Summary List rehearsals visible to the current member
// @Description Returns rehearsals the member planned (any state) plus planned rehearsals they are invited to.
// @Tags rehearsals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.ListRehearsalsSuccessResponse "data is an array of rehearsals"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rehearsals [get]
func (c *RehearsalController) List(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	rehearsals, err := c.Service.ListForMember(r.Context(), callerID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	if rehearsals == nil {
		rehearsals = []*domain.Rehearsal{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, rehearsals)
}

// AvailabilityResponse is the data payload for GET /members/availability (200).
type AvailabilityResponse struct {
	Date             string   `json:"date"`
	BlockedMemberIDs []string `json:"blocked_member_ids"`
}

// AvailabilityController exposes the read-only availability signal used by
// the planning UI when picking a date.
type AvailabilityController struct {
	Logger  *slog.Logger
	Service domain.MemberService
}

func NewAvailabilityController(logger *slog.Logger, svc domain.MemberService) *AvailabilityController {
	return &AvailabilityController{
		Logger:  logger,
		Service: svc,
	}
}

// BlockedOn godoc
// @Summary List members blocked on a day
// @Description Returns the IDs of members who marked the given day as blocked. Purely informational; scheduling is never prevented by it.
// @Tags members
// @Produce json
// @Security BearerAuth
// @Param date query string true "Day to check (YYYY-MM-DD)"
// @Success 200 {object} helpers.APIResponse "data contains date and blocked_member_ids"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /members/availability [get]
func (c *AvailabilityController) BlockedOn(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing date")
		return
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if _, ok := middleware.MemberIDFromContext(r.Context()); !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	blocked, err := c.Service.ListBlockedOn(r.Context(), day)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	if blocked == nil {
		blocked = []string{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, AvailabilityResponse{Date: raw, BlockedMemberIDs: blocked})
}
