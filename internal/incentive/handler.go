package incentive

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Handler manages incentive endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authmw   auth.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authmw: authmw, validate: validator.New()}
}

// MountRoutes registers incentive routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/my-incentives", h.myIncentives)

	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAdmin)
		r.Get("/", h.listAssignments)
		r.Post("/", h.createAssignment)
		r.Put("/{id}", h.updateAssignment)
		r.Post("/{id}/deactivate", h.deactivateAssignment)
		r.Delete("/{id}", h.deleteAssignment)
	})
}

type assignmentRequest struct {
	LeaderID      int64   `json:"leaderId" validate:"required"`
	ConsultantID  int64   `json:"consultantId" validate:"required"`
	ProjectID     *int64  `json:"projectId"`
	IncentiveRate float64 `json:"incentiveRate" validate:"gte=0"`
	StartDate     string  `json:"startDate" validate:"required"`
	EndDate       *string `json:"endDate"`
	IsActive      *bool   `json:"isActive"`
}

func (h *Handler) decodeAssignment(r *http.Request) (AssignmentInput, error) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return AssignmentInput{}, fmt.Errorf("%w: invalid request body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(req); err != nil {
		return AssignmentInput{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return AssignmentInput{}, fmt.Errorf("%w: invalid startDate", httpx.ErrValidation)
	}
	input := AssignmentInput{
		LeaderID:      req.LeaderID,
		ConsultantID:  req.ConsultantID,
		ProjectID:     req.ProjectID,
		IncentiveRate: req.IncentiveRate,
		StartDate:     start,
		IsActive:      true,
	}
	if req.EndDate != nil {
		end, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return AssignmentInput{}, fmt.Errorf("%w: invalid endDate", httpx.ErrValidation)
		}
		input.EndDate = &end
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return input, nil
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeAssignment(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	assignment, err := h.service.CreateAssignment(r.Context(), input)
	if err != nil {
		h.logger.Error("create incentive assignment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeAssignment(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	assignment, err := h.service.UpdateAssignment(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update incentive assignment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignment)
}

func (h *Handler) deactivateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeactivateAssignment(r.Context(), id); err != nil {
		h.logger.Error("deactivate incentive assignment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAssignment(r.Context(), id); err != nil {
		h.logger.Error("delete incentive assignment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.ListAssignments(r.Context())
	if err != nil {
		h.logger.Error("list incentive assignments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if assignments == nil {
		assignments = []FractionalIncentive{}
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

func (h *Handler) myIncentives(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	view, err := h.service.MyIncentives(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("my incentives", slog.Any("error", err), slog.Int64("user_id", ident.UserID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", httpx.ErrValidation)
	}
	return id, nil
}
