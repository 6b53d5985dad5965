package timesheet

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

// Handler manages time entry endpoints.
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

// MountRoutes registers time entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.listEntries)
	r.Post("/entries", h.createEntry)
	r.Get("/entries/{id}", h.getEntry)
	r.Put("/entries/{id}", h.updateEntry)
	r.Delete("/entries/{id}", h.deleteEntry)
	r.Post("/entries/{id}/submit", h.submitEntry)

	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAdmin)
		r.Post("/entries/{id}/approve", h.approveEntry)
		r.Post("/entries/{id}/reject", h.rejectEntry)
	})
}

type entryRequest struct {
	ClientID    int64   `json:"clientId" validate:"required"`
	ProjectID   int64   `json:"projectId" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	Hours       float64 `json:"hours" validate:"required,gt=0,lte=24"`
	Description string  `json:"description"`
}

func (h *Handler) decodeEntry(r *http.Request) (EntryInput, error) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return EntryInput{}, fmt.Errorf("%w: invalid request body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(req); err != nil {
		return EntryInput{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return EntryInput{}, fmt.Errorf("%w: invalid date", httpx.ErrValidation)
	}
	return EntryInput{
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		EntryDate:   date,
		Hours:       req.Hours,
		Description: req.Description,
	}, nil
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	input, err := h.decodeEntry(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), ident.UserID, input)
	if err != nil {
		h.logger.Error("create time entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeEntry(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entry, err := h.service.UpdateEntry(r.Context(), ident.UserID, id, input)
	if err != nil {
		h.logger.Error("update time entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteEntry(r.Context(), ident.UserID, id); err != nil {
		h.logger.Error("delete time entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submitEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entry, err := h.service.SubmitEntry(r.Context(), ident.UserID, id)
	if err != nil {
		h.logger.Error("submit time entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) approveEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entry, err := h.service.ApproveEntry(r.Context(), ident.UserID, id)
	if err != nil {
		h.logger.Error("approve time entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) rejectEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entry, err := h.service.RejectEntry(r.Context(), ident.UserID, id)
	if err != nil {
		h.logger.Error("reject time entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if entry.UserID != ident.UserID && !ident.IsAdmin() {
		httpx.RespondError(w, fmt.Errorf("%w: not the entry owner", httpx.ErrForbidden))
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	filter := EntryFilter{
		UserID: ident.UserID,
		Status: EntryStatus(r.URL.Query().Get("status")),
	}
	// Admins may inspect any user's entries.
	if ident.IsAdmin() {
		if raw := r.URL.Query().Get("userId"); raw != "" {
			if userID, err := strconv.ParseInt(raw, 10, 64); err == nil {
				filter.UserID = userID
			}
		}
	}
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.From = from
		}
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			filter.To = to
		}
	}

	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error("list time entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []TimeEntry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid entry id", httpx.ErrValidation)
	}
	return id, nil
}
