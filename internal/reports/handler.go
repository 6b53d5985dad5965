package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Handler serves financial report endpoints. All routes are admin only.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authmw  auth.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authmw: authmw}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAdmin)
		r.Get("/1099/{userID}/{year}", h.year1099)
		r.Get("/project-profitability/{projectID}", h.projectProfitability)
		r.Get("/company-summary", h.companySummary)
	})
}

func (h *Handler) year1099(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid user id", httpx.ErrValidation))
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid year", httpx.ErrValidation))
		return
	}

	report, err := h.service.Year1099(r.Context(), userID, year)
	if err != nil {
		h.logger.Error("1099 report", slog.Any("error", err), slog.Int64("userId", userID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) projectProfitability(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || projectID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid project id", httpx.ErrValidation))
		return
	}

	report, err := h.service.ProjectProfitability(r.Context(), projectID, queryWindow(r))
	if err != nil {
		h.logger.Error("project profitability report", slog.Any("error", err), slog.Int64("projectId", projectID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// queryWindow reads the optional startDate/endDate query parameters.
// Malformed dates are treated as absent.
func queryWindow(r *http.Request) Window {
	var window Window
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			window.From = from
		}
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			window.To = to
		}
	}
	return window
}

func (h *Handler) companySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CompanySummary(r.Context(), queryWindow(r))
	if err != nil {
		h.logger.Error("company summary report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
