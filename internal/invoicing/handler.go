package invoicing

import (
	"context"
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

// Submitter pushes an approved batch to the external billing provider.
type Submitter interface {
	SubmitBatch(ctx context.Context, batchID int64) (*SubmitResult, error)
}

// Handler manages invoice batch endpoints. All routes are admin only.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	submitter Submitter
	authmw    auth.Middleware
	validate  *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, submitter Submitter, authmw auth.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		submitter: submitter,
		authmw:    authmw,
		validate:  validator.New(),
	}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAdmin)
		r.Post("/batches/generate", h.generateBatch)
		r.Get("/batches", h.listBatches)
		r.Get("/batches/{id}", h.getBatch)
		r.Post("/batches/{id}/submit", h.submitBatch)
		r.Patch("/{id}", h.updateInvoice)
		r.Delete("/{id}/line-items/{lineItemID}", h.deleteLineItem)
	})
}

type generateRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Notes     string `json:"notes"`
}

func (h *Handler) generateBatch(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid start date", httpx.ErrValidation))
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid end date", httpx.ErrValidation))
		return
	}

	batch, err := h.service.GenerateBatch(r.Context(), GenerateInput{
		StartDate:   start,
		EndDate:     end,
		Notes:       req.Notes,
		GeneratedBy: ident.UserID,
	})
	if err != nil {
		h.logger.Error("generate invoice batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ListBatches(r.Context(), BatchStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list invoice batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if batches == nil {
		batches = []InvoiceBatch{}
	}
	httpx.JSON(w, http.StatusOK, batches)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "batch")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) submitBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "batch")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.submitter.SubmitBatch(r.Context(), id)
	if err != nil {
		h.logger.Error("submit invoice batch", slog.Any("error", err), slog.Int64("batchId", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type updateInvoiceRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=APPROVED"`
	Notes  *string `json:"notes"`
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "invoice")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req updateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	input := UpdateInvoiceInput{Notes: req.Notes}
	if req.Status != nil {
		status := InvoiceStatus(*req.Status)
		input.Status = &status
	}

	invoice, err := h.service.UpdateInvoice(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) deleteLineItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id", "invoice")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineItemID, err := pathID(r, "lineItemID", "line item")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	invoice, err := h.service.DeleteLineItem(r.Context(), invoiceID, lineItemID)
	if err != nil {
		h.logger.Error("delete invoice line item", slog.Any("error", err),
			slog.Int64("invoiceId", invoiceID), slog.Int64("lineItemId", lineItemID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func pathID(r *http.Request, param, label string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s id", httpx.ErrValidation, label)
	}
	return id, nil
}
