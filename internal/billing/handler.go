package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// CustomerLister fetches the provider's customer list for mapping setup.
type CustomerLister interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
}

// Handler manages billing configuration endpoints. All routes are admin only.
// Stored credentials are write-only through this surface.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	customers CustomerLister
	authmw    auth.Middleware
	validate  *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository, customers CustomerLister, authmw auth.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		repo:      repo,
		customers: customers,
		authmw:    authmw,
		validate:  validator.New(),
	}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAdmin)
		r.Put("/credentials", h.saveCredentials)
		r.Get("/customers", h.listCustomers)
		r.Get("/mappings", h.listMappings)
		r.Post("/mappings", h.createMapping)
		r.Put("/mappings/{id}", h.updateMapping)
		r.Delete("/mappings/{id}", h.deleteMapping)
	})
}

type credentialsRequest struct {
	DevKey         string `json:"devKey" validate:"required"`
	Username       string `json:"username" validate:"required"`
	Password       string `json:"password" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
	Environment    string `json:"environment" validate:"required,oneof=SANDBOX PRODUCTION"`
}

func (h *Handler) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	err := h.repo.SaveCredentials(r.Context(), Credentials{
		DevKey:         req.DevKey,
		Username:       req.Username,
		Password:       req.Password,
		OrganizationID: req.OrganizationID,
		Environment:    Environment(req.Environment),
	})
	if err != nil {
		h.logger.Error("save billing credentials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list billing customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if customers == nil {
		customers = []Customer{}
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.repo.ListMappings(r.Context())
	if err != nil {
		h.logger.Error("list customer mappings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if mappings == nil {
		mappings = []CustomerMapping{}
	}
	httpx.JSON(w, http.StatusOK, mappings)
}

type mappingRequest struct {
	ClientID             int64  `json:"clientId" validate:"required"`
	ExternalCustomerID   string `json:"externalCustomerId" validate:"required"`
	ExternalCustomerName string `json:"externalCustomerName"`
}

func (h *Handler) createMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	mapping, err := h.repo.CreateMapping(r.Context(), CustomerMapping{
		ClientID:             req.ClientID,
		ExternalCustomerID:   req.ExternalCustomerID,
		ExternalCustomerName: req.ExternalCustomerName,
	})
	if err != nil {
		h.logger.Error("create customer mapping", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mapping)
}

func (h *Handler) updateMapping(w http.ResponseWriter, r *http.Request) {
	id, err := mappingID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req mappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	mapping, err := h.repo.UpdateMapping(r.Context(), id, CustomerMapping{
		ExternalCustomerID:   req.ExternalCustomerID,
		ExternalCustomerName: req.ExternalCustomerName,
	})
	if err != nil {
		h.logger.Error("update customer mapping", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}

func (h *Handler) deleteMapping(w http.ResponseWriter, r *http.Request) {
	id, err := mappingID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.repo.DeleteMapping(r.Context(), id); err != nil {
		h.logger.Error("delete customer mapping", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mappingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid mapping id", httpx.ErrValidation)
	}
	return id, nil
}
