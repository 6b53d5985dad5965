package masterdata

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Handler manages client and project endpoints. Reads are open to any
// authenticated user; writes are admin only.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authmw   auth.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authmw: authmw, validate: validator.New()}
}

// MountRoutes registers masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients", h.listClients)
	r.Get("/clients/{id}", h.getClient)
	r.Get("/projects", h.listProjects)
	r.Get("/projects/{id}", h.getProject)

	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAdmin)
		r.Post("/clients", h.createClient)
		r.Put("/clients/{id}", h.updateClient)
		r.Post("/projects", h.createProject)
		r.Put("/projects/{id}", h.updateProject)
	})
}

type clientRequest struct {
	Name     string `json:"name" validate:"required"`
	IsActive *bool  `json:"isActive"`
}

func (h *Handler) decodeClient(r *http.Request) (ClientInput, error) {
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return ClientInput{}, fmt.Errorf("%w: invalid request body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(req); err != nil {
		return ClientInput{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	input := ClientInput{Name: req.Name, IsActive: true}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return input, nil
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeClient(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.CreateClient(r.Context(), input)
	if err != nil {
		h.logger.Error("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r, "client")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeClient(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.UpdateClient(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update client", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r, "client")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context())
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if clients == nil {
		clients = []Client{}
	}
	httpx.JSON(w, http.StatusOK, clients)
}

type projectRequest struct {
	ClientID    int64    `json:"clientId" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	BillingRate *float64 `json:"billingRate"`
	IsActive    *bool    `json:"isActive"`
}

func (h *Handler) decodeProject(r *http.Request) (ProjectInput, error) {
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return ProjectInput{}, fmt.Errorf("%w: invalid request body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(req); err != nil {
		return ProjectInput{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	input := ProjectInput{
		ClientID:    req.ClientID,
		Name:        req.Name,
		BillingRate: req.BillingRate,
		IsActive:    true,
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}
	return input, nil
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeProject(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.CreateProject(r.Context(), input)
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r, "project")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeProject(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.UpdateProject(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update project", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r, "project")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if raw := r.URL.Query().Get("clientId"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			clientID = parsed
		}
	}
	projects, err := h.service.ListProjects(r.Context(), clientID)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func recordID(r *http.Request, label string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s id", httpx.ErrValidation, label)
	}
	return id, nil
}
