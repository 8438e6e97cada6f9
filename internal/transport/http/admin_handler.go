package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/services"
)

// AdminHandler handles the authenticated admin CRUD surface.
type AdminHandler struct {
	service services.AdminService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service services.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
	}
}

// AdminMutationResponse is the wire shape for create and update outcomes.
type AdminMutationResponse struct {
	Success bool            `json:"success"`
	License *license.Record `json:"license,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Routes returns a chi router for the admin endpoints. Auth is applied by the
// caller so the handler stays testable without credentials.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// List handles GET /admin: all records, newest first, as a JSON array.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list", err)
		return
	}
	render.JSON(w, r, records)
}

// Get handles GET /admin/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			h.notFound(w, r)
			return
		}
		h.internalError(w, r, "get", err)
		return
	}
	render.JSON(w, r, rec)
}

// Create handles POST /admin. Format violations and duplicates are HTTP 400.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := services.CreateLicenseRequest{}
	if err := render.Decode(r, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, AdminMutationResponse{Success: false, Error: "Invalid request body"})
		return
	}

	rec, err := h.service.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidKeyFormat):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, AdminMutationResponse{Success: false, Error: apperrors.ErrInvalidKeyFormat.Error()})
		case errors.Is(err, apperrors.ErrInvalidRequest):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, AdminMutationResponse{Success: false, Error: apperrors.ErrInvalidRequest.Error()})
		case errors.Is(err, apperrors.ErrDuplicateKey):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, AdminMutationResponse{Success: false, Error: apperrors.ErrDuplicateKey.Error()})
		default:
			h.internalError(w, r, "create", err)
		}
		return
	}

	render.JSON(w, r, AdminMutationResponse{Success: true, License: rec})
}

// Update handles PUT /admin/{id}: a partial update; absent fields stay
// untouched.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	req := services.UpdateLicenseRequest{}
	if err := render.Decode(r, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, AdminMutationResponse{Success: false, Error: "Invalid request body"})
		return
	}

	rec, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRecordNotFound):
			h.notFound(w, r)
		case errors.Is(err, apperrors.ErrInvalidRequest):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, AdminMutationResponse{Success: false, Error: err.Error()})
		default:
			h.internalError(w, r, "update", err)
		}
		return
	}

	render.JSON(w, r, AdminMutationResponse{Success: true, License: rec})
}

// Delete handles DELETE /admin/{id}. Deleting a missing record is a 404.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			h.notFound(w, r)
			return
		}
		h.internalError(w, r, "delete", err)
		return
	}

	render.JSON(w, r, AdminMutationResponse{Success: true})
}

func (h *AdminHandler) notFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, AdminMutationResponse{Success: false, Error: apperrors.ErrRecordNotFound.Error()})
}

func (h *AdminHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, "admin request failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, AdminMutationResponse{Success: false, Error: "Internal server error"})
}
