package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/services"
)

// Client actions accepted by the activation endpoint. Anything else is an
// invalid request, not a fall-through.
const (
	ActionActivate = "activate"
	ActionValidate = "validate"
)

// LicenseHandler handles the public license protocol endpoint.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
		tracer:  otel.Tracer("license-handler"),
	}
}

// LicenseRequest is the activation/validation payload.
type LicenseRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	HWID   string `json:"hwid"`
}

// ActivateResponse is the wire shape for activation outcomes.
type ActivateResponse struct {
	Success     bool          `json:"success"`
	KeyName     string        `json:"key_name,omitempty"`
	LicenseData *license.Data `json:"license_data,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ValidateResponse is the wire shape for validation outcomes.
type ValidateResponse struct {
	Valid       bool          `json:"valid"`
	KeyName     string        `json:"key_name,omitempty"`
	LicenseData *license.Data `json:"license_data,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Routes returns a chi router for the license protocol endpoint.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Handle)
	return r
}

// Handle dispatches POST /api/licenses on the request's action field.
func (h *LicenseHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &LicenseRequest{}
	if err := render.Decode(r, req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode license request",
			slog.String("error", err.Error()))
		h.badRequest(w, r, "Invalid request body")
		return
	}

	if req.Action == "" || req.Key == "" {
		h.badRequest(w, r, "Missing required fields: action and key")
		return
	}

	ctx, span := h.tracer.Start(ctx, "license_handler."+req.Action,
		trace.WithAttributes(
			attribute.String("http.route", "/api/licenses"),
			attribute.String("license.action", req.Action),
			attribute.String("license.key_prefix", license.MaskKey(req.Key)),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	switch req.Action {
	case ActionActivate:
		h.activate(w, r, req)
	case ActionValidate:
		h.validate(w, r, req)
	default:
		span.SetAttributes(attribute.String("error.type", "unknown_action"))
		h.badRequest(w, r, "Unknown action")
	}
}

func (h *LicenseHandler) activate(w http.ResponseWriter, r *http.Request, req *LicenseRequest) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	data, err := h.service.Activate(ctx, req.Key, req.HWID)
	if err != nil {
		span.SetAttributes(attribute.String("license.result", apperrors.ClassifyLicenseError(err)))
		if apperrors.IsBusinessError(err) {
			render.JSON(w, r, ActivateResponse{Success: false, Error: err.Error()})
			return
		}
		h.internalError(w, r, err, ActivateResponse{Success: false, Error: "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("license.result", "activated"))
	render.JSON(w, r, ActivateResponse{
		Success:     true,
		KeyName:     data.KeyName,
		LicenseData: data,
	})
}

func (h *LicenseHandler) validate(w http.ResponseWriter, r *http.Request, req *LicenseRequest) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	data, err := h.service.Validate(ctx, req.Key, req.HWID)
	if err != nil {
		span.SetAttributes(attribute.String("license.result", apperrors.ClassifyLicenseError(err)))
		if apperrors.IsBusinessError(err) {
			render.JSON(w, r, ValidateResponse{Valid: false, Error: err.Error()})
			return
		}
		h.internalError(w, r, err, ValidateResponse{Valid: false, Error: "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("license.result", "valid"))
	render.JSON(w, r, ValidateResponse{
		Valid:       true,
		KeyName:     data.KeyName,
		LicenseData: data,
	})
}

func (h *LicenseHandler) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ActivateResponse{Success: false, Error: msg})
}

// internalError logs the failure in full and returns only a generic message.
func (h *LicenseHandler) internalError(w http.ResponseWriter, r *http.Request, err error, body interface{}) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, "license request failed",
		slog.String("error", err.Error()),
		slog.String("error_type", apperrors.ClassifyLicenseError(err)),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
		slog.String("path", r.URL.Path),
	)

	if span := trace.SpanFromContext(ctx); span != nil {
		span.RecordError(err)
	}

	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, body)
}
