package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
)

// CreateLicenseRequest is the admin key-creation payload. ExpiresAt accepts
// RFC 3339 or a plain YYYY-MM-DD date; nil means no expiry.
type CreateLicenseRequest struct {
	Key       string  `json:"key" validate:"required"`
	KeyName   string  `json:"key_name" validate:"max=100"`
	ExpiresAt *string `json:"expires_at"`
	Notes     string  `json:"notes"`
}

// UpdateLicenseRequest is a partial admin update. Absent fields are left
// untouched; expires_at distinguishes absence from an explicit null, which
// clears the expiry. clear_hwid unbinds the record from its device; it is the
// only way a bound key can move, since activation forbids self-service
// re-binding.
type UpdateLicenseRequest struct {
	KeyName   *string         `json:"key_name" validate:"omitempty,max=100"`
	IsActive  *bool           `json:"is_active"`
	ExpiresAt json.RawMessage `json:"expires_at"`
	Notes     *string         `json:"notes"`
	ClearHWID bool            `json:"clear_hwid"`
}

// AdminService implements key lifecycle management. It shares the record
// store with the activation protocol but is otherwise independent of it.
type AdminService interface {
	List(ctx context.Context) ([]license.Record, error)
	Get(ctx context.Context, id string) (*license.Record, error)
	Create(ctx context.Context, req CreateLicenseRequest) (*license.Record, error)
	Update(ctx context.Context, id string, req UpdateLicenseRequest) (*license.Record, error)
	Delete(ctx context.Context, id string) error
}

type adminService struct {
	store    license.Store
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewAdminService creates an admin manager on the shared store.
func NewAdminService(store license.Store, logger *slog.Logger) AdminService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &adminService{
		store:    store,
		logger:   logger.With(slog.String("service", "admin")),
		validate: validator.New(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// List returns all records, newest first.
func (s *adminService) List(ctx context.Context) ([]license.Record, error) {
	return s.store.List(ctx)
}

// Get returns one record by id.
func (s *adminService) Get(ctx context.Context, id string) (*license.Record, error) {
	return s.store.FindByID(ctx, id)
}

// Create validates the key format and inserts a fresh unbound record.
// Duplicate detection is the store's unique constraint, not a pre-check.
func (s *adminService) Create(ctx context.Context, req CreateLicenseRequest) (*license.Record, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}
	if err := license.ValidateKeyFormat(req.Key); err != nil {
		return nil, err
	}

	expiresAt, err := parseExpiry(req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	keyName := req.KeyName
	if keyName == "" {
		keyName = license.DefaultKeyName
	}

	rec := &license.Record{
		ID:        s.newID(),
		Key:       req.Key,
		KeyName:   keyName,
		HWID:      nil,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
		ExpiresAt: expiresAt,
		Notes:     req.Notes,
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "license key created",
		slog.String("id", rec.ID),
		slog.String("key", license.MaskKey(rec.Key)),
		slog.Bool("has_expiry", rec.ExpiresAt != nil),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)
	return rec, nil
}

// Update applies a partial patch. It never recomputes expiry-driven
// deactivation and never touches HWID unless clear_hwid is set.
func (s *adminService) Update(ctx context.Context, id string, req UpdateLicenseRequest) (*license.Record, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}

	patch := license.UpdatePatch{
		KeyName:   req.KeyName,
		IsActive:  req.IsActive,
		Notes:     req.Notes,
		ClearHWID: req.ClearHWID,
	}

	if len(req.ExpiresAt) > 0 {
		patch.SetExpiry = true
		if !bytes.Equal(bytes.TrimSpace(req.ExpiresAt), []byte("null")) {
			var raw string
			if err := json.Unmarshal(req.ExpiresAt, &raw); err != nil {
				return nil, fmt.Errorf("%w: expires_at: %w", apperrors.ErrInvalidRequest, err)
			}
			expiresAt, err := parseExpiry(&raw)
			if err != nil {
				return nil, err
			}
			patch.ExpiresAt = expiresAt
		}
	}

	rec, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "license key updated",
		slog.String("id", id),
		slog.Bool("cleared_hwid", req.ClearHWID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)
	return rec, nil
}

// Delete removes the record unconditionally. Deleting a missing record is a
// caller error, not an idempotent no-op.
func (s *adminService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "license key deleted",
		slog.String("id", id),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)
	return nil
}

// parseExpiry accepts an RFC 3339 timestamp or a plain date. A plain date is
// interpreted as midnight UTC of that day.
func parseExpiry(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, *raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", *raw); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: expires_at must be RFC 3339 or YYYY-MM-DD", apperrors.ErrInvalidRequest)
}
