package services

import (
	"context"
	"log/slog"
	"time"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
)

// LicenseService exposes the activation protocol to the transport layer.
type LicenseService interface {
	Activate(ctx context.Context, key, hwid string) (*license.Data, error)
	Validate(ctx context.Context, key, hwid string) (*license.Data, error)
}

// licenseService implements LicenseService on top of the lifecycle engine.
type licenseService struct {
	engine *license.Engine
	logger *slog.Logger
}

// NewLicenseService creates a license service backed by engine.
func NewLicenseService(engine *license.Engine, logger *slog.Logger) LicenseService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &licenseService{
		engine: engine,
		logger: logger.With(slog.String("service", "license")),
	}
}

// Activate binds key to hwid and returns the record's public view.
func (s *licenseService) Activate(ctx context.Context, key, hwid string) (*license.Data, error) {
	start := time.Now()

	rec, err := s.engine.Activate(ctx, key, hwid)
	if err != nil {
		s.logOutcome(ctx, "activate", key, start, err)
		return nil, err
	}

	s.logOutcome(ctx, "activate", key, start, nil)
	return rec.PublicData(), nil
}

// Validate confirms entitlement for the (key, hwid) pair.
func (s *licenseService) Validate(ctx context.Context, key, hwid string) (*license.Data, error) {
	start := time.Now()

	rec, err := s.engine.Validate(ctx, key, hwid)
	if err != nil {
		s.logOutcome(ctx, "validate", key, start, err)
		return nil, err
	}

	s.logOutcome(ctx, "validate", key, start, nil)
	return rec.PublicData(), nil
}

func (s *licenseService) logOutcome(ctx context.Context, op, key string, start time.Time, err error) {
	attrs := []any{
		slog.String("operation", op),
		slog.String("key", license.MaskKey(key)),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
		slog.Duration("latency", time.Since(start)),
	}
	if err == nil {
		s.logger.InfoContext(ctx, "license operation succeeded", attrs...)
		return
	}

	attrs = append(attrs, slog.String("outcome", apperrors.ClassifyLicenseError(err)))
	if apperrors.IsBusinessError(err) {
		// Expected protocol outcomes are not error-level events.
		s.logger.InfoContext(ctx, "license operation rejected", attrs...)
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.ErrorContext(ctx, "license operation failed", attrs...)
}
