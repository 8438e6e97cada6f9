package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "keyserve/internal/errors"
)

// Engine implements the activate/validate protocol on top of a Store.
// Both operations are idempotent: repeated calls with identical inputs in the
// same record state produce the same outcome.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a lifecycle engine backed by store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		logger: logger.With(slog.String("component", "license_engine")),
		now:    time.Now,
	}
}

// Activate binds key to hwid. The record is looked up by key alone so a key
// bound elsewhere fails with the precise ErrDeviceMismatch. Re-activation on
// the same device succeeds and refreshes the activation date. The final bind
// is an atomic conditional write; losing a concurrent first-activation race
// surfaces as ErrDeviceMismatch.
func (e *Engine) Activate(ctx context.Context, key, hwid string) (*Record, error) {
	rec, err := e.store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, apperrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("activate: lookup %q: %w", key, err)
	}

	if !rec.IsActive {
		return nil, apperrors.ErrKeyDeactivated
	}

	if rec.Expired(e.now()) {
		e.expire(ctx, rec, "activate")
		return nil, apperrors.ErrKeyExpired
	}

	if rec.BoundElsewhere(hwid) {
		return nil, apperrors.ErrDeviceMismatch
	}

	bound, err := e.store.BindHWID(ctx, key, hwid, e.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			// Another device won the bind between our read and the
			// conditional write.
			return nil, apperrors.ErrDeviceMismatch
		}
		return nil, fmt.Errorf("activate: bind %q: %w", key, err)
	}

	e.logger.InfoContext(ctx, "license activated",
		slog.String("key", MaskKey(key)),
		slog.Bool("rebind", rec.HWID != nil),
	)
	return bound, nil
}

// Validate confirms continued entitlement for an already-activated device.
// The lookup requires an exact (key, hwid) pair, so an unbound key or a
// non-matching device both fail with ErrLicenseNotFound and nothing more.
func (e *Engine) Validate(ctx context.Context, key, hwid string) (*Record, error) {
	rec, err := e.store.FindByKeyAndHWID(ctx, key, hwid)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, apperrors.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("validate: lookup %q: %w", key, err)
	}

	if !rec.IsActive {
		return nil, apperrors.ErrLicenseDeactivated
	}

	if rec.Expired(e.now()) {
		e.expire(ctx, rec, "validate")
		return nil, apperrors.ErrLicenseExpired
	}

	return rec, nil
}

// expire commits the lazy-expiry deactivation. The flip must persist even
// though the surrounding call reports failure; a persist error is logged but
// does not change the outcome the caller sees.
func (e *Engine) expire(ctx context.Context, rec *Record, op string) {
	if err := e.store.Deactivate(ctx, rec.Key); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist expiry deactivation",
			slog.String("operation", op),
			slog.String("key", MaskKey(rec.Key)),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.InfoContext(ctx, "license deactivated on expiry",
		slog.String("operation", op),
		slog.String("key", MaskKey(rec.Key)),
		slog.Time("expires_at", *rec.ExpiresAt),
	)
}

// MaskKey redacts the middle groups of a license key for logging.
func MaskKey(key string) string {
	if len(key) <= 11 {
		return "****"
	}
	return key[:7] + "****" + key[len(key)-4:]
}
