package errors

import (
	"errors"
)

// Sentinel errors for the license protocol. Activation and validation carry
// distinct sentinels on purpose: activation reports precisely why it failed
// (including the wrong-device case), while validation fails closed without
// distinguishing a wrong key from a wrong device.
var (
	// Activation path
	ErrKeyNotFound    = errors.New("key not found")
	ErrKeyDeactivated = errors.New("key is deactivated")
	ErrKeyExpired     = errors.New("key has expired")
	ErrDeviceMismatch = errors.New("key is already activated on another device")

	// Validation path
	ErrLicenseNotFound    = errors.New("license not found")
	ErrLicenseDeactivated = errors.New("license is deactivated")
	ErrLicenseExpired     = errors.New("license has expired")

	// Admin path
	ErrInvalidKeyFormat = errors.New("invalid license key format")
	ErrDuplicateKey     = errors.New("license key already exists")
	ErrRecordNotFound   = errors.New("license record not found")

	// Infrastructure
	ErrStoreUnavailable = errors.New("license store unavailable")
)

// IsBusinessError reports whether err is an expected protocol outcome rather
// than an infrastructure failure. Business outcomes are rendered as HTTP 200
// with an explicit success/valid flag; everything else surfaces as HTTP 500.
func IsBusinessError(err error) bool {
	switch {
	case errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrKeyDeactivated),
		errors.Is(err, ErrKeyExpired),
		errors.Is(err, ErrDeviceMismatch),
		errors.Is(err, ErrLicenseNotFound),
		errors.Is(err, ErrLicenseDeactivated),
		errors.Is(err, ErrLicenseExpired):
		return true
	}
	return false
}

// ClassifyLicenseError categorizes protocol errors for logs and trace spans.
func ClassifyLicenseError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrKeyDeactivated):
		return "key_deactivated"
	case errors.Is(err, ErrKeyExpired):
		return "key_expired"
	case errors.Is(err, ErrDeviceMismatch):
		return "device_mismatch"
	case errors.Is(err, ErrLicenseNotFound):
		return "license_not_found"
	case errors.Is(err, ErrLicenseDeactivated):
		return "license_deactivated"
	case errors.Is(err, ErrLicenseExpired):
		return "license_expired"
	case errors.Is(err, ErrInvalidKeyFormat):
		return "invalid_key_format"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrRecordNotFound):
		return "record_not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "unknown_error"
	}
}
