package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBusinessError(t *testing.T) {
	business := []error{
		ErrKeyNotFound, ErrKeyDeactivated, ErrKeyExpired, ErrDeviceMismatch,
		ErrLicenseNotFound, ErrLicenseDeactivated, ErrLicenseExpired,
	}
	for _, err := range business {
		assert.True(t, IsBusinessError(err), err.Error())
		// Wrapping preserves the classification.
		assert.True(t, IsBusinessError(fmt.Errorf("activate: %w", err)))
	}

	infra := []error{
		ErrStoreUnavailable, ErrRecordNotFound, ErrDuplicateKey,
		ErrInvalidKeyFormat, errors.New("plain failure"),
	}
	for _, err := range infra {
		assert.False(t, IsBusinessError(err), err.Error())
	}
}

func TestClassifyLicenseError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrKeyNotFound, "key_not_found"},
		{ErrKeyExpired, "key_expired"},
		{ErrDeviceMismatch, "device_mismatch"},
		{ErrLicenseExpired, "license_expired"},
		{fmt.Errorf("%w: find: timeout", ErrStoreUnavailable), "store_unavailable"},
		{errors.New("mystery"), "unknown_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLicenseError(tt.err))
	}
}
