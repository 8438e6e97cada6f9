package license_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyserve/internal/license"
)

func TestRecord_Expired(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry never expires", nil, false},
		{"future expiry", &future, false},
		{"past expiry", &past, true},
		{"exact boundary is not expired", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &license.Record{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, rec.Expired(now))
		})
	}
}

func TestRecord_BoundElsewhere(t *testing.T) {
	hwid := "dev1"

	unbound := &license.Record{}
	assert.False(t, unbound.BoundElsewhere("dev1"), "unbound record conflicts with nothing")

	bound := &license.Record{HWID: &hwid}
	assert.False(t, bound.BoundElsewhere("dev1"))
	assert.True(t, bound.BoundElsewhere("dev2"))
	assert.True(t, bound.BoundElsewhere(""))
}

func TestRecord_PublicData(t *testing.T) {
	hwid := "dev1"
	activated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	expires := time.Date(2026, 6, 30, 23, 59, 0, 0, time.UTC)

	rec := &license.Record{
		Key:            "PFIZER-AB12-CD34-EF56-GH78",
		KeyName:        "Customer A",
		HWID:           &hwid,
		ActivationDate: &activated,
		ExpiresAt:      &expires,
		Notes:          "internal note",
	}

	data := rec.PublicData()
	assert.Equal(t, rec.Key, data.Key)
	assert.Equal(t, "Customer A", data.KeyName)
	require.NotNil(t, data.HWID)
	assert.Equal(t, "dev1", *data.HWID)
	assert.Equal(t, "2026-06-30", data.Expires)
}

func TestRecord_PublicData_UnlimitedExpiry(t *testing.T) {
	rec := &license.Record{Key: "PFIZER-AB12-CD34-EF56-GH78"}

	data := rec.PublicData()
	assert.Equal(t, license.UnlimitedExpiry, data.Expires)
	assert.Nil(t, data.HWID)
	assert.Nil(t, data.ActivationDate)
}

func TestUpdatePatch_Empty(t *testing.T) {
	assert.True(t, license.UpdatePatch{}.Empty())

	name := "x"
	assert.False(t, license.UpdatePatch{KeyName: &name}.Empty())
	assert.False(t, license.UpdatePatch{SetExpiry: true}.Empty())
	assert.False(t, license.UpdatePatch{ClearHWID: true}.Empty())
}
