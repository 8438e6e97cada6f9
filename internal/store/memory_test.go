package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/license"
	"keyserve/internal/store"
)

func newRecord(id, key string) *license.Record {
	return &license.Record{
		ID:        id,
		Key:       key,
		KeyName:   license.DefaultKeyName,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_InsertEnforcesKeyUniqueness(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")))
	err := s.Insert(ctx, newRecord("2", "PFIZER-AAAA-BBBB-CCCC-DDDD"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateKey)

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryStore_ConcurrentDuplicateCreateResolvesToOneSuccess(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Insert(ctx, newRecord(string(rune('a'+i)), "PFIZER-RACE-RACE-RACE-RACE"))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrDuplicateKey)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestMemoryStore_FindByKeyAndHWID(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")))

	// Unbound record never matches a pair lookup, even with an empty hwid.
	_, err := s.FindByKeyAndHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "")
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)

	_, err = s.BindHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "dev1", time.Now())
	require.NoError(t, err)

	rec, err := s.FindByKeyAndHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "dev1")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)

	_, err = s.FindByKeyAndHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "dev2")
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestMemoryStore_BindHWIDIsConditional(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")))

	at := time.Now().UTC()
	rec, err := s.BindHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "dev1", at)
	require.NoError(t, err)
	require.NotNil(t, rec.HWID)
	assert.Equal(t, "dev1", *rec.HWID)
	require.NotNil(t, rec.ActivationDate)
	assert.True(t, rec.ActivationDate.Equal(at))

	// Same device rebinds; a different device loses the condition.
	_, err = s.BindHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "dev1", time.Now())
	assert.NoError(t, err)
	_, err = s.BindHWID(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD", "dev2", time.Now())
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{
		"PFIZER-AAAA-AAAA-AAAA-AAAA",
		"PFIZER-BBBB-BBBB-BBBB-BBBB",
		"PFIZER-CCCC-CCCC-CCCC-CCCC",
	} {
		rec := newRecord(key, key)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Insert(ctx, rec))
	}

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "PFIZER-CCCC-CCCC-CCCC-CCCC", records[0].Key)
	assert.Equal(t, "PFIZER-AAAA-AAAA-AAAA-AAAA", records[2].Key)
}

func TestMemoryStore_UpdateAppliesOnlyPresentFields(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")
	rec.ExpiresAt = &expires
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.BindHWID(ctx, rec.Key, "dev1", time.Now())
	require.NoError(t, err)

	notes := "renewed by support"
	updated, err := s.Update(ctx, "1", license.UpdatePatch{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, "renewed by support", updated.Notes)
	assert.True(t, updated.IsActive)
	require.NotNil(t, updated.HWID)
	assert.Equal(t, "dev1", *updated.HWID)
	require.NotNil(t, updated.ExpiresAt)
	assert.True(t, updated.ExpiresAt.Equal(expires))
}

func TestMemoryStore_UpdateClearExpiryAndHWID(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	rec := newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")
	rec.ExpiresAt = &expires
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.BindHWID(ctx, rec.Key, "dev1", time.Now())
	require.NoError(t, err)

	updated, err := s.Update(ctx, "1", license.UpdatePatch{
		SetExpiry: true, // ExpiresAt nil: explicit clear
		ClearHWID: true,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)
	assert.Nil(t, updated.HWID)

	// The key is rebindable again after the admin cleared the hwid.
	_, err = s.BindHWID(ctx, rec.Key, "dev2", time.Now())
	assert.NoError(t, err)
}

func TestMemoryStore_DeleteMissingIsAnError(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")))

	require.NoError(t, s.Delete(ctx, "1"))
	assert.ErrorIs(t, s.Delete(ctx, "1"), apperrors.ErrRecordNotFound)

	// The key is fully released after delete.
	assert.NoError(t, s.Insert(ctx, newRecord("2", "PFIZER-AAAA-BBBB-CCCC-DDDD")))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newRecord("1", "PFIZER-AAAA-BBBB-CCCC-DDDD")))

	rec, err := s.FindByKey(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	rec.IsActive = false
	rec.KeyName = "mutated"

	stored, err := s.FindByKey(ctx, "PFIZER-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Equal(t, license.DefaultKeyName, stored.KeyName)
}
