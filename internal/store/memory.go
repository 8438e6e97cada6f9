package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/license"
)

// MemoryStore is an in-process license.Store. It mirrors the Mongo store's
// semantics exactly (native uniqueness, conditional HWID bind) so engine and
// handler tests exercise the same state machine the server runs in production.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*license.Record
	byKey map[string]*license.Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*license.Record),
		byKey: make(map[string]*license.Record),
	}
}

var _ license.Store = (*MemoryStore)(nil)

// Insert adds rec, failing with ErrDuplicateKey when the key already exists.
// The check and the insert happen under one lock, so a concurrent duplicate
// creation resolves with exactly one success.
func (s *MemoryStore) Insert(ctx context.Context, rec *license.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[rec.Key]; exists {
		return apperrors.ErrDuplicateKey
	}

	cp := cloneRecord(rec)
	s.byID[cp.ID] = cp
	s.byKey[cp.Key] = cp
	return nil
}

// FindByID returns the record with the given id.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*license.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

// FindByKey returns the record with the given key.
func (s *MemoryStore) FindByKey(ctx context.Context, key string) (*license.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byKey[key]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

// FindByKeyAndHWID returns the record matching both key and a non-nil hwid.
func (s *MemoryStore) FindByKeyAndHWID(ctx context.Context, key, hwid string) (*license.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byKey[key]
	if !ok || rec.HWID == nil || *rec.HWID != hwid {
		return nil, apperrors.ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

// List returns all records ordered by creation time, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]license.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]license.Record, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// BindHWID binds key to hwid while the record's HWID is unset or already
// equals hwid, refreshing the activation date. The condition and the write
// are a single critical section.
func (s *MemoryStore) BindHWID(ctx context.Context, key, hwid string, activatedAt time.Time) (*license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byKey[key]
	if !ok || (rec.HWID != nil && *rec.HWID != hwid) {
		return nil, apperrors.ErrRecordNotFound
	}

	h := hwid
	at := activatedAt
	rec.HWID = &h
	rec.ActivationDate = &at
	return cloneRecord(rec), nil
}

// Deactivate flips is_active to false.
func (s *MemoryStore) Deactivate(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byKey[key]
	if !ok {
		return apperrors.ErrRecordNotFound
	}
	rec.IsActive = false
	return nil
}

// Update applies a partial patch to the record with the given id.
func (s *MemoryStore) Update(ctx context.Context, id string, patch license.UpdatePatch) (*license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}

	if patch.KeyName != nil {
		rec.KeyName = *patch.KeyName
	}
	if patch.IsActive != nil {
		rec.IsActive = *patch.IsActive
	}
	if patch.SetExpiry {
		if patch.ExpiresAt != nil {
			at := *patch.ExpiresAt
			rec.ExpiresAt = &at
		} else {
			rec.ExpiresAt = nil
		}
	}
	if patch.Notes != nil {
		rec.Notes = *patch.Notes
	}
	if patch.ClearHWID {
		rec.HWID = nil
	}
	return cloneRecord(rec), nil
}

// Delete removes the record with the given id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return apperrors.ErrRecordNotFound
	}
	delete(s.byID, id)
	delete(s.byKey, rec.Key)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func cloneRecord(rec *license.Record) *license.Record {
	cp := *rec
	if rec.HWID != nil {
		h := *rec.HWID
		cp.HWID = &h
	}
	if rec.ActivationDate != nil {
		at := *rec.ActivationDate
		cp.ActivationDate = &at
	}
	if rec.ExpiresAt != nil {
		at := *rec.ExpiresAt
		cp.ExpiresAt = &at
	}
	return &cp
}
