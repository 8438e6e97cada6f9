package license

import (
	"context"
	"time"
)

const (
	// DefaultKeyName is assigned when an admin creates a key without a display name.
	DefaultKeyName = "Unnamed"

	// MaxKeyNameLength caps the admin-supplied display name.
	MaxKeyNameLength = 100

	// UnlimitedExpiry is the wire sentinel rendered when a record has no expiry.
	UnlimitedExpiry = "Unlimited"

	// expiryDateLayout is the wire format for the expires field.
	expiryDateLayout = "2006-01-02"
)

// Record is the stored license entity. Key is immutable after creation;
// HWID is nil until the first successful activation and is only ever cleared
// by an explicit admin update.
type Record struct {
	ID             string     `json:"id" bson:"_id"`
	Key            string     `json:"key" bson:"key"`
	KeyName        string     `json:"key_name" bson:"key_name"`
	HWID           *string    `json:"hwid" bson:"hwid"`
	IsActive       bool       `json:"is_active" bson:"is_active"`
	ActivationDate *time.Time `json:"activation_date" bson:"activation_date"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at" bson:"expires_at"`
	Notes          string     `json:"notes" bson:"notes"`
}

// Expired reports whether the record's expiry is set and in the past at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// BoundElsewhere reports whether the record is bound to a different device
// than hwid.
func (r *Record) BoundElsewhere(hwid string) bool {
	return r.HWID != nil && *r.HWID != hwid
}

// Data is the public view of a record returned to activating clients.
// Expires is a date string (YYYY-MM-DD) or the "Unlimited" sentinel.
type Data struct {
	Key            string     `json:"key"`
	KeyName        string     `json:"key_name"`
	HWID           *string    `json:"hwid"`
	ActivationDate *time.Time `json:"activation_date"`
	Expires        string     `json:"expires"`
}

// PublicData renders the client-facing view of the record.
func (r *Record) PublicData() *Data {
	expires := UnlimitedExpiry
	if r.ExpiresAt != nil {
		expires = r.ExpiresAt.UTC().Format(expiryDateLayout)
	}
	return &Data{
		Key:            r.Key,
		KeyName:        r.KeyName,
		HWID:           r.HWID,
		ActivationDate: r.ActivationDate,
		Expires:        expires,
	}
}

// UpdatePatch describes a partial admin update. A nil field is left untouched;
// SetExpiry distinguishes "leave expiry alone" from "explicitly set it to
// ExpiresAt" (which may be nil, clearing the expiry). ClearHWID unbinds the
// record from its device; the engine itself never clears HWID.
type UpdatePatch struct {
	KeyName   *string
	IsActive  *bool
	ExpiresAt *time.Time
	SetExpiry bool
	Notes     *string
	ClearHWID bool
}

// Empty reports whether the patch changes nothing.
func (p UpdatePatch) Empty() bool {
	return p.KeyName == nil && p.IsActive == nil && !p.SetExpiry && p.Notes == nil && !p.ClearHWID
}

// Store is the durable record store the engine and the admin manager share.
// Implementations must enforce key uniqueness natively (Insert on an existing
// key returns ErrDuplicateKey, even under concurrent creation) and must make
// BindHWID an atomic conditional write: it binds only while the record's HWID
// is unset or already equals hwid, returning ErrRecordNotFound when the
// condition no longer holds.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByKey(ctx context.Context, key string) (*Record, error)
	FindByKeyAndHWID(ctx context.Context, key, hwid string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	BindHWID(ctx context.Context, key, hwid string, activatedAt time.Time) (*Record, error)
	Deactivate(ctx context.Context, key string) error
	Update(ctx context.Context, id string, patch UpdatePatch) (*Record, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
