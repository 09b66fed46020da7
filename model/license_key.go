package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KeyStatus is the lifecycle state derived from a key's flags. It is never
// stored; the flags on the record are the source of truth.
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusConsumed KeyStatus = "consumed"
	KeyStatusDisabled KeyStatus = "disabled"
	KeyStatusExpired  KeyStatus = "expired"
)

// LicenseKey represents a license key issued to unlock the desktop client.
// The Key column holds the canonical display form (XXXX-XXXX-XXXX-XXXX);
// lookups tolerate both separated and unseparated input.
type LicenseKey struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	Key        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	IsValid    bool       `gorm:"not null;default:true" json:"isValid"`
	UserID     *string    `gorm:"type:varchar(100)" json:"userId"`
	ExpiresAt  *time.Time `gorm:"index" json:"expiresAt"`
	MaxUses    int        `gorm:"not null;default:1" json:"maxUses"`
	UsedCount  int        `gorm:"not null;default:0" json:"usedCount"`
	UsedBy     *string    `gorm:"type:varchar(100)" json:"usedBy"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for LicenseKey
func (LicenseKey) TableName() string {
	return "license_keys"
}

// BeforeCreate hook assigns a UUID primary key
func (k *LicenseKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.MaxUses == 0 {
		k.MaxUses = 1
	}
	return nil
}

// IsExpired reports whether the key's expiry has passed. Keys without an
// expiry never expire.
func (k *LicenseKey) IsExpired(now time.Time) bool {
	if k.ExpiresAt == nil {
		return false
	}
	return k.ExpiresAt.Before(now)
}

// IsConsumed reports whether the key has been bound to a consumer. A set
// UsedBy blocks all future validations regardless of remaining MaxUses.
func (k *LicenseKey) IsConsumed() bool {
	return k.UsedBy != nil
}

// Status derives the lifecycle state from the record's flags, in the same
// precedence the validation checks use.
func (k *LicenseKey) Status(now time.Time) KeyStatus {
	switch {
	case !k.IsValid:
		return KeyStatusDisabled
	case k.IsExpired(now):
		return KeyStatusExpired
	case k.IsConsumed(), k.UsedCount >= k.MaxUses:
		return KeyStatusConsumed
	default:
		return KeyStatusActive
	}
}
