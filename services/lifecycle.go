package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucasferro/license-server/model"
)

// CheckDisabled rejects keys an administrator has turned off. This check
// runs first: a key that is both disabled and expired reports KEY_DISABLED.
func CheckDisabled(key *model.LicenseKey) error {
	if !key.IsValid {
		return newValidationError(KindKeyDisabled, msgKeyDisabled)
	}
	return nil
}

// CheckExpiry rejects keys whose expiry has passed. Keys without an expiry
// never expire.
func CheckExpiry(key *model.LicenseKey, now time.Time) error {
	if key.IsExpired(now) {
		return newValidationError(KindKeyExpired, msgKeyExpired)
	}
	return nil
}

// CheckUsage enforces the single-consumer lifetime constraint and the usage
// limit, in that order. A set UsedBy blocks validation even when
// UsedCount < MaxUses.
func CheckUsage(key *model.LicenseKey) error {
	if key.IsConsumed() {
		return newValidationError(KindAlreadyUsed, msgAlreadyUsed)
	}
	if key.UsedCount >= key.MaxUses {
		return newValidationError(KindUsageLimitReached, msgUsageLimitReached)
	}
	return nil
}

// NewConsumerID generates the opaque identifier recorded as UsedBy on a
// successful validation. It combines a timestamp with a random suffix;
// the value is informational only, not a uniqueness guarantee.
func NewConsumerID() string {
	return fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
