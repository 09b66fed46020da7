package model

import (
	"testing"
	"time"
)

func TestLicenseKeyStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	consumer := "user_123"

	tests := []struct {
		name string
		key  LicenseKey
		want KeyStatus
	}{
		{
			name: "fresh key",
			key:  LicenseKey{IsValid: true, MaxUses: 1},
			want: KeyStatusActive,
		},
		{
			name: "disabled",
			key:  LicenseKey{IsValid: false, MaxUses: 1},
			want: KeyStatusDisabled,
		},
		{
			name: "disabled wins over expired",
			key:  LicenseKey{IsValid: false, MaxUses: 1, ExpiresAt: &past},
			want: KeyStatusDisabled,
		},
		{
			name: "expired",
			key:  LicenseKey{IsValid: true, MaxUses: 1, ExpiresAt: &past},
			want: KeyStatusExpired,
		},
		{
			name: "future expiry still active",
			key:  LicenseKey{IsValid: true, MaxUses: 1, ExpiresAt: &future},
			want: KeyStatusActive,
		},
		{
			name: "consumed by a user",
			key:  LicenseKey{IsValid: true, MaxUses: 5, UsedCount: 1, UsedBy: &consumer},
			want: KeyStatusConsumed,
		},
		{
			name: "usage limit hit",
			key:  LicenseKey{IsValid: true, MaxUses: 3, UsedCount: 3},
			want: KeyStatusConsumed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.Status(now); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLicenseKeyIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	noExpiry := LicenseKey{}
	if noExpiry.IsExpired(now) {
		t.Error("key without expiry reported expired")
	}
	expired := LicenseKey{ExpiresAt: &past}
	if !expired.IsExpired(now) {
		t.Error("past expiry not reported expired")
	}
	live := LicenseKey{ExpiresAt: &future}
	if live.IsExpired(now) {
		t.Error("future expiry reported expired")
	}
}

func TestLicenseKeyIsConsumed(t *testing.T) {
	consumer := "user_123"
	unconsumed := LicenseKey{MaxUses: 5, UsedCount: 4}
	if unconsumed.IsConsumed() {
		t.Error("unconsumed key reported consumed")
	}
	consumed := LicenseKey{MaxUses: 5, UsedCount: 1, UsedBy: &consumer}
	if !consumed.IsConsumed() {
		t.Error("key with UsedBy set not reported consumed")
	}
}
