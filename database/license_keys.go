package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucasferro/license-server/model"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no record matches the lookup
	ErrNotFound = errors.New("license key not found")
	// ErrDuplicateKey is returned when inserting a key value that already exists
	ErrDuplicateKey = errors.New("license key already exists")
	// ErrUsageConflict is returned when the conditional usage increment
	// matched no row: the key was consumed or exhausted concurrently
	ErrUsageConflict = errors.New("license key usage conflict")
)

// FindKeyByValue looks up a key by the literal stored string.
func (s *GORMStore) FindKeyByValue(ctx context.Context, value string) (*model.LicenseKey, error) {
	var key model.LicenseKey
	if err := s.db.WithContext(ctx).Where("key = ?", value).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find license key: %w", err)
	}
	return &key, nil
}

// GetKeyByID retrieves a key by its primary key.
func (s *GORMStore) GetKeyByID(ctx context.Context, id string) (*model.LicenseKey, error) {
	var key model.LicenseKey
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get license key: %w", err)
	}
	return &key, nil
}

// ListKeys returns all keys, newest first.
func (s *GORMStore) ListKeys(ctx context.Context) ([]model.LicenseKey, error) {
	var keys []model.LicenseKey
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list license keys: %w", err)
	}
	return keys, nil
}

// ListValidKeys returns all keys with is_valid = true. Used by the scan
// fallback path when exact lookup misses.
func (s *GORMStore) ListValidKeys(ctx context.Context) ([]model.LicenseKey, error) {
	var keys []model.LicenseKey
	if err := s.db.WithContext(ctx).Where("is_valid = ?", true).Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list valid license keys: %w", err)
	}
	return keys, nil
}

// InsertKey persists a new key record.
func (s *GORMStore) InsertKey(ctx context.Context, key *model.LicenseKey) (*model.LicenseKey, error) {
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to create license key: %w", err)
	}
	return key, nil
}

// UpdateKey applies a partial update and returns the fresh record.
func (s *GORMStore) UpdateKey(ctx context.Context, id string, updates map[string]interface{}) (*model.LicenseKey, error) {
	result := s.db.WithContext(ctx).
		Model(&model.LicenseKey{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to update license key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetKeyByID(ctx, id)
}

// DeleteKey permanently deletes a key.
func (s *GORMStore) DeleteKey(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.LicenseKey{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete license key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetKeyUsage clears usage state so the key can be redeemed again.
// IsValid and ExpiresAt are left untouched.
func (s *GORMStore) ResetKeyUsage(ctx context.Context, id string) (*model.LicenseKey, error) {
	return s.UpdateKey(ctx, id, map[string]interface{}{
		"used_count":   0,
		"used_by":      nil,
		"last_used_at": nil,
	})
}

// IncrementKeyUsage atomically records a successful validation. The guard
// on used_by and used_count makes two concurrent validations of the same
// single-use key impossible: the UPDATE only matches a row that is still
// unconsumed and under its limit, so the loser sees zero rows affected and
// gets ErrUsageConflict.
func (s *GORMStore) IncrementKeyUsage(ctx context.Context, id string, consumerID string) (*model.LicenseKey, error) {
	now := time.Now()

	result := s.db.WithContext(ctx).
		Model(&model.LicenseKey{}).
		Where("id = ? AND used_by IS NULL AND used_count < max_uses", id).
		Updates(map[string]interface{}{
			"used_count":   gorm.Expr("used_count + 1"),
			"used_by":      consumerID,
			"last_used_at": now,
		})

	if result.Error != nil {
		return nil, fmt.Errorf("failed to record license key usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUsageConflict
	}

	return s.GetKeyByID(ctx, id)
}
