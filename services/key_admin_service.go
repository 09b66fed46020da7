package services

import (
	"context"
	"errors"
	"time"

	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/keyformat"
)

// AdminStore is the full persistence surface the admin CRUD layer needs
type AdminStore interface {
	IssuerStore
	GetKeyByID(ctx context.Context, id string) (*model.LicenseKey, error)
	ListKeys(ctx context.Context) ([]model.LicenseKey, error)
	UpdateKey(ctx context.Context, id string, updates map[string]interface{}) (*model.LicenseKey, error)
	DeleteKey(ctx context.Context, id string) error
	ResetKeyUsage(ctx context.Context, id string) (*model.LicenseKey, error)
}

// KeyAdminService implements the administrative key operations. It shares
// the normalization rules with the validation path: every key value is
// normalized and re-formatted before it touches the table.
type KeyAdminService struct {
	store  AdminStore
	issuer *KeyIssuer
}

// NewKeyAdminService creates a new admin key service
func NewKeyAdminService(store AdminStore) *KeyAdminService {
	return &KeyAdminService{
		store:  store,
		issuer: NewKeyIssuer(store),
	}
}

// CreateKeyInput carries the admin-supplied fields for key creation.
// Key is optional; when empty a unique key is generated.
type CreateKeyInput struct {
	Key       string
	IsValid   *bool
	UserID    *string
	ExpiresAt *time.Time
	MaxUses   int
}

// CreateKey creates a new license key from an explicit or generated value.
func (s *KeyAdminService) CreateKey(ctx context.Context, input CreateKeyInput) (*model.LicenseKey, error) {
	var formatted string

	if input.Key == "" {
		key, err := s.issuer.IssueUnique(ctx, DefaultKeyLength, DefaultMaxAttempts)
		if err != nil {
			return nil, err
		}
		formatted = key
	} else {
		if !keyformat.IsWellFormed(input.Key) {
			return nil, newValidationError(KindFormatInvalid, msgFormatInvalid)
		}
		formatted = keyformat.Format(input.Key)
		if _, err := s.store.FindKeyByValue(ctx, formatted); err == nil {
			return nil, newValidationError(KindDuplicateKey, msgDuplicateKey)
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	isValid := true
	if input.IsValid != nil {
		isValid = *input.IsValid
	}
	maxUses := input.MaxUses
	if maxUses <= 0 {
		maxUses = 1
	}

	key := &model.LicenseKey{
		Key:       formatted,
		IsValid:   isValid,
		UserID:    input.UserID,
		ExpiresAt: input.ExpiresAt,
		MaxUses:   maxUses,
	}

	created, err := s.store.InsertKey(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return nil, newValidationError(KindDuplicateKey, msgDuplicateKey)
		}
		return nil, err
	}
	return created, nil
}

// ListKeys returns all keys, newest first.
func (s *KeyAdminService) ListKeys(ctx context.Context) ([]model.LicenseKey, error) {
	return s.store.ListKeys(ctx)
}

// GetKey retrieves a key by ID.
func (s *KeyAdminService) GetKey(ctx context.Context, id string) (*model.LicenseKey, error) {
	key, err := s.store.GetKeyByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newValidationError(KindNotFound, msgNotFound)
		}
		return nil, err
	}
	return key, nil
}

// UpdateKeyInput carries the optional fields of a key update. Nil pointers
// leave the corresponding column untouched; ExpiresAt and UsedBy accept
// explicit nulls via the Set* flags.
type UpdateKeyInput struct {
	Key          *string
	IsValid      *bool
	UserID       *string
	ExpiresAt    *time.Time
	SetExpiresAt bool
	MaxUses      *int
	UsedCount    *int
	UsedBy       *string
	SetUsedBy    bool
}

// UpdateKey applies a partial update. A changed key value is renormalized
// and checked for conflicts with other records first.
func (s *KeyAdminService) UpdateKey(ctx context.Context, id string, input UpdateKeyInput) (*model.LicenseKey, error) {
	existing, err := s.GetKey(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if input.Key != nil {
		if !keyformat.IsWellFormed(*input.Key) {
			return nil, newValidationError(KindFormatInvalid, msgFormatInvalid)
		}
		formatted := keyformat.Format(*input.Key)
		if formatted != existing.Key {
			other, err := s.store.FindKeyByValue(ctx, formatted)
			if err == nil && other.ID != id {
				return nil, newValidationError(KindDuplicateKey, msgDuplicateKey)
			}
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return nil, err
			}
		}
		updates["key"] = formatted
	}
	if input.IsValid != nil {
		updates["is_valid"] = *input.IsValid
	}
	if input.UserID != nil {
		updates["user_id"] = *input.UserID
	}
	if input.SetExpiresAt {
		updates["expires_at"] = input.ExpiresAt
	}
	if input.MaxUses != nil {
		updates["max_uses"] = *input.MaxUses
	}
	if input.UsedCount != nil {
		updates["used_count"] = *input.UsedCount
	}
	if input.SetUsedBy {
		updates["used_by"] = input.UsedBy
	}

	if len(updates) == 0 {
		return existing, nil
	}

	updated, err := s.store.UpdateKey(ctx, id, updates)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newValidationError(KindNotFound, msgNotFound)
		}
		if errors.Is(err, database.ErrDuplicateKey) {
			return nil, newValidationError(KindDuplicateKey, msgDuplicateKey)
		}
		return nil, err
	}
	return updated, nil
}

// DeleteKey permanently removes a key.
func (s *KeyAdminService) DeleteKey(ctx context.Context, id string) error {
	if err := s.store.DeleteKey(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return newValidationError(KindNotFound, msgNotFound)
		}
		return err
	}
	return nil
}

// ResetKeyUsage clears usage state so the key can be redeemed again.
// IsValid and ExpiresAt are deliberately retained: reset re-arms the key,
// it does not re-enable or extend it.
func (s *KeyAdminService) ResetKeyUsage(ctx context.Context, id string) (*model.LicenseKey, error) {
	key, err := s.store.ResetKeyUsage(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newValidationError(KindNotFound, msgNotFound)
		}
		return nil, err
	}
	return key, nil
}
