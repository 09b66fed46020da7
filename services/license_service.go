package services

import (
	"context"
	"errors"
	"time"

	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/keyformat"
)

// KeyStore is the persistence surface the validation path needs. GORMStore
// satisfies it; tests plug in an in-memory double.
type KeyStore interface {
	FindKeyByValue(ctx context.Context, value string) (*model.LicenseKey, error)
	GetKeyByID(ctx context.Context, id string) (*model.LicenseKey, error)
	ListValidKeys(ctx context.Context) ([]model.LicenseKey, error)
	IncrementKeyUsage(ctx context.Context, id string, consumerID string) (*model.LicenseKey, error)
}

// LicenseServiceConfig tunes validation behavior
type LicenseServiceConfig struct {
	// PhaseDelay paces progress messages for UI streaming. Zero (the
	// default) emits them back to back.
	PhaseDelay time.Duration

	// ScanFallback enables the O(n) normalized-compare lookup over all
	// valid keys when exact lookup misses. Needed only while historical
	// records stored in inconsistent formats remain in the table.
	ScanFallback bool
}

// LicenseService orchestrates key validation: normalize, resolve, apply the
// lifecycle checks, record consumption.
type LicenseService struct {
	store KeyStore
	cfg   LicenseServiceConfig
}

// NewLicenseService creates a new license validation service
func NewLicenseService(store KeyStore, cfg LicenseServiceConfig) *LicenseService {
	return &LicenseService{store: store, cfg: cfg}
}

// ValidationResult is returned on a successful validation
type ValidationResult struct {
	ConsumerID string
	Key        *model.LicenseKey
}

// Progress messages, in emission order. The exact strings are part of the
// user-facing contract with the desktop client.
const (
	msgAnalyzingFormat = "Analyzing key format…"
	msgConnecting      = "Connecting to data store…"
	msgLookingUp       = "Looking up key…"
	msgKeyFound        = "Key found. Checking status…"
	msgCheckingExpiry  = "Checking expiration…"
	msgCheckingUsage   = "Checking usage limit…"
	msgRecordingUsage  = "Recording usage…"
	msgSuccess         = "Validation completed successfully!"
)

// Validate checks rawKey against the store and, on success, atomically
// records the consumption and returns the generated consumer identifier.
// Failures are *ValidationError values; anything else is an infrastructure
// fault from the store or the progress callback.
func (s *LicenseService) Validate(ctx context.Context, rawKey string, onProgress ProgressCallback) (*ValidationResult, error) {
	if err := s.emit(ctx, onProgress, "format", msgAnalyzingFormat); err != nil {
		return nil, err
	}

	if !keyformat.IsWellFormed(rawKey) {
		return nil, s.fail(onProgress, "format", newValidationError(KindFormatInvalid, msgFormatInvalid))
	}

	normalized := keyformat.Normalize(rawKey)
	formatted := keyformat.Format(rawKey)

	if err := s.emit(ctx, onProgress, "connect", msgConnecting); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, onProgress, "lookup", msgLookingUp); err != nil {
		return nil, err
	}

	key, err := s.resolve(ctx, formatted, normalized)
	if err != nil {
		if vErr, ok := AsValidationError(err); ok {
			return nil, s.fail(onProgress, "lookup", vErr)
		}
		return nil, err
	}

	if err := s.emit(ctx, onProgress, "status", msgKeyFound); err != nil {
		return nil, err
	}
	if err := CheckDisabled(key); err != nil {
		return nil, s.fail(onProgress, "status", err.(*ValidationError))
	}

	if err := s.emit(ctx, onProgress, "expiry", msgCheckingExpiry); err != nil {
		return nil, err
	}
	if err := CheckExpiry(key, time.Now()); err != nil {
		return nil, s.fail(onProgress, "expiry", err.(*ValidationError))
	}

	if err := s.emit(ctx, onProgress, "usage", msgCheckingUsage); err != nil {
		return nil, err
	}
	if err := CheckUsage(key); err != nil {
		return nil, s.fail(onProgress, "usage", err.(*ValidationError))
	}

	if err := s.emit(ctx, onProgress, "record", msgRecordingUsage); err != nil {
		return nil, err
	}

	consumerID := NewConsumerID()
	updated, err := s.store.IncrementKeyUsage(ctx, key.ID, consumerID)
	if err != nil {
		if errors.Is(err, database.ErrUsageConflict) {
			// Lost the race against a concurrent validation. Re-read to
			// report the reason the conditional update no longer matches.
			return nil, s.fail(onProgress, "record", s.conflictReason(ctx, key.ID))
		}
		return nil, err
	}

	if onProgress != nil {
		if err := onProgress(ProgressEvent{
			Type:      "complete",
			Phase:     "done",
			Message:   msgSuccess,
			Timestamp: time.Now(),
		}); err != nil {
			return nil, err
		}
	}

	return &ValidationResult{ConsumerID: consumerID, Key: updated}, nil
}

// resolve looks the key up by its formatted value, then its normalized
// value, then (when enabled) by scanning all valid records and comparing
// normalized forms. The scan defends against historical records stored in
// inconsistent formats.
func (s *LicenseService) resolve(ctx context.Context, formatted, normalized string) (*model.LicenseKey, error) {
	key, err := s.store.FindKeyByValue(ctx, formatted)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	key, err = s.store.FindKeyByValue(ctx, normalized)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if s.cfg.ScanFallback {
		keys, err := s.store.ListValidKeys(ctx)
		if err != nil {
			return nil, err
		}
		for i := range keys {
			if keyformat.Normalize(keys[i].Key) == normalized {
				return &keys[i], nil
			}
		}
	}

	return nil, newValidationError(KindKeyNotFound, msgKeyNotFound)
}

// conflictReason maps a usage-increment conflict back onto the lifecycle
// kind the concurrent winner produced.
func (s *LicenseService) conflictReason(ctx context.Context, id string) *ValidationError {
	key, err := s.store.GetKeyByID(ctx, id)
	if err == nil {
		if vErr, ok := AsValidationError(CheckUsage(key)); ok {
			return vErr
		}
	}
	return newValidationError(KindAlreadyUsed, msgAlreadyUsed)
}

// emit sends a progress event and applies the configured phase delay.
func (s *LicenseService) emit(ctx context.Context, onProgress ProgressCallback, phase, message string) error {
	if onProgress == nil {
		return nil
	}
	if err := onProgress(ProgressEvent{
		Type:      "progress",
		Phase:     phase,
		Message:   message,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}
	if s.cfg.PhaseDelay > 0 {
		timer := time.NewTimer(s.cfg.PhaseDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// fail relays the failure message to the observer before returning the
// rejection. Observer failures do not mask the rejection.
func (s *LicenseService) fail(onProgress ProgressCallback, phase string, vErr *ValidationError) error {
	if onProgress != nil {
		_ = onProgress(ProgressEvent{
			Type:      "error",
			Phase:     phase,
			Message:   vErr.Message,
			Timestamp: time.Now(),
		})
	}
	return vErr
}
