package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/keyformat"
)

// fakeKeyStore is an in-memory AdminStore/KeyStore double. IncrementKeyUsage
// reproduces the storage-level conditional update under a mutex so the
// concurrency tests exercise the same guard as the real store.
type fakeKeyStore struct {
	mu      sync.Mutex
	keys    map[string]*model.LicenseKey // by ID
	lookups int
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]*model.LicenseKey)}
}

func (f *fakeKeyStore) add(key *model.LicenseKey) *model.LicenseKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.MaxUses == 0 {
		key.MaxUses = 1
	}
	key.CreatedAt = time.Now()
	clone := *key
	f.keys[key.ID] = &clone
	return key
}

func (f *fakeKeyStore) FindKeyByValue(ctx context.Context, value string) (*model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, key := range f.keys {
		if key.Key == value {
			clone := *key
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeKeyStore) GetKeyByID(ctx context.Context, id string) (*model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *key
	return &clone, nil
}

func (f *fakeKeyStore) ListValidKeys(ctx context.Context) ([]model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LicenseKey
	for _, key := range f.keys {
		if key.IsValid {
			out = append(out, *key)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) InsertKey(ctx context.Context, key *model.LicenseKey) (*model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.keys {
		if existing.Key == key.Key {
			return nil, database.ErrDuplicateKey
		}
	}
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.MaxUses == 0 {
		key.MaxUses = 1
	}
	clone := *key
	f.keys[key.ID] = &clone
	return key, nil
}

func (f *fakeKeyStore) IncrementKeyUsage(ctx context.Context, id string, consumerID string) (*model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if key.UsedBy != nil || key.UsedCount >= key.MaxUses {
		return nil, database.ErrUsageConflict
	}
	now := time.Now()
	key.UsedCount++
	key.UsedBy = &consumerID
	key.LastUsedAt = &now
	clone := *key
	return &clone, nil
}

func (f *fakeKeyStore) ListKeys(ctx context.Context) ([]model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.LicenseKey, 0, len(f.keys))
	for _, key := range f.keys {
		out = append(out, *key)
	}
	return out, nil
}

func (f *fakeKeyStore) UpdateKey(ctx context.Context, id string, updates map[string]interface{}) (*model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "key":
			key.Key = value.(string)
		case "is_valid":
			key.IsValid = value.(bool)
		case "user_id":
			uid := value.(string)
			key.UserID = &uid
		case "expires_at":
			key.ExpiresAt, _ = value.(*time.Time)
		case "max_uses":
			key.MaxUses = value.(int)
		case "used_count":
			key.UsedCount = value.(int)
		case "used_by":
			key.UsedBy, _ = value.(*string)
		case "last_used_at":
			key.LastUsedAt, _ = value.(*time.Time)
		}
	}
	clone := *key
	return &clone, nil
}

func (f *fakeKeyStore) DeleteKey(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.keys, id)
	return nil
}

func (f *fakeKeyStore) ResetKeyUsage(ctx context.Context, id string) (*model.LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	key.UsedCount = 0
	key.UsedBy = nil
	key.LastUsedAt = nil
	clone := *key
	return &clone, nil
}

func newTestService(store KeyStore) *LicenseService {
	return NewLicenseService(store, LicenseServiceConfig{ScanFallback: true})
}

func TestValidateSuccess(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true, MaxUses: 1})

	svc := newTestService(store)
	result, err := svc.Validate(context.Background(), "abcd1234efgh5678", nil)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.ConsumerID == "" {
		t.Error("expected a consumer ID")
	}
	if result.Key.UsedCount != 1 {
		t.Errorf("UsedCount = %d, want 1", result.Key.UsedCount)
	}
	if result.Key.UsedBy == nil || *result.Key.UsedBy != result.ConsumerID {
		t.Errorf("UsedBy = %v, want %q", result.Key.UsedBy, result.ConsumerID)
	}
	if result.Key.LastUsedAt == nil {
		t.Error("LastUsedAt not set")
	}
}

func TestValidateCanonicalStoredKeyDefaultConfig(t *testing.T) {
	// Keys are written in canonical display form, so validation with default
	// settings must resolve them without relying on the scan fallback.
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: keyformat.Format("TEST-KEY-123456"), IsValid: true, MaxUses: 1})

	svc := NewLicenseService(store, LicenseServiceConfig{})
	result, err := svc.Validate(context.Background(), "TEST-KEY-123456", nil)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.ConsumerID == "" {
		t.Error("expected a consumer ID")
	}
}

func TestValidateSecondUseRejected(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true, MaxUses: 1})

	svc := newTestService(store)
	if _, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil); err != nil {
		t.Fatalf("first Validate failed: %v", err)
	}

	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindAlreadyUsed)
}

func TestValidateConsumedBlocksEvenWithRemainingUses(t *testing.T) {
	store := newFakeKeyStore()
	consumer := "user_123"
	store.add(&model.LicenseKey{
		Key: "ABCD-1234-EFGH-5678", IsValid: true,
		MaxUses: 5, UsedCount: 1, UsedBy: &consumer,
	})

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindAlreadyUsed)
}

func TestValidateUsageLimitReached(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{
		Key: "ABCD-1234-EFGH-5678", IsValid: true,
		MaxUses: 3, UsedCount: 3,
	})

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindUsageLimitReached)
}

func TestValidateExpired(t *testing.T) {
	store := newFakeKeyStore()
	past := time.Now().Add(-time.Hour)
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true, ExpiresAt: &past})

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindKeyExpired)
}

func TestValidateDisabledPrecedesExpired(t *testing.T) {
	store := newFakeKeyStore()
	past := time.Now().Add(-time.Hour)
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: false, ExpiresAt: &past})

	svc := newTestService(store)
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindKeyDisabled)
}

func TestValidateMalformedSkipsStore(t *testing.T) {
	store := newFakeKeyStore()
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), "short", nil)
	assertKind(t, err, KindFormatInvalid)
	if store.lookups != 0 {
		t.Errorf("store was queried %d times for malformed input", store.lookups)
	}
}

func TestValidateNotFound(t *testing.T) {
	store := newFakeKeyStore()
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindKeyNotFound)
}

func TestValidateScanFallback(t *testing.T) {
	store := newFakeKeyStore()
	// Historical record stored with spaces instead of the canonical form.
	store.add(&model.LicenseKey{Key: "abcd 1234 efgh 5678", IsValid: true, MaxUses: 1})

	svc := newTestService(store)
	result, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	if err != nil {
		t.Fatalf("scan fallback lookup failed: %v", err)
	}
	if result.Key.UsedCount != 1 {
		t.Errorf("UsedCount = %d, want 1", result.Key.UsedCount)
	}
}

func TestValidateScanFallbackDisabled(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "abcd 1234 efgh 5678", IsValid: true, MaxUses: 1})

	svc := NewLicenseService(store, LicenseServiceConfig{ScanFallback: false})
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
	assertKind(t, err, KindKeyNotFound)
}

func TestValidateProgressSequenceSuccess(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true, MaxUses: 1})

	svc := newTestService(store)
	var messages []string
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", func(e ProgressEvent) error {
		messages = append(messages, e.Message)
		return nil
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := []string{
		msgAnalyzingFormat,
		msgConnecting,
		msgLookingUp,
		msgKeyFound,
		msgCheckingExpiry,
		msgCheckingUsage,
		msgRecordingUsage,
		msgSuccess,
	}
	if len(messages) != len(want) {
		t.Fatalf("got %d progress messages, want %d: %v", len(messages), len(want), messages)
	}
	for i := range want {
		if messages[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, messages[i], want[i])
		}
	}
}

func TestValidateProgressSequenceDisabled(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: false})

	svc := newTestService(store)
	var events []ProgressEvent
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", func(e ProgressEvent) error {
		events = append(events, e)
		return nil
	})
	assertKind(t, err, KindKeyDisabled)

	// Format, connect, lookup, found, then the error event. No expiry or
	// usage phases after the short-circuit.
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5: %+v", len(events), events)
	}
	last := events[len(events)-1]
	if last.Type != "error" || last.Message != msgKeyDisabled {
		t.Errorf("final event = %+v, want error %q", last, msgKeyDisabled)
	}
}

func TestValidateObserverAborts(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true, MaxUses: 1})

	svc := newTestService(store)
	abort := errors.New("client went away")
	_, err := svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", func(e ProgressEvent) error {
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("err = %v, want observer abort", err)
	}

	// The abort happened before the record phase; nothing was consumed.
	key, _ := store.FindKeyByValue(context.Background(), "ABCD-1234-EFGH-5678")
	if key.UsedCount != 0 {
		t.Errorf("UsedCount = %d after aborted validation, want 0", key.UsedCount)
	}
}

func TestValidateConcurrentSingleUse(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true, MaxUses: 1})

	svc := newTestService(store)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Validate(context.Background(), "ABCD-1234-EFGH-5678", nil)
		}(i)
	}
	wg.Wait()

	passes := 0
	for _, err := range errs {
		if err == nil {
			passes++
			continue
		}
		vErr, ok := AsValidationError(err)
		if !ok {
			t.Fatalf("unexpected error: %v", err)
		}
		if vErr.Kind != KindAlreadyUsed && vErr.Kind != KindUsageLimitReached {
			t.Errorf("unexpected rejection kind %s", vErr.Kind)
		}
	}
	if passes != 1 {
		t.Fatalf("%d validations passed, want exactly 1", passes)
	}

	key, _ := store.FindKeyByValue(context.Background(), "ABCD-1234-EFGH-5678")
	if key.UsedCount != 1 {
		t.Errorf("UsedCount = %d, want 1", key.UsedCount)
	}
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError %s, got %v", want, err)
	}
	if vErr.Kind != want {
		t.Fatalf("error kind = %s, want %s", vErr.Kind, want)
	}
}
