package services

import (
	"context"
	"strings"
	"testing"

	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/keyformat"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(DefaultKeyLength)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if key != keyformat.Format(key) {
		t.Errorf("key %q is not in canonical display form", key)
	}
	normalized := keyformat.Normalize(key)
	if len(normalized) != DefaultKeyLength {
		t.Errorf("normalized length = %d, want %d", len(normalized), DefaultKeyLength)
	}
	for _, r := range normalized {
		if !strings.ContainsRune(keyCharset, r) {
			t.Errorf("key contains %q, outside the charset", r)
		}
	}
}

func TestGenerateKeyDistinct(t *testing.T) {
	a, err := GenerateKey(DefaultKeyLength)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	b, err := GenerateKey(DefaultKeyLength)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if keyformat.Normalize(a) == keyformat.Normalize(b) {
		t.Errorf("two generated keys collided: %q", a)
	}
}

func TestIssueUnique(t *testing.T) {
	store := newFakeKeyStore()
	store.add(&model.LicenseKey{Key: "ABCD-1234-EFGH-5678", IsValid: true})

	issuer := NewKeyIssuer(store)
	key, err := issuer.IssueUnique(context.Background(), DefaultKeyLength, DefaultMaxAttempts)
	if err != nil {
		t.Fatalf("IssueUnique failed: %v", err)
	}
	if key != keyformat.Format(key) {
		t.Errorf("issued key %q is not in canonical display form", key)
	}
	if key == "ABCD-1234-EFGH-5678" {
		t.Errorf("issued key collides with an existing record")
	}
}

// collidingStore reports every candidate as already taken.
type collidingStore struct {
	lookups int
}

func (c *collidingStore) FindKeyByValue(ctx context.Context, value string) (*model.LicenseKey, error) {
	c.lookups++
	return &model.LicenseKey{Key: value}, nil
}

func (c *collidingStore) InsertKey(ctx context.Context, key *model.LicenseKey) (*model.LicenseKey, error) {
	return nil, database.ErrDuplicateKey
}

func TestIssueUniqueExhausted(t *testing.T) {
	store := &collidingStore{}
	issuer := NewKeyIssuer(store)

	_, err := issuer.IssueUnique(context.Background(), DefaultKeyLength, DefaultMaxAttempts)
	assertKind(t, err, KindIssuanceExhausted)
	if store.lookups != DefaultMaxAttempts {
		t.Errorf("gave up after %d attempts, want %d", store.lookups, DefaultMaxAttempts)
	}
}
