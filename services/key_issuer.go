package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/keyformat"
)

const (
	// keyCharset is the alphabet keys are drawn from
	keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// DefaultKeyLength is the number of characters in a generated key
	DefaultKeyLength = 16
	// DefaultMaxAttempts bounds the retry loop when generated keys collide
	DefaultMaxAttempts = 10
)

// IssuerStore is the persistence surface key issuance needs
type IssuerStore interface {
	FindKeyByValue(ctx context.Context, value string) (*model.LicenseKey, error)
	InsertKey(ctx context.Context, key *model.LicenseKey) (*model.LicenseKey, error)
}

// KeyIssuer generates unique, correctly formatted license keys
type KeyIssuer struct {
	store IssuerStore
}

// NewKeyIssuer creates a new key issuer
func NewKeyIssuer(store IssuerStore) *KeyIssuer {
	return &KeyIssuer{store: store}
}

// GenerateKey produces length characters drawn uniformly from [A-Z0-9]
// using crypto/rand, formatted into 4-character blocks. Predictable keys
// would let anyone mint valid licenses, so math/rand is not an option here.
func GenerateKey(length int) (string, error) {
	if length <= 0 {
		length = DefaultKeyLength
	}

	charsetLen := big.NewInt(int64(len(keyCharset)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random key character: %w", err)
		}
		buf[i] = keyCharset[n.Int64()]
	}

	return keyformat.Format(string(buf)), nil
}

// IssueUnique generates keys until one does not collide with a stored
// record, up to maxAttempts. The returned key is formatted but not yet
// persisted; callers insert it themselves.
func (i *KeyIssuer) IssueUnique(ctx context.Context, length, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		key, err := GenerateKey(length)
		if err != nil {
			return "", err
		}

		_, err = i.store.FindKeyByValue(ctx, key)
		if errors.Is(err, database.ErrNotFound) {
			return key, nil
		}
		if err != nil {
			return "", err
		}
		// Collision; try again.
	}

	return "", newValidationError(KindIssuanceExhausted, msgIssuanceExhausted)
}
