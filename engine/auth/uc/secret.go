package uc

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
	"golang.org/x/crypto/bcrypt"
)

const secretCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const secretLength = 32

// newSecret generates a prefixed random secret and the matching key record.
// The returned plaintext is never persisted.
func newSecret(prefix string, bcryptCost int, role model.Role, label string) (*model.APIKey, string, error) {
	keyPart := make([]byte, secretLength)
	for i := range keyPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(secretCharset))))
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate random secret: %w", err)
		}
		keyPart[i] = secretCharset[num.Int64()]
	}
	plaintext := prefix + string(keyPart)
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash secret: %w", err)
	}
	fingerprint := sha256.Sum256([]byte(plaintext))
	id, err := core.NewID()
	if err != nil {
		return nil, "", err
	}
	key := &model.APIKey{
		ID:          id,
		Hash:        hash,
		Fingerprint: fingerprint[:],
		Prefix:      prefix,
		Role:        role,
		Label:       label,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	return key, plaintext, nil
}
