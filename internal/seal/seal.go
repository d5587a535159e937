// Package seal encrypts sensitive column values with Fernet symmetric keys
// so flagged data can be exported without exposing the raw values.
package seal

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fernet/fernet-go"

	"github.com/dataguardian/dataguardian/internal/ingest"
)

// KeyEnvVar names the environment variable holding the default Fernet key.
const KeyEnvVar = "DATAGUARDIAN_ENCRYPTION_KEY"

var ErrNoKey = errors.New("no encryption key configured")

// Sealer encrypts values with a Fernet key. The first key encrypts, all keys
// decrypt, so rotation only needs the old keys appended.
type Sealer struct {
	keys []*fernet.Key
}

// New builds a Sealer from encoded Fernet keys.
func New(encodedKeys ...string) (*Sealer, error) {
	if len(encodedKeys) == 0 {
		return nil, ErrNoKey
	}
	keys, err := fernet.DecodeKeys(encodedKeys...)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return &Sealer{keys: keys}, nil
}

// NewFromEnv builds a Sealer from the KeyEnvVar environment variable, which
// may hold several comma-separated keys.
func NewFromEnv() (*Sealer, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnvVar))
	if raw == "" {
		return nil, ErrNoKey
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return New(parts...)
}

// GenerateKey produces a fresh encoded Fernet key.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return key.Encode(), nil
}

// EncryptValue seals a single value.
func (s *Sealer) EncryptValue(value string) (string, error) {
	token, err := fernet.EncryptAndSign([]byte(value), s.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return string(token), nil
}

// DecryptValue opens a sealed value. Returns an error when the token was not
// produced by any of the configured keys.
func (s *Sealer) DecryptValue(token string) (string, error) {
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, s.keys)
	if plain == nil {
		return "", errors.New("token verification failed")
	}
	return string(plain), nil
}

// EncryptColumn seals every non-null cell of the named column in place.
// Unknown columns are a no-op so callers can pass a list of candidates.
func (s *Sealer) EncryptColumn(table *ingest.Table, column string) (int, error) {
	idx := -1
	for i, name := range table.Columns {
		if strings.EqualFold(name, column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, nil
	}

	sealed := 0
	for _, row := range table.Rows {
		if idx >= len(row) || row[idx].IsNull() {
			continue
		}
		token, err := s.EncryptValue(row[idx].Text())
		if err != nil {
			return sealed, err
		}
		row[idx] = ingest.String(token)
		sealed++
	}
	return sealed, nil
}
