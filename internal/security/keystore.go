package security

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gokhangum/gumruk360-sub002/configs"
)

type KeyMaterial struct {
	KeyID  string
	AESKey []byte
}

func NewKeyMaterial(c configs.Config) (*KeyMaterial, error) {
	km, err := LoadKeyMaterial(c)
	return &km, err
}

func LoadKeyMaterial(c configs.Config) (KeyMaterial, error) {
	if c.Vault.AES256B64 == "" {
		return KeyMaterial{}, errors.New("missing vault.aes256_b64url")
	}
	key, err := base64.RawURLEncoding.DecodeString(c.Vault.AES256B64)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("decode aes256_b64url: %w", err)
	}
	if len(key) != 32 {
		return KeyMaterial{}, fmt.Errorf("aes key must be 32 bytes, got %d", len(key))
	}

	id := c.Vault.KeyID
	if id == "" {
		id = "v1"
	}
	return KeyMaterial{KeyID: id, AESKey: key}, nil
}
