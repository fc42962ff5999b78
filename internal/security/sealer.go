package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// PayloadSealer encrypts raw provider payloads before they land in the
// ledger and audit tables. Webhook bodies can carry customer PII, so they
// never hit disk in the clear.
type PayloadSealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type aeadSealer struct {
	aead      cipher.AEAD // AES-256-GCM
	nonceSize int
}

func NewPayloadSealer(km *KeyMaterial) (PayloadSealer, error) {
	if len(km.AESKey) != 32 {
		return nil, fmt.Errorf("aes key must be 32 bytes, got %d", len(km.AESKey))
	}
	block, err := aes.NewCipher(km.AESKey)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &aeadSealer{aead: aead, nonceSize: aead.NonceSize()}, nil
}

func (s *aeadSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.aead.Seal(nil, nonce, plaintext, nil)

	// concat: nonce || ct
	out := make([]byte, 0, len(nonce)+len(ct))
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

func (s *aeadSealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.nonceSize+s.aead.Overhead() {
		return nil, errors.New("sealed payload too short")
	}
	nonce := sealed[:s.nonceSize]
	ct := sealed[s.nonceSize:]
	pt, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return pt, nil
}
