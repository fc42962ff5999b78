package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T) PayloadSealer {
	t.Helper()
	s, err := NewPayloadSealer(&KeyMaterial{KeyID: "v1", AESKey: bytes.Repeat([]byte{0x42}, 32)})
	require.NoError(t, err)
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := testSealer(t)
	payload := []byte(`{"merchant_oid":"ORD123","status":"success"}`)

	sealed, err := s.Seal(payload)
	require.NoError(t, err)
	assert.NotEqual(t, payload, sealed)

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}

func TestOpenRejectsTampering(t *testing.T) {
	s := testSealer(t)
	sealed, err := s.Seal([]byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open([]byte("short"))
	assert.Error(t, err)
}

func TestNewPayloadSealerRejectsBadKey(t *testing.T) {
	_, err := NewPayloadSealer(&KeyMaterial{AESKey: []byte("too-short")})
	assert.Error(t, err)
}
