package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeypairRoundTrip(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	require.NoError(t, ValidateAddress(kp.Address()))

	parsed, err := ParsePrivateKey(kp.PrivateKeyBase58())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), parsed.Address())
}

func TestParsePrivateKeySeedForm(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	seed := base58.Encode(ed25519.PrivateKey(kp.priv).Seed())
	parsed, err := ParsePrivateKey(seed)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), parsed.Address())
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePrivateKey("0Ol-not-base58")
	assert.Error(t, err)

	// Valid base58 but the wrong length.
	_, err = ParsePrivateKey(base58.Encode([]byte("short")))
	assert.Error(t, err)
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	message := []byte("payload under signature")
	sig := kp.Sign(message)
	require.Len(t, sig, SignatureLength)
	assert.True(t, ed25519.Verify(kp.pub, message, sig))
}

func TestValidateAddress(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	assert.NoError(t, ValidateAddress(kp.Address()))
	assert.NoError(t, ValidateAddress(SystemProgram))

	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("not-base58-0OIl"))
	assert.Error(t, ValidateAddress(base58.Encode([]byte("too short"))))
}

func TestValidateSignature(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)
	sig := base58.Encode(kp.Sign([]byte("x")))

	assert.NoError(t, ValidateSignature(sig))
	assert.Error(t, ValidateSignature(kp.Address())) // 32 bytes, not 64
	assert.Error(t, ValidateSignature("???"))
}
