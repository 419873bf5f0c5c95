package solana

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlockhash(t *testing.T) string {
	t.Helper()
	kp, err := NewKeypair()
	require.NoError(t, err)
	return base58.Encode(kp.PublicKeyBytes()) // any 32-byte base58 value works
}

func TestShortVecRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 300, 16383} {
		buf := appendShortVec(nil, n)
		got, consumed, err := decodeShortVec(buf)
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, len(buf), consumed)
	}
}

func TestDecodeShortVecTruncated(t *testing.T) {
	_, _, err := decodeShortVec([]byte{0x80})
	assert.Error(t, err)
}

func TestBuildTransferMessageLayout(t *testing.T) {
	from, err := NewKeypair()
	require.NoError(t, err)
	to, err := NewKeypair()
	require.NoError(t, err)

	msg, err := BuildTransferMessage(from.Address(), to.Address(), 42, testBlockhash(t))
	require.NoError(t, err)

	// Header: one signer, no readonly signed, one readonly unsigned.
	require.True(t, len(msg) > 3)
	assert.Equal(t, byte(1), msg[0])
	assert.Equal(t, byte(0), msg[1])
	assert.Equal(t, byte(1), msg[2])

	count, n, err := decodeShortVec(msg[3:])
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	keysStart := 3 + n
	assert.Equal(t, from.PublicKeyBytes(), msg[keysStart:keysStart+AddressLength])
	assert.Equal(t, to.PublicKeyBytes(), msg[keysStart+AddressLength:keysStart+2*AddressLength])

	program, _ := base58.Decode(SystemProgram)
	assert.Equal(t, program, msg[keysStart+2*AddressLength:keysStart+3*AddressLength])
}

func TestBuildTransferMessageSelfTransferCollapses(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	msg, err := BuildTransferMessage(kp.Address(), kp.Address(), 1, testBlockhash(t))
	require.NoError(t, err)

	count, _, err := decodeShortVec(msg[3:])
	require.NoError(t, err)
	assert.Equal(t, 2, count) // signer + program, no duplicate slot
}

func TestBuildTransferMessageRejectsBadInput(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)
	blockhash := testBlockhash(t)

	_, err = BuildTransferMessage("bogus", kp.Address(), 1, blockhash)
	assert.Error(t, err)

	_, err = BuildTransferMessage(kp.Address(), "bogus", 1, blockhash)
	assert.Error(t, err)

	_, err = BuildTransferMessage(kp.Address(), kp.Address(), 0, blockhash)
	assert.Error(t, err)

	_, err = BuildTransferMessage(kp.Address(), kp.Address(), 1, "shorthash")
	assert.Error(t, err)
}

func TestSignTransferProducesValidSignature(t *testing.T) {
	from, err := NewKeypair()
	require.NoError(t, err)
	to, err := NewKeypair()
	require.NoError(t, err)

	tx, err := SignTransfer(from, to.Address(), 1_000_000, testBlockhash(t))
	require.NoError(t, err)

	sigCount, n, err := decodeShortVec(tx)
	require.NoError(t, err)
	require.Equal(t, 1, sigCount)

	sig := tx[n : n+SignatureLength]
	message := tx[n+SignatureLength:]
	assert.True(t, ed25519.Verify(from.PublicKeyBytes(), message, sig))
}

// buildTwoSignerTx assembles a serialized transaction with empty signature
// slots for two required signers, the shape the token-creation builder
// returns.
func buildTwoSignerTx(t *testing.T, first, second Keypair) []byte {
	t.Helper()

	program, _ := base58.Decode(SystemProgram)

	var msg []byte
	msg = append(msg, 2, 0, 1)
	msg = appendShortVec(msg, 3)
	msg = append(msg, first.PublicKeyBytes()...)
	msg = append(msg, second.PublicKeyBytes()...)
	msg = append(msg, program...)
	msg = append(msg, bytes.Repeat([]byte{7}, 32)...) // blockhash
	msg = appendShortVec(msg, 0)                      // no instructions needed here

	tx, err := SerializeTransaction(msg, [][]byte{
		make([]byte, SignatureLength),
		make([]byte, SignatureLength),
	})
	require.NoError(t, err)
	return tx
}

func TestSignSerializedFillsSignerSlots(t *testing.T) {
	signer, err := NewKeypair()
	require.NoError(t, err)
	mint, err := NewKeypair()
	require.NoError(t, err)

	raw := buildTwoSignerTx(t, signer, mint)

	// Sign in reverse order; slots must still match account positions.
	signed, err := SignSerialized(raw, []Keypair{mint, signer})
	require.NoError(t, err)

	sigCount, n, err := decodeShortVec(signed)
	require.NoError(t, err)
	require.Equal(t, 2, sigCount)

	message := signed[n+2*SignatureLength:]
	assert.True(t, ed25519.Verify(signer.PublicKeyBytes(), message, signed[n:n+SignatureLength]))
	assert.True(t, ed25519.Verify(mint.PublicKeyBytes(), message, signed[n+SignatureLength:n+2*SignatureLength]))
}

func TestSignSerializedRejectsForeignSigner(t *testing.T) {
	a, err := NewKeypair()
	require.NoError(t, err)
	b, err := NewKeypair()
	require.NoError(t, err)
	stranger, err := NewKeypair()
	require.NoError(t, err)

	raw := buildTwoSignerTx(t, a, b)
	_, err = SignSerialized(raw, []Keypair{stranger})
	assert.Error(t, err)
}

func TestSignSerializedRejectsTruncated(t *testing.T) {
	_, err := SignSerialized([]byte{2, 0}, nil)
	assert.Error(t, err)
}

func TestSignSerializedRejectsVersionedTransaction(t *testing.T) {
	signer, err := NewKeypair()
	require.NoError(t, err)

	// A v0 message carries a version prefix byte with the high bit set where
	// a legacy message carries the required-signer count.
	var msg []byte
	msg = append(msg, 0x80, 1, 0, 1)
	msg = appendShortVec(msg, 2)
	msg = append(msg, signer.PublicKeyBytes()...)
	program, _ := base58.Decode(SystemProgram)
	msg = append(msg, program...)
	msg = append(msg, bytes.Repeat([]byte{7}, 32)...)
	msg = appendShortVec(msg, 0)

	raw, err := SerializeTransaction(msg, [][]byte{make([]byte, SignatureLength)})
	require.NoError(t, err)

	_, err = SignSerialized(raw, []Keypair{signer})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "versioned transactions are not supported")
}
