package ops_test

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/internal/ops"
	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/internal/pumpfun"
	"github.com/solwire/solwire/internal/solana"
)

// unsignedCreateTx mimics what the trade endpoint returns: a serialized
// transaction with two required signers and empty signature slots.
func unsignedCreateTx(t *testing.T, signerAddr, mintAddr string) []byte {
	t.Helper()

	signerKey, err := solana.DecodeAddress(signerAddr)
	require.NoError(t, err)
	mintKey, err := solana.DecodeAddress(mintAddr)
	require.NoError(t, err)
	program, err := base58.Decode(solana.SystemProgram)
	require.NoError(t, err)

	var msg []byte
	msg = append(msg, 2, 0, 1) // two signers, one readonly unsigned
	msg = append(msg, 3)       // account count, single-byte compact-u16
	msg = append(msg, signerKey...)
	msg = append(msg, mintKey...)
	msg = append(msg, program...)
	msg = append(msg, bytes.Repeat([]byte{9}, 32)...) // blockhash
	msg = append(msg, 0)                              // instruction count

	tx, err := solana.SerializeTransaction(msg, [][]byte{
		make([]byte, solana.SignatureLength),
		make([]byte, solana.SignatureLength),
	})
	require.NoError(t, err)
	return tx
}

func mintParams(key string) map[string]any {
	return map[string]any{
		"name":        "Test Token",
		"symbol":      "TEST",
		"description": "a token for tests",
		"amount":      0.1,
		"privateKey":  key,
	}
}

func TestCreateCustomTokenHappyPath(t *testing.T) {
	env := newTestEnv(t, ops.Options{})
	env.node.HandleResult("sendTransaction", "mintSig")

	signer, err := solana.NewKeypair()
	require.NoError(t, err)

	var builtFor pumpfun.CreateRequest
	env.builder.build = func(req pumpfun.CreateRequest) ([]byte, error) {
		builtFor = req
		return unsignedCreateTx(t, req.SignerAddress, req.MintAddress), nil
	}

	result, err := env.execute(t, "createCustomToken", mintParams(signer.PrivateKeyBase58()))
	require.NoError(t, err)

	receipt := result.(ops.MintReceipt)
	assert.Equal(t, "mintSig", receipt.TransactionID)
	assert.Equal(t, env.uploader.uri, receipt.MetadataURI)
	assert.Equal(t, "Test Token", receipt.Name)
	assert.Equal(t, "TEST", receipt.Symbol)
	assert.Equal(t, builtFor.MintAddress, receipt.MintAddress)
	assert.NoError(t, solana.ValidateAddress(receipt.MintAddress))

	assert.Equal(t, signer.Address(), builtFor.SignerAddress)
	assert.Equal(t, env.uploader.uri, builtFor.MetadataURI)
	assert.Equal(t, 0.1, builtFor.DevBuySOL)
	assert.Equal(t, 1, env.node.Calls("sendTransaction"))

	require.Len(t, env.uploader.seen, 1)
	assert.Equal(t, "Test Token", env.uploader.seen[0].Name)
}

func TestCreateCustomTokenUploadFailureAbortsBeforeLedger(t *testing.T) {
	env := newTestEnv(t, ops.Options{})
	env.node.HandleResult("sendTransaction", "neverSent")
	env.uploader.err = assert.AnError

	signer, err := solana.NewKeypair()
	require.NoError(t, err)

	_, err = env.execute(t, "createCustomToken", mintParams(signer.PrivateKeyBase58()))
	require.Error(t, err)
	assert.True(t, operr.IsKind(err, operr.KindMetadataUploadFailed))
	assert.Equal(t, 0, env.builder.calls)
	assert.Equal(t, 0, env.node.Calls("sendTransaction"))
}

func TestCreateCustomTokenBuilderFailure(t *testing.T) {
	env := newTestEnv(t, ops.Options{})
	env.node.HandleResult("sendTransaction", "neverSent")
	// The default fake builder always errors.

	signer, err := solana.NewKeypair()
	require.NoError(t, err)

	_, err = env.execute(t, "createCustomToken", mintParams(signer.PrivateKeyBase58()))
	require.Error(t, err)
	assert.True(t, operr.IsKind(err, operr.KindRemoteCallFailed))
	assert.Equal(t, 0, env.node.Calls("sendTransaction"))
}

func TestCreateCustomTokenRequiresSomeSigningKey(t *testing.T) {
	env := newTestEnv(t, ops.Options{}) // no MintSigningKey configured

	params := mintParams("")
	delete(params, "privateKey")

	_, err := env.execute(t, "createCustomToken", params)
	require.Error(t, err)
	assert.True(t, operr.IsKind(err, operr.KindInvalidParams))
}

func TestCreateCustomTokenFallsBackToConfiguredKey(t *testing.T) {
	signer, err := solana.NewKeypair()
	require.NoError(t, err)

	env := newTestEnv(t, ops.Options{MintSigningKey: signer.PrivateKeyBase58()})
	env.node.HandleResult("sendTransaction", "mintSig")
	env.builder.build = func(req pumpfun.CreateRequest) ([]byte, error) {
		return unsignedCreateTx(t, req.SignerAddress, req.MintAddress), nil
	}

	params := mintParams("")
	delete(params, "privateKey")

	result, err := env.execute(t, "createCustomToken", params)
	require.NoError(t, err)
	assert.Equal(t, "mintSig", result.(ops.MintReceipt).TransactionID)
}
