package rpc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/internal/rpc"
	"github.com/solwire/solwire/internal/rpc/rpctest"
)

func newClient(t *testing.T, node *rpctest.Node) *rpc.Client {
	t.Helper()
	client, err := rpc.NewClient(rpc.Config{Endpoint: node.URL(), Commitment: "confirmed"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := rpc.NewClient(rpc.Config{})
	assert.Error(t, err)
}

func TestGetSlot(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.HandleResult("getSlot", 271828)

	slot, err := newClient(t, node).GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(271828), slot)
	assert.Equal(t, 1, node.Calls("getSlot"))
}

func TestGetBalanceUnwrapsValue(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.HandleResult("getBalance", map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   1500000000,
	})

	lamports, err := newClient(t, node).GetBalance(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, uint64(1500000000), lamports)
}

func TestNodeErrorIsDistinguishable(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.Handle("getBalance", func([]interface{}) (interface{}, *rpctest.NodeError) {
		return nil, &rpctest.NodeError{Code: -32602, Message: "Invalid param"}
	})

	_, err := newClient(t, node).GetBalance(context.Background(), "addr")
	require.Error(t, err)
	assert.True(t, rpc.IsNodeError(err))
}

func TestTransportErrorIsNotNodeError(t *testing.T) {
	node := rpctest.NewNode()
	node.HandleResult("getSlot", 1)
	client := newClient(t, node)
	node.Close()

	_, err := client.GetSlot(context.Background())
	require.Error(t, err)
	assert.False(t, rpc.IsNodeError(err))
}

func TestGetAccountInfoNullValue(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.HandleResult("getAccountInfo", map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   nil,
	})

	value, err := newClient(t, node).GetAccountInfo(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, "null", string(value))
}

func TestGetSignatureStatusesKeepsNilEntries(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.HandleResult("getSignatureStatuses", map[string]any{
		"context": map[string]any{"slot": 1},
		"value": []any{
			nil,
			map[string]any{"slot": 5, "confirmationStatus": "finalized"},
		},
	})

	statuses, err := newClient(t, node).GetSignatureStatuses(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Nil(t, statuses[0])
	require.NotNil(t, statuses[1])
	assert.Equal(t, "finalized", statuses[1].ConfirmationStatus)
	assert.Equal(t, uint64(5), statuses[1].Slot)
}

func TestGetLatestBlockhash(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.HandleResult("getLatestBlockhash", map[string]any{
		"context": map[string]any{"slot": 1},
		"value": map[string]any{
			"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			"lastValidBlockHeight": 3090,
		},
	})

	bh, err := newClient(t, node).GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", bh.Blockhash)
	assert.Equal(t, uint64(3090), bh.LastValidBlockHeight)
}

func TestSendTransaction(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.HandleResult("sendTransaction", "5sig")

	sig, err := newClient(t, node).SendTransaction(context.Background(), "dGVzdA==")
	require.NoError(t, err)
	assert.Equal(t, "5sig", sig)
}

func TestUnregisteredMethodIsMethodNotFound(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()

	_, err := newClient(t, node).GetHealth(context.Background())
	require.Error(t, err)
	assert.True(t, rpc.IsNodeError(err))
}
