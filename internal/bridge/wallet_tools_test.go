package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kingraph/internal/graph"
	"kingraph/internal/wallet"
)

func grantPerson(t *testing.T, store *graph.Store, name, walletAddress string) *graph.Node {
	t.Helper()
	node, err := store.Create(graph.KindPerson, &graph.Node{
		Name:   name,
		Person: &graph.PersonData{WalletAddress: walletAddress},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetLLMAccessible(node.ID, true))
	return node
}

func TestTransferPreviewDoesNotMoveFunds(t *testing.T) {
	b, store, w := newTestBridge(t)
	w.balance = 2 * wallet.LamportsPerSOL
	w.fee = 5000
	alice := grantPerson(t, store, "Alice", testAddress(7))

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": "Alice",
		"amount":    0.5,
	})
	require.False(t, env.IsError, env.FirstText())
	assert.Contains(t, env.FirstText(), "Transfer preview")
	assert.Contains(t, env.FirstText(), "0.5 SOL")
	assert.Contains(t, env.FirstText(), "Alice")
	assert.Contains(t, env.FirstText(), "0.000005 SOL")
	assert.Contains(t, env.FirstText(), "execute=true")
	assert.Empty(t, w.sends, "preview must not submit anything")

	got, err := store.Get(alice.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Person.TotalTransactions)
}

func TestTransferExecuteSendsAndMarksNode(t *testing.T) {
	b, store, w := newTestBridge(t)
	w.balance = 2 * wallet.LamportsPerSOL
	w.fee = 5000
	w.signature = "4confirmedSig"
	alice := grantPerson(t, store, "Alice", testAddress(7))

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": "Alice",
		"amount":    0.5,
		"execute":   true,
	})
	require.False(t, env.IsError, env.FirstText())
	assert.Contains(t, env.FirstText(), "Sent 0.5 SOL")
	assert.Contains(t, env.FirstText(), "4confirmedSig")

	require.Len(t, w.sends, 1)
	assert.Equal(t, testAddress(7), w.sends[0].recipient)
	assert.Equal(t, uint64(wallet.LamportsPerSOL/2), w.sends[0].lamports)

	got, err := store.Get(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Person.TotalTransactions)
	assert.NotNil(t, got.Person.LastTransactionDate)
}

func TestTransferInsufficientBalance(t *testing.T) {
	b, store, w := newTestBridge(t)
	w.balance = toLamports(0.05)
	w.fee = 5000
	grantPerson(t, store, "Alice", testAddress(7))

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": "Alice",
		"amount":    1.0,
		"execute":   true,
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "Insufficient balance")
	assert.Empty(t, w.sends, "doomed transfer must never reach the network")
}

func TestTransferToRawAddress(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.balance = wallet.LamportsPerSOL

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": testAddress(9),
		"amount":    0.1,
	})
	require.False(t, env.IsError, env.FirstText())
	assert.Contains(t, env.FirstText(), testAddress(9))
}

func TestTransferRecipientResolutionFailures(t *testing.T) {
	b, store, w := newTestBridge(t)
	w.balance = wallet.LamportsPerSOL
	noWallet, err := store.Create(graph.KindPerson, &graph.Node{
		Name:   "Bob",
		Person: &graph.PersonData{},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetLLMAccessible(noWallet.ID, true))

	// Accessible but without a wallet address on file.
	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": "Bob",
		"amount":    0.1,
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "no wallet address")

	// Not accessible at all.
	env = b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": "Mallory",
		"amount":    0.1,
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "Could not resolve")
}

func TestTransferHiddenPersonNotResolvable(t *testing.T) {
	b, store, w := newTestBridge(t)
	w.balance = wallet.LamportsPerSOL
	hidden, err := store.Create(graph.KindPerson, &graph.Node{
		Name:   "Carol",
		Person: &graph.PersonData{WalletAddress: testAddress(5)},
	})
	require.NoError(t, err)
	_ = hidden // exists in the graph but was never granted access

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": "Carol",
		"amount":    0.1,
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "Could not resolve")
}

func TestTransferRejectsBadAmounts(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.balance = wallet.LamportsPerSOL

	for _, amount := range []any{-1.0, 0.0, "not a number"} {
		env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
			"recipient": testAddress(9),
			"amount":    amount,
		})
		assert.True(t, env.IsError, "amount %v", amount)
	}
}

func TestTransferNotConnected(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.state = wallet.StateDisconnected

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": testAddress(9),
		"amount":    0.1,
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "not connected")
}

func TestTransferSendFailure(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.balance = wallet.LamportsPerSOL
	w.sendErr = errors.New("user rejected the request")

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": testAddress(9),
		"amount":    0.1,
		"execute":   true,
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "user rejected")
}

func TestGetWalletAddress(t *testing.T) {
	b, _, w := newTestBridge(t)

	env := b.Dispatch(context.Background(), "get_wallet_address", nil)
	require.False(t, env.IsError)
	assert.Contains(t, env.FirstText(), w.address)
}

func TestValidateWalletAddress(t *testing.T) {
	b, _, _ := newTestBridge(t)

	env := b.Dispatch(context.Background(), "validate_wallet_address", map[string]any{
		"address": testAddress(3),
	})
	require.False(t, env.IsError)
	assert.Contains(t, env.FirstText(), "is a valid")

	env = b.Dispatch(context.Background(), "validate_wallet_address", map[string]any{
		"address": "definitely-not-base58!",
	})
	require.False(t, env.IsError)
	assert.Contains(t, env.FirstText(), "is not a valid")
}

func TestTransactionHistoryFormatting(t *testing.T) {
	b, _, w := newTestBridge(t)
	blockTime := int64(1756400000)
	w.history = []wallet.TransactionRecord{
		{Signature: "sigOne", BlockTime: &blockTime},
		{Signature: "sigTwo", Err: []byte(`{"InstructionError":[0,"Custom"]}`)},
	}

	env := b.Dispatch(context.Background(), "get_transaction_history", map[string]any{"limit": 2})
	require.False(t, env.IsError)
	assert.Contains(t, env.FirstText(), "sigOne")
	assert.Contains(t, env.FirstText(), "succeeded")
	assert.Contains(t, env.FirstText(), "sigTwo")
	assert.Contains(t, env.FirstText(), "failed")
}

func TestTransactionHistoryEmpty(t *testing.T) {
	b, _, _ := newTestBridge(t)

	env := b.Dispatch(context.Background(), "get_transaction_history", nil)
	require.False(t, env.IsError)
	assert.Contains(t, env.FirstText(), "No transactions")
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "1", formatSOL(wallet.LamportsPerSOL))
	assert.Equal(t, "0.5", formatSOL(wallet.LamportsPerSOL/2))
	assert.Equal(t, "0.000005", formatSOL(5000))
	assert.Equal(t, "0", formatSOL(0))
}
