package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kingraph/internal/graph"
	"kingraph/internal/wallet"
)

// fakeWallet is a scriptable Wallet for bridge tests. Zero value is a
// connected wallet with no funds.
type fakeWallet struct {
	state      wallet.State
	address    string
	balance    uint64
	fee        uint64
	refreshErr error
	feeErr     error
	sendErr    error
	signature  string
	history    []wallet.TransactionRecord
	historyErr error

	sends []fakeSend
}

type fakeSend struct {
	recipient string
	lamports  uint64
}

func (w *fakeWallet) State() wallet.State { return w.state }

func (w *fakeWallet) Address() (string, error) {
	if w.state != wallet.StateConnected {
		return "", wallet.ErrNotConnected
	}
	return w.address, nil
}

func (w *fakeWallet) Balance() (uint64, error) {
	if w.state != wallet.StateConnected {
		return 0, wallet.ErrNotConnected
	}
	return w.balance, nil
}

func (w *fakeWallet) RefreshBalance(context.Context) (uint64, error) {
	if w.refreshErr != nil {
		return 0, w.refreshErr
	}
	if w.state != wallet.StateConnected {
		return 0, wallet.ErrNotConnected
	}
	return w.balance, nil
}

func (w *fakeWallet) EstimateFee(_ context.Context, _ string, _ uint64) (uint64, error) {
	if w.feeErr != nil {
		return 0, w.feeErr
	}
	return w.fee, nil
}

func (w *fakeWallet) SignAndSend(_ context.Context, recipient string, lamports uint64) (string, error) {
	if w.sendErr != nil {
		return "", w.sendErr
	}
	w.sends = append(w.sends, fakeSend{recipient: recipient, lamports: lamports})
	return w.signature, nil
}

func (w *fakeWallet) History(context.Context, int) ([]wallet.TransactionRecord, error) {
	if w.historyErr != nil {
		return nil, w.historyErr
	}
	return w.history, nil
}

func (w *fakeWallet) ValidateAddress(address string) bool {
	return wallet.ValidAddress(address)
}

// testAddress deterministically builds a structurally valid address.
func testAddress(fill byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = fill
	}
	return base58.Encode(raw)
}

func newTestBridge(t *testing.T) (*Bridge, *graph.Store, *fakeWallet) {
	t.Helper()
	store := graph.NewStore(nil)
	w := &fakeWallet{
		state:     wallet.StateConnected,
		address:   testAddress(1),
		signature: "5fakeSignature",
	}
	return New(store, w), store, w
}

func TestDispatchUnknownTool(t *testing.T) {
	b, _, _ := newTestBridge(t)

	env := b.Dispatch(context.Background(), "no_such_tool", nil)
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "Unknown tool")
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	b, _, _ := newTestBridge(t)

	env := b.Dispatch(context.Background(), "create_sol_transfer", map[string]any{
		"recipient": testAddress(2),
	})
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), `"amount"`)
}

func TestDispatchHandlerErrorBecomesEnvelope(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.state = wallet.StateDisconnected

	env := b.Dispatch(context.Background(), "get_wallet_balance", nil)
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "not connected")
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	b, _, _ := newTestBridge(t)
	b.register(&Tool{
		Name: "explode",
		Handler: func(context.Context, map[string]any) (string, error) {
			panic("boom")
		},
	})

	env := b.Dispatch(context.Background(), "explode", nil)
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "failed unexpectedly")
}

func TestDispatchSuccessEnvelope(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.balance = 2 * wallet.LamportsPerSOL

	env := b.Dispatch(context.Background(), "get_wallet_balance", nil)
	require.False(t, env.IsError)
	require.Len(t, env.Content, 1)
	assert.Equal(t, "text", env.Content[0].Type)
	assert.Contains(t, env.Content[0].Text, "2 SOL")
}

func TestCatalogueShape(t *testing.T) {
	b, _, _ := newTestBridge(t)

	for _, name := range []string{
		"get_wallet_balance", "get_wallet_address", "get_transaction_history",
		"validate_wallet_address", "create_sol_transfer",
		"list_accessible_nodes", "get_all_nodes", "search_nodes", "get_node_details",
		"create_person_node", "create_event_node", "create_community_node",
		"edit_person_node", "edit_event_node", "edit_community_node",
	} {
		assert.True(t, b.Has(name), "missing tool %s", name)
	}

	for _, tool := range b.Tools() {
		assert.Equal(t, "object", tool.Schema.Type, tool.Name)
		assert.NotNil(t, tool.Schema.Properties, tool.Name)
		for _, req := range tool.Schema.Required {
			_, ok := tool.Schema.Properties[req]
			assert.True(t, ok, "%s requires undeclared property %s", tool.Name, req)
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	b, _, _ := newTestBridge(t)
	assert.Panics(t, func() {
		b.register(&Tool{Name: "get_wallet_balance"})
	})
}

func TestEnvelopeToMap(t *testing.T) {
	env := Failure("nope")
	m := env.ToMap()
	assert.Equal(t, true, m["isError"])
	blocks, ok := m["content"].([]any)
	require.True(t, ok)
	require.Len(t, blocks, 1)
	block, ok := blocks[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "nope", block["text"])

	_, hasErr := Text("fine").ToMap()["isError"]
	assert.False(t, hasErr)
}

func TestDispatchWrapsArbitraryError(t *testing.T) {
	b, _, w := newTestBridge(t)
	w.state = wallet.StateConnected
	w.historyErr = errors.New("rpc timeout")

	env := b.Dispatch(context.Background(), "get_transaction_history", nil)
	assert.True(t, env.IsError)
	assert.Contains(t, env.FirstText(), "rpc timeout")
}
