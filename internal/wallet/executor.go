package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kingraph/internal/logging"
)

// State is the connection lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Executor errors.
var (
	ErrNotConnected        = errors.New("wallet not connected")
	ErrAlreadyConnecting   = errors.New("wallet connection in progress")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBadAccountIndex     = errors.New("account index out of range")
	ErrNotConfirmed        = errors.New("transaction not confirmed")
)

// Executor drives the wallet connection lifecycle and executes transfers.
// No transaction is ever signed unless the state is Connected.
type Executor struct {
	mu sync.Mutex

	state    State
	signer   Signer
	accounts []Account
	selected int

	balance uint64 // lamports, last read

	rpc *RPCClient

	confirmPoll time.Duration
}

// NewExecutor creates a disconnected executor over the RPC client.
func NewExecutor(rpc *RPCClient) *Executor {
	return &Executor{
		state:       StateDisconnected,
		rpc:         rpc,
		confirmPoll: 500 * time.Millisecond,
	}
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Backend returns the connected backend, or empty when disconnected.
func (e *Executor) Backend() Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConnected || e.signer == nil {
		return ""
	}
	return e.signer.Backend()
}

// Connect authorizes through the signer's backend and, on success, reads the
// initial balance and transitions to Connected. Connecting while already
// connected is a no-op returning nil.
func (e *Executor) Connect(ctx context.Context, signer Signer) error {
	e.mu.Lock()
	switch e.state {
	case StateConnected:
		e.mu.Unlock()
		return nil
	case StateConnecting:
		e.mu.Unlock()
		return ErrAlreadyConnecting
	}
	e.state = StateConnecting
	e.mu.Unlock()

	accounts, err := signer.Authorize(ctx)
	if err != nil {
		e.mu.Lock()
		e.state = StateDisconnected
		e.mu.Unlock()
		return fmt.Errorf("authorize %s backend: %w", signer.Backend(), err)
	}

	balance, err := e.rpc.GetBalance(ctx, accounts[0].Address)
	if err != nil {
		_ = signer.Close()
		e.mu.Lock()
		e.state = StateDisconnected
		e.mu.Unlock()
		return fmt.Errorf("initial balance read: %w", err)
	}

	e.mu.Lock()
	e.signer = signer
	e.accounts = accounts
	e.selected = 0
	e.balance = balance
	e.state = StateConnected
	e.mu.Unlock()

	logging.WalletDebug("connected via %s as %s (balance %d lamports)",
		signer.Backend(), accounts[0].Address, balance)
	return nil
}

// Disconnect tears down the backend and resets to Disconnected regardless of
// prior state.
func (e *Executor) Disconnect() {
	e.mu.Lock()
	signer := e.signer
	e.signer = nil
	e.accounts = nil
	e.selected = 0
	e.balance = 0
	e.state = StateDisconnected
	e.mu.Unlock()

	if signer != nil {
		_ = signer.Close()
	}
	logging.WalletDebug("disconnected")
}

// Address returns the selected account's address.
func (e *Executor) Address() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConnected {
		return "", ErrNotConnected
	}
	return e.accounts[e.selected].Address, nil
}

// Balance returns the last-read lamport balance without touching the network.
func (e *Executor) Balance() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConnected {
		return 0, ErrNotConnected
	}
	return e.balance, nil
}

// RefreshBalance re-reads the balance from the RPC node. Connection state is
// unchanged.
func (e *Executor) RefreshBalance(ctx context.Context) (uint64, error) {
	address, err := e.Address()
	if err != nil {
		return 0, err
	}
	balance, err := e.rpc.GetBalance(ctx, address)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	if e.state == StateConnected {
		e.balance = balance
	}
	e.mu.Unlock()
	return balance, nil
}

// SwitchAccount selects another authorized account and re-reads its balance.
// Only valid while Connected.
func (e *Executor) SwitchAccount(ctx context.Context, index int) error {
	e.mu.Lock()
	if e.state != StateConnected {
		e.mu.Unlock()
		return ErrNotConnected
	}
	if index < 0 || index >= len(e.accounts) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrBadAccountIndex, index, len(e.accounts))
	}
	e.selected = index
	address := e.accounts[index].Address
	e.mu.Unlock()

	balance, err := e.rpc.GetBalance(ctx, address)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if e.state == StateConnected {
		e.balance = balance
	}
	e.mu.Unlock()
	return nil
}

// EstimateFee prices a transfer to recipient without submitting anything.
// Read-only RPC traffic only.
func (e *Executor) EstimateFee(ctx context.Context, recipient string, lamports uint64) (uint64, error) {
	address, err := e.Address()
	if err != nil {
		return 0, err
	}
	blockhash, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return 0, err
	}
	msg, err := NewTransferMessage(address, recipient, lamports, blockhash)
	if err != nil {
		return 0, err
	}
	return e.rpc.GetFeeForMessage(ctx, msg.Base64())
}

// SignAndSend builds a transfer, signs it through the connected backend,
// submits it and waits for confirmation at the configured commitment.
// There is no automatic retry: a failed submission surfaces as an error and
// must be re-initiated by the caller.
func (e *Executor) SignAndSend(ctx context.Context, recipient string, lamports uint64) (string, error) {
	e.mu.Lock()
	if e.state != StateConnected {
		e.mu.Unlock()
		return "", ErrNotConnected
	}
	signer := e.signer
	address := e.accounts[e.selected].Address
	balance := e.balance
	e.mu.Unlock()

	if lamports >= balance {
		return "", fmt.Errorf("%w: need more than %d lamports, have %d", ErrInsufficientBalance, lamports, balance)
	}

	blockhash, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	msg, err := NewTransferMessage(address, recipient, lamports, blockhash)
	if err != nil {
		return "", err
	}

	// Extension and mobile-adapter sign out-of-process; raw-keypair signs
	// in-process. All three converge here on the same submit-and-confirm
	// sequence.
	messageBytes := msg.Serialize()
	signature, err := signer.Sign(ctx, address, messageBytes)
	if err != nil {
		return "", fmt.Errorf("signing rejected: %w", err)
	}

	wire, err := SignedTransaction(messageBytes, signature)
	if err != nil {
		return "", err
	}

	txSig, err := e.rpc.SendTransaction(ctx, wire)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	logging.WalletDebug("submitted %s (%d lamports to %s)", txSig, lamports, recipient)

	if err := e.awaitConfirmation(ctx, txSig); err != nil {
		return "", err
	}

	// Best-effort local balance update; the next refresh corrects drift.
	e.mu.Lock()
	if e.state == StateConnected && e.balance >= lamports {
		e.balance -= lamports
	}
	e.mu.Unlock()

	return txSig, nil
}

func (e *Executor) awaitConfirmation(ctx context.Context, signature string) error {
	ticker := time.NewTicker(e.confirmPoll)
	defer ticker.Stop()

	for {
		status, err := e.rpc.GetSignatureStatus(ctx, signature)
		if err != nil {
			return err
		}
		if status != nil {
			if len(status.Err) > 0 && string(status.Err) != "null" {
				return fmt.Errorf("%w: %s failed on chain: %s", ErrNotConfirmed, signature, status.Err)
			}
			switch status.ConfirmationStatus {
			case "confirmed", "finalized":
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrNotConfirmed, signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

// History returns recent transactions for the selected account, newest
// first. Limit is clamped to [1, 50].
func (e *Executor) History(ctx context.Context, limit int) ([]TransactionRecord, error) {
	address, err := e.Address()
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	return e.rpc.GetSignaturesForAddress(ctx, address, limit)
}

// ValidateAddress reports whether the address is structurally valid. Pure
// function, no network traffic.
func (e *Executor) ValidateAddress(address string) bool {
	return ValidAddress(address)
}
