package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kingraph/internal/graph"
	"kingraph/internal/wallet"
)

// formatSOL renders lamports in display units. The conversion happens only
// here, at the tool-text boundary; everything below the bridge is lamports.
func formatSOL(lamports uint64) string {
	return strconv.FormatFloat(float64(lamports)/float64(wallet.LamportsPerSOL), 'f', -1, 64)
}

func toLamports(sol float64) uint64 {
	return uint64(sol * float64(wallet.LamportsPerSOL))
}

func (b *Bridge) registerWalletTools() {
	b.register(&Tool{
		Name:        "get_wallet_balance",
		Description: "Get the current SOL balance of the connected wallet.",
		Schema:      Schema{Type: "object"},
		Handler:     b.handleGetBalance,
	})
	b.register(&Tool{
		Name:        "get_wallet_address",
		Description: "Get the public address of the connected wallet.",
		Schema:      Schema{Type: "object"},
		Handler:     b.handleGetAddress,
	})
	b.register(&Tool{
		Name:        "get_transaction_history",
		Description: "List recent transactions of the connected wallet, newest first.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"limit": {Type: "number", Description: "How many transactions to return (1-50, default 10)."},
			},
		},
		Handler: b.handleTransactionHistory,
	})
	b.register(&Tool{
		Name:        "validate_wallet_address",
		Description: "Check whether a string is a structurally valid wallet address.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"address": {Type: "string", Description: "The address to validate."},
			},
			Required: []string{"address"},
		},
		Handler: b.handleValidateAddress,
	})
	b.register(&Tool{
		Name: "create_sol_transfer",
		Description: "Transfer SOL to a recipient. With execute=false (the default) this only " +
			"previews the transfer: amount, recipient and estimated fee. Call again with " +
			"execute=true to actually move funds after the user confirms.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"recipient": {Type: "string", Description: "Recipient wallet address, or the name of an accessible person with a wallet address."},
				"amount":    {Type: "number", Description: "Amount in SOL, must be positive."},
				"execute":   {Type: "boolean", Description: "false = preview only (default), true = sign and submit."},
			},
			Required: []string{"recipient", "amount"},
		},
		Handler: b.handleCreateTransfer,
	})
}

func (b *Bridge) handleGetBalance(ctx context.Context, _ map[string]any) (string, error) {
	balance, err := b.wallet.RefreshBalance(ctx)
	if err != nil {
		if errors.Is(err, wallet.ErrNotConnected) {
			return "", errors.New("Wallet is not connected. Connect a wallet first.")
		}
		return "", fmt.Errorf("Could not read the wallet balance: %v", err)
	}
	return fmt.Sprintf("Wallet balance: %s SOL", formatSOL(balance)), nil
}

func (b *Bridge) handleGetAddress(_ context.Context, _ map[string]any) (string, error) {
	address, err := b.wallet.Address()
	if err != nil {
		return "", errors.New("Wallet is not connected. Connect a wallet first.")
	}
	return fmt.Sprintf("Wallet address: %s", address), nil
}

func (b *Bridge) handleTransactionHistory(ctx context.Context, args map[string]any) (string, error) {
	limit := intArg(args, "limit", 10)
	records, err := b.wallet.History(ctx, limit)
	if err != nil {
		if errors.Is(err, wallet.ErrNotConnected) {
			return "", errors.New("Wallet is not connected. Connect a wallet first.")
		}
		return "", fmt.Errorf("Could not fetch transaction history: %v", err)
	}
	if len(records) == 0 {
		return "No transactions found for this wallet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d transaction(s):\n", len(records))
	for i, rec := range records {
		status := "succeeded"
		if len(rec.Err) > 0 && string(rec.Err) != "null" {
			status = "failed"
		}
		when := "unknown time"
		if rec.BlockTime != nil {
			when = time.Unix(*rec.BlockTime, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n", i+1, rec.Signature, status, when)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bridge) handleValidateAddress(_ context.Context, args map[string]any) (string, error) {
	address := strings.TrimSpace(stringArg(args, "address"))
	if address == "" {
		return "", errors.New("Address must not be empty.")
	}
	if b.wallet.ValidateAddress(address) {
		return fmt.Sprintf("%s is a valid wallet address.", address), nil
	}
	return fmt.Sprintf("%s is not a valid wallet address.", address), nil
}

// resolveRecipient turns the recipient argument into a concrete address. A
// structurally valid address passes through; otherwise it is matched as a
// person name against the LLM-accessible set (bidirectional substring,
// first match wins).
func (b *Bridge) resolveRecipient(recipient string) (address string, node *graph.Node, err error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", nil, errors.New("Recipient must not be empty.")
	}
	if b.wallet.ValidateAddress(recipient) {
		return recipient, nil, nil
	}

	lower := strings.ToLower(recipient)
	for _, n := range b.graph.LLMAccessibleNodes() {
		if n.Kind != graph.KindPerson || n.Person == nil {
			continue
		}
		name := strings.ToLower(n.Name)
		if !strings.Contains(name, lower) && !strings.Contains(lower, name) {
			continue
		}
		if n.Person.WalletAddress == "" {
			return "", nil, fmt.Errorf("%s has no wallet address on file.", n.Name)
		}
		if !b.wallet.ValidateAddress(n.Person.WalletAddress) {
			return "", nil, fmt.Errorf("%s has an invalid wallet address on file.", n.Name)
		}
		return n.Person.WalletAddress, n, nil
	}
	return "", nil, fmt.Errorf("Could not resolve recipient %q to a wallet address.", recipient)
}

func (b *Bridge) handleCreateTransfer(ctx context.Context, args map[string]any) (string, error) {
	amount, err := floatArg(args, "amount")
	if err != nil {
		return "", errors.New("Amount must be a number.")
	}
	if amount <= 0 {
		return "", errors.New("Amount must be positive.")
	}
	lamports := toLamports(amount)
	if lamports == 0 {
		return "", errors.New("Amount is below the smallest transferable unit.")
	}

	address, node, err := b.resolveRecipient(stringArg(args, "recipient"))
	if err != nil {
		return "", err
	}

	if b.wallet.State() != wallet.StateConnected {
		return "", errors.New("Wallet is not connected. Connect a wallet first.")
	}

	// Proactive balance check before any transaction is built, so an
	// obviously doomed transfer never reaches the network.
	balance, err := b.wallet.RefreshBalance(ctx)
	if err != nil {
		return "", fmt.Errorf("Could not verify the wallet balance: %v", err)
	}

	fee, err := b.wallet.EstimateFee(ctx, address, lamports)
	if err != nil {
		return "", fmt.Errorf("Could not estimate the network fee: %v", err)
	}

	if lamports+fee > balance {
		return "", fmt.Errorf(
			"Insufficient balance: sending %s SOL plus a %s SOL fee exceeds the available %s SOL.",
			formatSOL(lamports), formatSOL(fee), formatSOL(balance))
	}

	recipientLabel := address
	if node != nil {
		recipientLabel = fmt.Sprintf("%s (%s)", node.Name, address)
	}

	if !boolArg(args, "execute") {
		// Preview: no state change, no network writes.
		return fmt.Sprintf(
			"Transfer preview: %s SOL to %s. Estimated fee: %s SOL. "+
				"No funds have moved. Call create_sol_transfer again with execute=true to confirm.",
			formatSOL(lamports), recipientLabel, formatSOL(fee)), nil
	}

	signature, err := b.wallet.SignAndSend(ctx, address, lamports)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			return "", fmt.Errorf("Insufficient balance to send %s SOL.", formatSOL(lamports))
		}
		return "", fmt.Errorf("Transfer failed: %v", err)
	}

	if node != nil {
		// Counter bump is best-effort; the transfer already succeeded.
		_ = b.graph.MarkTransaction(node.ID, time.Now())
	}

	return fmt.Sprintf("Sent %s SOL to %s. Transaction signature: %s",
		formatSOL(lamports), recipientLabel, signature), nil
}
