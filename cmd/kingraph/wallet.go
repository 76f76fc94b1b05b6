package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kingraph/internal/wallet"
)

var (
	walletSendYes bool
	walletLimit   int
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect the wallet and move SOL",
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the wallet balance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connectWallet(cmd.Context()); err != nil {
			return err
		}

		balance, err := a.executor.RefreshBalance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s SOL (%d lamports)\n", formatSOL(balance), balance)
		return nil
	},
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the wallet address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connectWallet(cmd.Context()); err != nil {
			return err
		}

		address, err := a.executor.Address()
		if err != nil {
			return err
		}
		fmt.Println(address)
		return nil
	},
}

var walletSendCmd = &cobra.Command{
	Use:   "send [amount-sol] [recipient-address]",
	Short: "Send SOL to an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive number of SOL")
		}
		recipient := args[1]
		if !wallet.ValidAddress(recipient) {
			return fmt.Errorf("%q is not a valid address", recipient)
		}
		lamports := uint64(amount * float64(wallet.LamportsPerSOL))

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connectWallet(cmd.Context()); err != nil {
			return err
		}

		fee, err := a.executor.EstimateFee(cmd.Context(), recipient, lamports)
		if err != nil {
			return err
		}
		fmt.Printf("Sending %s SOL to %s (estimated fee %s SOL)\n",
			formatSOL(lamports), recipient, formatSOL(fee))
		if !walletSendYes {
			fmt.Print("Proceed? [y/N] ")
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		signature, err := a.executor.SignAndSend(cmd.Context(), recipient, lamports)
		if err != nil {
			return err
		}
		fmt.Printf("Confirmed. Signature: %s\n", signature)
		return nil
	},
}

var walletHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transactions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connectWallet(cmd.Context()); err != nil {
			return err
		}

		records, err := a.executor.History(cmd.Context(), walletLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No transactions.")
			return nil
		}
		for _, rec := range records {
			when := "-"
			if rec.BlockTime != nil {
				when = time.Unix(*rec.BlockTime, 0).UTC().Format(time.RFC3339)
			}
			status := "ok"
			if len(rec.Err) > 0 && string(rec.Err) != "null" {
				status = "failed"
			}
			fmt.Printf("%-7s %-20s %s\n", status, when, rec.Signature)
		}
		return nil
	},
}

func formatSOL(lamports uint64) string {
	return strconv.FormatFloat(float64(lamports)/float64(wallet.LamportsPerSOL), 'f', -1, 64)
}

func init() {
	walletSendCmd.Flags().BoolVarP(&walletSendYes, "yes", "y", false, "skip the confirmation prompt")
	walletHistoryCmd.Flags().IntVarP(&walletLimit, "limit", "n", 10, "how many transactions to show")

	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletAddressCmd)
	walletCmd.AddCommand(walletSendCmd)
	walletCmd.AddCommand(walletHistoryCmd)
}
