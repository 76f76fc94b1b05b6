package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kingraph/internal/bridge"
	"kingraph/internal/interpret"
	"kingraph/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the assistant",
	Long: `Opens a live AI session over the relationship graph and wallet.

Utterances the local interpreter can claim with confidence (transfers,
balance checks, node lookups) execute directly; everything else goes to the
model, which works through the tool catalogue on the nodes you have granted
it.`,
	RunE: runChat,
}

const defaultSystemPrompt = `You are the kingraph assistant. You help the user manage their
relationship graph and wallet. You can only see and edit the nodes the user
has granted you. Always preview a SOL transfer and wait for the user's
confirmation before executing it.`

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connectWallet(ctx); err != nil {
		// Chat still works without a wallet; transfers will report the
		// disconnected state through the tools.
		fmt.Fprintf(os.Stderr, "wallet unavailable: %v\n", err)
	}

	if a.cfg.Session.APIKey == "" {
		return fmt.Errorf("no API key configured; set GEMINI_API_KEY or pass --api-key")
	}

	toolBridge := bridge.New(a.graph, a.executor)

	systemPrompt := a.cfg.Session.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	channel, err := session.DialGemini(ctx, session.GeminiConfig{
		APIKey:       a.cfg.Session.APIKey,
		Model:        a.cfg.Session.Model,
		SystemPrompt: systemPrompt,
		Tools:        toolBridge.Tools(),
	})
	if err != nil {
		return fmt.Errorf("open live session: %w", err)
	}

	live := session.New(channel, toolBridge, session.Hooks{
		OnText:         func(text string) { fmt.Print(text) },
		OnTurnComplete: func() { fmt.Print("\n> ") },
		OnToolCall:     func(name string) { fmt.Printf("[%s]\n", name) },
	})
	if err := live.Start(ctx); err != nil {
		return err
	}

	fmt.Println("kingraph chat. Type a message, or 'exit' to quit.")
	fmt.Print("> ")

	chat := &chatLoop{app: a, bridge: toolBridge, live: live}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer live.Close()
		return chat.readInput(gctx)
	})
	g.Go(func() error {
		return live.Wait(gctx)
	})
	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// chatLoop owns the stdin side of the conversation plus the pending-transfer
// confirmation state.
type chatLoop struct {
	app    *app
	bridge *bridge.Bridge
	live   *session.Session

	// pendingTransfer holds the arguments of a previewed transfer waiting
	// for the user's yes.
	pendingTransfer map[string]any
}

func (c *chatLoop) readInput(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			fmt.Print("> ")
			continue
		case line == "exit" || line == "quit":
			return nil
		}
		if err := c.handle(ctx, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// handle routes one utterance: confirmation of a pending transfer first,
// then the local interpreter, then the AI session.
func (c *chatLoop) handle(ctx context.Context, line string) error {
	if c.pendingTransfer != nil && isAffirmative(line) {
		args := c.pendingTransfer
		c.pendingTransfer = nil
		args["execute"] = true
		env := c.bridge.Dispatch(ctx, "create_sol_transfer", args)
		fmt.Println(env.FirstText())
		fmt.Print("> ")
		return nil
	}
	c.pendingTransfer = nil

	cmd := interpret.Parse(line, c.app.graph.All())
	if interpret.Actionable(cmd) {
		if c.runLocal(ctx, cmd) {
			fmt.Print("> ")
			return nil
		}
	}
	return c.live.Send(ctx, line)
}

// runLocal executes an interpreted command without the model. Returns false
// when the command should be forwarded to the AI session after all.
func (c *chatLoop) runLocal(ctx context.Context, cmd interpret.Command) bool {
	switch cmd.Type {
	case interpret.CommandGetBalance:
		fmt.Println(interpret.FormatResponse(cmd))
		env := c.bridge.Dispatch(ctx, "get_wallet_balance", nil)
		fmt.Println(env.FirstText())
		return true

	case interpret.CommandSendTransaction:
		fmt.Println(interpret.FormatResponse(cmd))
		args := map[string]any{
			"recipient": cmd.Params.Recipient,
			"amount":    cmd.Params.Amount,
		}
		// The user can send to anyone in their graph, granted or not, so a
		// resolved node's address bypasses the tool's accessible-set lookup.
		if n := cmd.Params.RecipientNode; n != nil && n.Person != nil && n.Person.WalletAddress != "" {
			args["recipient"] = n.Person.WalletAddress
		}
		env := c.bridge.Dispatch(ctx, "create_sol_transfer", args)
		fmt.Println(env.FirstText())
		if !env.IsError {
			fmt.Println("Reply 'yes' to execute.")
			c.pendingTransfer = args
		}
		return true

	case interpret.CommandViewNode:
		if cmd.Node == nil {
			return false
		}
		fmt.Println(interpret.FormatResponse(cmd))
		printNode(cmd.Node)
		return true

	default:
		// Creation and editing carry too much free-form detail for the
		// battery; the model handles them with full context.
		return false
	}
}

func isAffirmative(line string) bool {
	switch strings.ToLower(line) {
	case "yes", "y", "confirm", "ok":
		return true
	}
	return false
}
