// Package interpret turns free-form user text into structured commands using
// an ordered battery of pattern matchers with per-intent confidence
// thresholds. It is deliberately not an NLU engine: anything the battery
// cannot claim with confidence is forwarded to the AI session untouched.
package interpret

import "kingraph/internal/graph"

// CommandType is the closed set of local intents.
type CommandType string

const (
	CommandCreateNode      CommandType = "create_node"
	CommandEditNode        CommandType = "edit_node"
	CommandViewNode        CommandType = "view_node"
	CommandSendTransaction CommandType = "send_transaction"
	CommandGetBalance      CommandType = "get_balance"
	CommandUnknown         CommandType = "unknown"
)

// Params carries the structured arguments a matcher extracted.
type Params struct {
	// Transfer intents.
	Amount        float64
	Recipient     string
	RecipientNode *graph.Node

	// Node intents.
	Kind graph.Kind
	Name string
}

// Command is the result of interpreting one utterance. Transient; never
// persisted.
type Command struct {
	Type       CommandType
	Confidence float64

	// Node is the resolved target for edit/view intents, when resolution
	// succeeded.
	Node *graph.Node

	Params *Params
}

// Unknown is the zero-confidence fallback command.
func Unknown() Command {
	return Command{Type: CommandUnknown, Confidence: 0}
}

// Actionable reports whether the command is confident enough to execute
// locally without going through the AI session.
func Actionable(cmd Command) bool {
	return cmd.Confidence > 0.7 && cmd.Type != CommandUnknown
}
