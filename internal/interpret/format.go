package interpret

import "fmt"

// FormatResponse renders a short acknowledgement for local echo. It is never
// used for execution.
func FormatResponse(cmd Command) string {
	switch cmd.Type {
	case CommandCreateNode:
		if cmd.Params != nil && cmd.Params.Name != "" {
			return fmt.Sprintf("Creating %s %q...", cmd.Params.Kind, cmd.Params.Name)
		}
		if cmd.Params != nil {
			return fmt.Sprintf("Creating a new %s...", cmd.Params.Kind)
		}
		return "Creating a new node..."
	case CommandEditNode:
		if cmd.Node != nil {
			return fmt.Sprintf("Editing %q...", cmd.Node.Name)
		}
		return "Editing node..."
	case CommandViewNode:
		if cmd.Node != nil {
			return fmt.Sprintf("Showing %q.", cmd.Node.Name)
		}
		return "Showing node."
	case CommandSendTransaction:
		if cmd.Params != nil {
			return fmt.Sprintf("Preparing to send %g SOL to %s.", cmd.Params.Amount, cmd.Params.Recipient)
		}
		return "Preparing transfer."
	case CommandGetBalance:
		return "Checking wallet balance..."
	default:
		return "Sorry, I didn't catch that."
	}
}
