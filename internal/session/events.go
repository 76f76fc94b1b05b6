// Package session drives a live conversation with the AI runtime: it opens
// the realtime channel, forwards user turns, and answers tool calls through
// the bridge. The wire protocol lives behind the Channel interface so the
// dispatch loop stays testable without network access.
package session

import "context"

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResult answers one FunctionCall. Response carries the bridge
// envelope rendered as a generic map.
type FunctionResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// Event is a message surfaced by the channel. Exactly one concrete type per
// event.
type Event interface{ isEvent() }

// SetupCompleteEvent fires once after the server acknowledges the session
// configuration.
type SetupCompleteEvent struct{}

// TextEvent carries a chunk of model output text.
type TextEvent struct {
	Text string
}

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

// ToolCallEvent carries one batch of tool invocations. Calls are answered in
// order.
type ToolCallEvent struct {
	Calls []FunctionCall
}

// ClosedEvent is the final event on the stream. Err is nil on a clean close.
type ClosedEvent struct {
	Err error
}

func (SetupCompleteEvent) isEvent() {}
func (TextEvent) isEvent()          {}
func (TurnCompleteEvent) isEvent()  {}
func (ToolCallEvent) isEvent()      {}
func (ClosedEvent) isEvent()        {}

// Channel is a live bidirectional connection to the AI runtime.
type Channel interface {
	// SendText submits one user turn.
	SendText(ctx context.Context, text string) error
	// SendToolResults returns tool outcomes for a ToolCallEvent.
	SendToolResults(ctx context.Context, results []FunctionResult) error
	// Events streams server activity. The channel is closed after a
	// ClosedEvent is delivered.
	Events() <-chan Event
	// Close tears the connection down. Safe to call more than once.
	Close() error
}
