package session

import (
	"context"
	"errors"
	"sync"

	"kingraph/internal/bridge"
	"kingraph/internal/logging"
)

// Session lifecycle errors.
var (
	ErrNotStarted = errors.New("session not started")
	ErrClosed     = errors.New("session closed")
)

// ToolDispatcher executes one tool call and always produces an envelope.
// *bridge.Bridge satisfies it.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) bridge.Envelope
}

// Hooks are the caller's observation points into the conversation. Nil hooks
// are skipped.
type Hooks struct {
	// OnText receives each chunk of model output.
	OnText func(text string)
	// OnTurnComplete fires when the model finishes a turn.
	OnTurnComplete func()
	// OnToolCall fires before a tool executes.
	OnToolCall func(name string)
}

// Session owns the dispatch loop between a live channel and the tool bridge.
type Session struct {
	channel Channel
	tools   ToolDispatcher
	hooks   Hooks

	mu      sync.Mutex
	started bool
	done    chan struct{}
	loopErr error
}

// New wires a session over an open channel. Call Start to begin dispatching.
func New(channel Channel, tools ToolDispatcher, hooks Hooks) *Session {
	return &Session{
		channel: channel,
		tools:   tools,
		hooks:   hooks,
		done:    make(chan struct{}),
	}
}

// Start launches the dispatch loop. Starting an already-started session is a
// no-op returning nil.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	go s.loop(ctx)
	return nil
}

// Send forwards one user turn to the model.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	return s.channel.SendText(ctx, text)
}

// Wait blocks until the loop exits and reports why. A clean server-side
// close and an explicit Close both return nil.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.loopErr
	}
}

// Close shuts the underlying channel; the loop drains and exits.
func (s *Session) Close() error {
	return s.channel.Close()
}

// loop consumes events until the channel closes. Tool calls within a batch
// run strictly in order and every call gets exactly one result, so the model
// never waits on an unanswered invocation.
func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	for event := range s.channel.Events() {
		switch ev := event.(type) {
		case SetupCompleteEvent:
			logging.SessionDebug("setup complete")
		case TextEvent:
			if s.hooks.OnText != nil {
				s.hooks.OnText(ev.Text)
			}
		case TurnCompleteEvent:
			if s.hooks.OnTurnComplete != nil {
				s.hooks.OnTurnComplete()
			}
		case ToolCallEvent:
			s.handleToolCalls(ctx, ev.Calls)
		case ClosedEvent:
			s.mu.Lock()
			s.loopErr = ev.Err
			s.mu.Unlock()
			if ev.Err != nil {
				logging.Get(logging.CategorySession).Error("channel closed: %v", ev.Err)
			}
		}
	}
}

func (s *Session) handleToolCalls(ctx context.Context, calls []FunctionCall) {
	results := make([]FunctionResult, 0, len(calls))
	for _, call := range calls {
		if s.hooks.OnToolCall != nil {
			s.hooks.OnToolCall(call.Name)
		}
		logging.SessionDebug("tool call %s (%s)", call.Name, call.ID)
		envelope := s.tools.Dispatch(ctx, call.Name, call.Args)
		results = append(results, FunctionResult{
			ID:       call.ID,
			Name:     call.Name,
			Response: envelope.ToMap(),
		})
	}
	if err := s.channel.SendToolResults(ctx, results); err != nil {
		logging.Get(logging.CategorySession).Error("send tool results: %v", err)
	}
}
