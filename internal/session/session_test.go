package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kingraph/internal/bridge"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a global stats worker goroutine at package
	// init (pulled in transitively via google.golang.org/genai), so it is
	// present before any test runs and is not a leak from this package.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeChannel scripts server events and records what the session sends.
type fakeChannel struct {
	events chan Event

	mu        sync.Mutex
	sentText  []string
	responses [][]FunctionResult
	closed    bool
	sendErr   error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan Event, 16)}
}

func (c *fakeChannel) SendText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sentText = append(c.sentText, text)
	return nil
}

func (c *fakeChannel) SendToolResults(_ context.Context, results []FunctionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, results)
	return nil
}

func (c *fakeChannel) Events() <-chan Event { return c.events }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.events <- ClosedEvent{}
		close(c.events)
	}
	return nil
}

func (c *fakeChannel) results() [][]FunctionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]FunctionResult, len(c.responses))
	copy(out, c.responses)
	return out
}

// recordingDispatcher answers every call with a canned envelope.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
	reply func(name string) bridge.Envelope
}

func (d *recordingDispatcher) Dispatch(_ context.Context, name string, _ map[string]any) bridge.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	if d.reply != nil {
		return d.reply(name)
	}
	return bridge.Text("ok: " + name)
}

func (d *recordingDispatcher) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func TestToolCallsAnsweredInOrder(t *testing.T) {
	channel := newFakeChannel()
	dispatcher := &recordingDispatcher{}
	s := New(channel, dispatcher, Hooks{})
	require.NoError(t, s.Start(context.Background()))

	channel.events <- ToolCallEvent{Calls: []FunctionCall{
		{ID: "1", Name: "get_wallet_balance"},
		{ID: "2", Name: "list_accessible_nodes"},
	}}
	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, []string{"get_wallet_balance", "list_accessible_nodes"}, dispatcher.seen())
	batches := channel.results()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "1", batches[0][0].ID)
	assert.Equal(t, "2", batches[0][1].ID)
	assert.Contains(t, batches[0][0].Response, "content")
}

func TestEveryCallGetsAResultEvenOnFailure(t *testing.T) {
	channel := newFakeChannel()
	dispatcher := &recordingDispatcher{
		reply: func(name string) bridge.Envelope {
			if name == "broken" {
				return bridge.Failure("it broke")
			}
			return bridge.Text("fine")
		},
	}
	s := New(channel, dispatcher, Hooks{})
	require.NoError(t, s.Start(context.Background()))

	channel.events <- ToolCallEvent{Calls: []FunctionCall{
		{ID: "a", Name: "broken"},
		{ID: "b", Name: "working"},
	}}
	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))

	batches := channel.results()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, true, batches[0][0].Response["isError"])
	_, hasErr := batches[0][1].Response["isError"]
	assert.False(t, hasErr)
}

func TestTextAndTurnHooks(t *testing.T) {
	channel := newFakeChannel()
	var (
		mu    sync.Mutex
		texts []string
		turns int
	)
	s := New(channel, &recordingDispatcher{}, Hooks{
		OnText: func(text string) {
			mu.Lock()
			texts = append(texts, text)
			mu.Unlock()
		},
		OnTurnComplete: func() {
			mu.Lock()
			turns++
			mu.Unlock()
		},
	})
	require.NoError(t, s.Start(context.Background()))

	channel.events <- TextEvent{Text: "Hello"}
	channel.events <- TextEvent{Text: " there"}
	channel.events <- TurnCompleteEvent{}
	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Hello", " there"}, texts)
	assert.Equal(t, 1, turns)
}

func TestStartTwiceIsNoOp(t *testing.T) {
	channel := newFakeChannel()
	s := New(channel, &recordingDispatcher{}, Hooks{})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))
}

func TestSendBeforeStart(t *testing.T) {
	channel := newFakeChannel()
	s := New(channel, &recordingDispatcher{}, Hooks{})

	err := s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotStarted)
	require.NoError(t, channel.Close())
}

func TestSendAfterClose(t *testing.T) {
	channel := newFakeChannel()
	s := New(channel, &recordingDispatcher{}, Hooks{})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))

	err := s.Send(context.Background(), "too late")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSendForwardsUserTurn(t *testing.T) {
	channel := newFakeChannel()
	s := New(channel, &recordingDispatcher{}, Hooks{})
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Send(context.Background(), "send 0.5 sol to Alice"))
	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))

	channel.mu.Lock()
	defer channel.mu.Unlock()
	assert.Equal(t, []string{"send 0.5 sol to Alice"}, channel.sentText)
}

func TestWaitReportsChannelError(t *testing.T) {
	channel := newFakeChannel()
	s := New(channel, &recordingDispatcher{}, Hooks{})
	require.NoError(t, s.Start(context.Background()))

	wireErr := errors.New("connection reset")
	channel.events <- ClosedEvent{Err: wireErr}
	close(channel.events)

	err := s.Wait(context.Background())
	assert.ErrorIs(t, err, wireErr)
}

func TestWaitHonorsContext(t *testing.T) {
	channel := newFakeChannel()
	s := New(channel, &recordingDispatcher{}, Hooks{})
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, channel.Close())
	require.NoError(t, s.Wait(context.Background()))
}
