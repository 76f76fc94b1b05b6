// Package bridge publishes the catalogue of operations the AI runtime may
// call and dispatches incoming calls against the node graph and the wallet
// executor. Handlers never let an error escape: every outcome, success or
// failure, is rendered into the same text envelope.
package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kingraph/internal/graph"
	"kingraph/internal/logging"
	"kingraph/internal/wallet"
)

// Wallet is the executor surface the bridge depends on. *wallet.Executor
// satisfies it; tests substitute fakes.
type Wallet interface {
	State() wallet.State
	Address() (string, error)
	Balance() (uint64, error)
	RefreshBalance(ctx context.Context) (uint64, error)
	EstimateFee(ctx context.Context, recipient string, lamports uint64) (uint64, error)
	SignAndSend(ctx context.Context, recipient string, lamports uint64) (string, error)
	History(ctx context.Context, limit int) ([]wallet.TransactionRecord, error)
	ValidateAddress(address string) bool
}

// Property describes a single parameter for the tool's input schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Items       *Items `json:"items,omitempty"`
}

// Items describes array element schemas.
type Items struct {
	Type string `json:"type"`
}

// Schema is the JSON-Schema-like parameter spec a tool advertises.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// HandlerFunc executes one tool call. The returned string becomes the text
// envelope; errors are downgraded to failure envelopes by the dispatcher.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is one named, schema-described operation in the catalogue.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     HandlerFunc
}

// Bridge holds the catalogue and its dependencies. Constructed with explicit
// references, never module-level state.
type Bridge struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string

	graph  *graph.Store
	wallet Wallet
}

// New builds the bridge over the graph store and wallet and registers the
// full catalogue.
func New(g *graph.Store, w Wallet) *Bridge {
	b := &Bridge{
		tools:  make(map[string]*Tool),
		graph:  g,
		wallet: w,
	}
	b.registerWalletTools()
	b.registerNodeTools()
	return b
}

// register adds a tool to the catalogue. Duplicate names are a programming
// error.
func (b *Bridge) register(t *Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tools[t.Name]; exists {
		panic(fmt.Sprintf("duplicate tool registration: %s", t.Name))
	}
	if t.Schema.Type == "" {
		t.Schema.Type = "object"
	}
	if t.Schema.Properties == nil {
		t.Schema.Properties = map[string]Property{}
	}
	b.tools[t.Name] = t
	b.order = append(b.order, t.Name)
	logging.BridgeDebug("registered tool %s", t.Name)
}

// Tools returns the catalogue in registration order.
func (b *Bridge) Tools() []*Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Tool, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.tools[name])
	}
	return out
}

// Names returns all tool names, sorted.
func (b *Bridge) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the named tool exists.
func (b *Bridge) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tools[name]
	return ok
}

// Dispatch runs the named tool. It never returns an error: unknown tools,
// missing arguments, handler errors and even handler panics all come back as
// failure envelopes, so the AI runtime always receives a completable
// response.
func (b *Bridge) Dispatch(ctx context.Context, name string, args map[string]any) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryBridge).Error("tool %s panicked: %v", name, r)
			env = Failure("The operation failed unexpectedly. Please try again.")
		}
	}()

	b.mu.RLock()
	tool, ok := b.tools[name]
	b.mu.RUnlock()
	if !ok {
		return Failure(fmt.Sprintf("Unknown tool: %s", name))
	}

	if args == nil {
		args = map[string]any{}
	}
	for _, required := range tool.Schema.Required {
		if _, present := args[required]; !present {
			return Failure(fmt.Sprintf("Missing required argument %q for %s", required, name))
		}
	}

	logging.BridgeDebug("dispatching %s", name)
	text, err := tool.Handler(ctx, args)
	if err != nil {
		logging.BridgeDebug("%s failed: %v", name, err)
		return Failure(err.Error())
	}
	return Text(text)
}
