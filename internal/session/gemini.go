package session

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"kingraph/internal/bridge"
	"kingraph/internal/logging"
)

// GeminiConfig configures the realtime connection to the Gemini Live API.
type GeminiConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Tools        []*bridge.Tool
}

// GeminiChannel is the production Channel over the Gemini Live API. This is
// the only file that touches the genai SDK.
type GeminiChannel struct {
	session *genai.Session
	events  chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

// DialGemini opens a live session, registers the tool declarations and
// starts the receive pump.
func DialGemini(ctx context.Context, cfg GeminiConfig) (*GeminiChannel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	connectConfig := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityText},
		Tools:              declarations(cfg.Tools),
	}
	if cfg.SystemPrompt != "" {
		connectConfig.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}

	live, err := client.Live.Connect(ctx, cfg.Model, connectConfig)
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	ch := &GeminiChannel{
		session: live,
		events:  make(chan Event, 8),
		closed:  make(chan struct{}),
	}
	go ch.receive()
	logging.SessionDebug("live session opened with model %s (%d tools)", cfg.Model, len(cfg.Tools))
	return ch, nil
}

// declarations converts the bridge catalogue into the SDK's tool schema.
func declarations(tools []*bridge.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toSchema(t.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toSchema(s bridge.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:     genai.TypeObject,
		Required: s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
	}
	for name, prop := range s.Properties {
		p := &genai.Schema{
			Type:        schemaType(prop.Type),
			Description: prop.Description,
		}
		if prop.Items != nil {
			p.Items = &genai.Schema{Type: schemaType(prop.Items.Type)}
		}
		out.Properties[name] = p
	}
	return out
}

func schemaType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// receive pumps server messages into typed events until the stream ends.
func (c *GeminiChannel) receive() {
	defer close(c.events)
	for {
		message, err := c.session.Receive()
		if err != nil {
			select {
			case <-c.closed:
				c.events <- ClosedEvent{}
			default:
				logging.SessionDebug("receive: %v", err)
				c.events <- ClosedEvent{Err: err}
			}
			return
		}
		for _, event := range translate(message) {
			c.events <- event
		}
	}
}

// translate maps one server message onto the event stream.
func translate(message *genai.LiveServerMessage) []Event {
	var out []Event
	if message.SetupComplete != nil {
		out = append(out, SetupCompleteEvent{})
	}
	if content := message.ServerContent; content != nil {
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part.Text != "" {
					out = append(out, TextEvent{Text: part.Text})
				}
			}
		}
		if content.TurnComplete {
			out = append(out, TurnCompleteEvent{})
		}
	}
	if call := message.ToolCall; call != nil && len(call.FunctionCalls) > 0 {
		calls := make([]FunctionCall, 0, len(call.FunctionCalls))
		for _, fc := range call.FunctionCalls {
			calls = append(calls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		out = append(out, ToolCallEvent{Calls: calls})
	}
	return out
}

// SendText submits a user turn and asks the model to respond.
func (c *GeminiChannel) SendText(_ context.Context, text string) error {
	return c.session.SendClientContent(genai.LiveClientContentInput{
		Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		TurnComplete: genai.Ptr(true),
	})
}

// SendToolResults answers a tool call batch.
func (c *GeminiChannel) SendToolResults(_ context.Context, results []FunctionResult) error {
	responses := make([]*genai.FunctionResponse, 0, len(results))
	for _, r := range results {
		responses = append(responses, &genai.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: r.Response,
		})
	}
	return c.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: responses,
	})
}

// Events implements Channel.
func (c *GeminiChannel) Events() <-chan Event { return c.events }

// Close tears the session down; the receive pump drains and emits a clean
// ClosedEvent.
func (c *GeminiChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.session.Close()
	})
	return err
}
