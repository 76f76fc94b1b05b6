package bridge

// Block is one content block inside a tool response.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the uniform tool response shape. Failures use the same shape
// as successes with the failure described in the text, so the AI runtime
// never sees an unhandled rejection.
type Envelope struct {
	Content []Block `json:"content"`
	IsError bool    `json:"isError,omitempty"`
}

// Text wraps a message in a success envelope.
func Text(msg string) Envelope {
	return Envelope{Content: []Block{{Type: "text", Text: msg}}}
}

// Failure wraps a human-readable failure message in an envelope.
func Failure(msg string) Envelope {
	return Envelope{Content: []Block{{Type: "text", Text: msg}}, IsError: true}
}

// FirstText returns the first text block, or empty.
func (e Envelope) FirstText() string {
	if len(e.Content) == 0 {
		return ""
	}
	return e.Content[0].Text
}

// ToMap renders the envelope as the generic map the session layer sends back
// over the wire.
func (e Envelope) ToMap() map[string]any {
	blocks := make([]any, 0, len(e.Content))
	for _, b := range e.Content {
		blocks = append(blocks, map[string]any{"type": b.Type, "text": b.Text})
	}
	out := map[string]any{"content": blocks}
	if e.IsError {
		out["isError"] = true
	}
	return out
}
