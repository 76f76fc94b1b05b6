package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"kingraph/internal/graph"
)

// matcher scores one intent against the input. Returning nil means "no
// claim". A non-nil command only wins if its confidence exceeds the
// matcher's threshold.
type matcher struct {
	threshold float64
	match     func(text string, nodes []*graph.Node) *Command
}

// The battery is ordered: the first matcher to clear its threshold wins.
// Balance carries the highest bar because it is the easiest to misfire.
var battery = []matcher{
	{threshold: 0.7, match: matchCreate},
	{threshold: 0.7, match: matchEdit},
	{threshold: 0.7, match: matchTransaction},
	{threshold: 0.8, match: matchBalance},
	{threshold: 0.6, match: matchView},
}

var (
	createRe = regexp.MustCompile(`(?i)\b(?:create|add|new)\s+(?:a\s+|an\s+)?(person|friend|contact|event|meetup|community|group)\b(?:\s+(?:called|named)\s+(.+))?`)

	editRe = regexp.MustCompile(`(?i)\b(?:edit|update|change|modify)\s+(.+)`)

	transferRe = regexp.MustCompile(`(?i)\bsend\s+(\d+(?:\.\d+)?)\s*(?:sol\s+)?to\s+(.+)`)

	balanceRe = regexp.MustCompile(`(?i)\b(?:check\s+)?(?:my\s+)?(?:wallet\s+)?balance\b|\bhow\s+much\s+sol\b`)

	viewRe = regexp.MustCompile(`(?i)\b(?:view|show|open|look\s+at)\s+(.+)`)
)

// Parse interprets one utterance against the supplied known nodes. It is a
// pure function: identical text and node set always yield the same command.
func Parse(text string, nodes []*graph.Node) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Unknown()
	}

	for _, m := range battery {
		cmd := m.match(trimmed, nodes)
		if cmd == nil {
			continue
		}
		if cmd.Confidence > m.threshold {
			return *cmd
		}
	}
	return Unknown()
}

func matchCreate(text string, _ []*graph.Node) *Command {
	groups := createRe.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}

	kind := graph.KindPerson
	switch strings.ToLower(groups[1]) {
	case "event", "meetup":
		kind = graph.KindEvent
	case "community", "group":
		kind = graph.KindCommunity
	}

	name := strings.TrimSpace(groups[2])
	confidence := 0.8
	if name != "" {
		confidence = 0.9
	}
	return &Command{
		Type:       CommandCreateNode,
		Confidence: confidence,
		Params:     &Params{Kind: kind, Name: name},
	}
}

func matchEdit(text string, nodes []*graph.Node) *Command {
	groups := editRe.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}

	target := strings.TrimSpace(groups[1])
	node := resolveNode(target, nodes)
	if node == nil {
		// Recognized the verb but not the target; below threshold on purpose.
		return &Command{Type: CommandEditNode, Confidence: 0.5, Params: &Params{Name: target}}
	}
	return &Command{
		Type:       CommandEditNode,
		Confidence: 0.85,
		Node:       node,
		Params:     &Params{Name: node.Name},
	}
}

func matchTransaction(text string, nodes []*graph.Node) *Command {
	groups := transferRe.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}

	amount, err := strconv.ParseFloat(groups[1], 64)
	if err != nil || amount <= 0 {
		return nil
	}

	recipient := strings.TrimSpace(groups[2])
	recipient = strings.TrimRight(recipient, ".!?")
	params := &Params{
		Amount:        amount,
		Recipient:     recipient,
		RecipientNode: resolveNode(recipient, nodes),
	}
	if params.RecipientNode != nil {
		params.Recipient = params.RecipientNode.Name
	}
	return &Command{Type: CommandSendTransaction, Confidence: 0.9, Params: params}
}

func matchBalance(text string, _ []*graph.Node) *Command {
	if !balanceRe.MatchString(text) {
		return nil
	}
	return &Command{Type: CommandGetBalance, Confidence: 0.9}
}

func matchView(text string, nodes []*graph.Node) *Command {
	groups := viewRe.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}

	target := strings.TrimSpace(groups[1])
	node := resolveNode(target, nodes)
	if node == nil {
		return &Command{Type: CommandViewNode, Confidence: 0.4, Params: &Params{Name: target}}
	}
	return &Command{
		Type:       CommandViewNode,
		Confidence: 0.75,
		Node:       node,
		Params:     &Params{Name: node.Name},
	}
}

// resolveNode uses bidirectional substring containment, first match in
// supplied order. Short names can resolve to the wrong node; ties are not
// disambiguated ("Al" matches "Alice" before "Alan").
func resolveNode(candidate string, nodes []*graph.Node) *graph.Node {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return nil
	}
	for _, n := range nodes {
		name := strings.ToLower(n.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, candidate) || strings.Contains(candidate, name) {
			return n
		}
	}
	return nil
}
