package store

import (
	"encoding/json"

	"kingraph/internal/graph"
	"kingraph/internal/logging"
)

// GraphState adapts the KV store to the graph.Saver contract and handles
// startup rehydration. Node date fields travel as RFC 3339 strings inside
// the JSON value.
type GraphState struct {
	kv *KV
}

// NewGraphState wraps a KV store.
func NewGraphState(kv *KV) *GraphState {
	return &GraphState{kv: kv}
}

// SaveNodes serializes the full node list under the nodes key.
func (g *GraphState) SaveNodes(nodes []*graph.Node) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	return g.kv.Put(KeyNodes, data)
}

// SaveAccessible serializes the LLM-accessible id set.
func (g *GraphState) SaveAccessible(ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return g.kv.Put(KeyAccessible, data)
}

// LoadNodes reads the persisted node list. Absence or corruption yields an
// empty list; corruption is logged, not fatal.
func (g *GraphState) LoadNodes() []*graph.Node {
	data, err := g.kv.Get(KeyNodes)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("load nodes: %v", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var nodes []*graph.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		logging.Get(logging.CategoryStore).Error("corrupt node state, starting empty: %v", err)
		return nil
	}
	return nodes
}

// LoadAccessible reads the persisted accessible id set, empty on any failure.
func (g *GraphState) LoadAccessible() []string {
	data, err := g.kv.Get(KeyAccessible)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("load accessible set: %v", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		logging.Get(logging.CategoryStore).Error("corrupt accessible set, starting empty: %v", err)
		return nil
	}
	return ids
}

// Restore populates the store from persisted state and returns the node count.
func (g *GraphState) Restore(s *graph.Store) int {
	nodes := g.LoadNodes()
	s.Load(nodes, g.LoadAccessible())
	return len(nodes)
}
