package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"kingraph/internal/logging"
)

// Store errors.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrInvalidKind  = errors.New("invalid node kind")
	ErrKindMismatch = errors.New("node kind mismatch")
	ErrEmptyName    = errors.New("node name cannot be empty")
)

// Saver receives graph snapshots for persistence. Implementations must be
// safe to call from a background goroutine; the store never waits on them.
type Saver interface {
	SaveNodes(nodes []*Node) error
	SaveAccessible(ids []string) error
}

// snapshot is what the background saver consumes.
type snapshot struct {
	nodes      []*Node
	accessible []string
}

// Store is the in-memory node graph plus conversation context and the
// LLM-accessible allowlist. All mutations are synchronous with respect to the
// in-memory state; persistence is fire-and-forget.
type Store struct {
	mu sync.RWMutex

	nodes map[string]*Node
	order []string // insertion order; drives All/Query ordering and tie-breaks

	activeIDs  []string
	selectedID string

	accessible map[string]bool

	saver   Saver
	pending chan snapshot
	done    chan struct{}

	lastPersistErr error

	// onChange is re-invoked after every mutation so downstream consumers
	// (the tool bridge) always observe current state. Injected, never global.
	onChange func()

	now      func() time.Time
	validate *validator.Validate
}

// NewStore creates an empty store. If saver is non-nil a background goroutine
// persists snapshots after every mutation batch; call Close to drain it.
func NewStore(saver Saver) *Store {
	s := &Store{
		nodes:      make(map[string]*Node),
		accessible: make(map[string]bool),
		saver:      saver,
		now:        time.Now,
		validate:   validator.New(),
	}
	if saver != nil {
		s.pending = make(chan snapshot, 16)
		s.done = make(chan struct{})
		go s.saveLoop()
	}
	return s
}

// SetOnChange installs the post-mutation hook. Passing nil removes it.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Close stops the background saver after draining queued snapshots.
func (s *Store) Close() {
	if s.pending != nil {
		close(s.pending)
		<-s.done
	}
}

func (s *Store) saveLoop() {
	defer close(s.done)
	for snap := range s.pending {
		if err := s.saver.SaveNodes(snap.nodes); err != nil {
			logging.Get(logging.CategoryStore).Error("persist nodes: %v", err)
			s.setPersistErr(err)
			continue
		}
		if err := s.saver.SaveAccessible(snap.accessible); err != nil {
			logging.Get(logging.CategoryStore).Error("persist accessible set: %v", err)
			s.setPersistErr(err)
			continue
		}
		s.setPersistErr(nil)
	}
}

func (s *Store) setPersistErr(err error) {
	s.mu.Lock()
	s.lastPersistErr = err
	s.mu.Unlock()
}

// PersistStatus returns the error from the most recent persistence attempt,
// or nil. Persistence failures never block or fail in-memory operations.
func (s *Store) PersistStatus() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPersistErr
}

// afterMutation snapshots state for the saver and fires the change hook.
// Must be called without the lock held.
func (s *Store) afterMutation() {
	s.mu.RLock()
	var snap snapshot
	if s.pending != nil {
		snap = snapshot{nodes: s.exportLocked(), accessible: s.accessibleLocked()}
	}
	hook := s.onChange
	s.mu.RUnlock()

	if s.pending != nil {
		select {
		case s.pending <- snap:
		default:
			// Queue full: drop this snapshot, a later mutation will re-send
			// the full state. In-memory state is the source of truth.
			logging.StoreDebug("persist queue full, snapshot dropped")
		}
	}
	if hook != nil {
		hook()
	}
}

// Create validates and inserts a new node of the given kind. The id,
// timestamps and activity default are assigned here; any caller-supplied
// values for them are ignored.
func (s *Store) Create(kind Kind, n *Node) (*Node, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if n == nil || strings.TrimSpace(n.Name) == "" {
		return nil, ErrEmptyName
	}

	node := n.Clone()
	node.Kind = kind
	switch kind {
	case KindPerson:
		if node.Person == nil {
			node.Person = &PersonData{}
		}
		node.Person.TotalTransactions = 0
		node.Person.LastTransactionDate = nil
		node.Event, node.Community = nil, nil
	case KindEvent:
		if node.Event == nil {
			node.Event = &EventData{}
		}
		node.Person, node.Community = nil, nil
	case KindCommunity:
		if node.Community == nil {
			node.Community = &CommunityData{}
		}
		node.Community.MemberCount = len(node.Community.Members)
		node.Person, node.Event = nil, nil
	}

	if err := s.validate.Struct(node); err != nil {
		return nil, fmt.Errorf("invalid %s node: %w", kind, err)
	}

	now := s.now()
	node.ID = uuid.NewString()
	node.CreatedAt = now
	node.UpdatedAt = now
	node.IsActive = true

	s.mu.Lock()
	s.nodes[node.ID] = node
	s.order = append(s.order, node.ID)
	s.mu.Unlock()

	logging.GraphDebug("created %s node %s (%s)", kind, node.ID, node.Name)
	s.afterMutation()
	return node.Clone(), nil
}

// Update merges a partial update into the node. It is a no-op (returning
// ErrNodeNotFound / ErrKindMismatch) if the id is unknown or the kind does not
// match. UpdatedAt is bumped on every applied patch.
func (s *Store) Update(id string, kind Kind, patch Patch) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if node.Kind != kind {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s, not %s", ErrKindMismatch, id, node.Kind, kind)
	}

	patch.apply(node)
	node.UpdatedAt = s.now()
	if node.UpdatedAt.Before(node.CreatedAt) {
		// Clock went backwards; keep the invariant updatedAt >= createdAt.
		node.UpdatedAt = node.CreatedAt
	}
	s.mu.Unlock()

	logging.GraphDebug("updated %s node %s", kind, id)
	s.afterMutation()
	return nil
}

// Delete removes the node and cascades: active list, selection and the
// LLM-accessible set all drop the id in the same logical step.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	delete(s.nodes, id)
	s.order = removeID(s.order, id)
	s.activeIDs = removeID(s.activeIDs, id)
	if s.selectedID == id {
		s.selectedID = ""
	}
	delete(s.accessible, id)
	s.mu.Unlock()

	logging.GraphDebug("deleted node %s", id)
	s.afterMutation()
	return nil
}

// Get returns a snapshot of the node, or ErrNodeNotFound.
func (s *Store) Get(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node.Clone(), nil
}

// All returns snapshots of every node in insertion order.
func (s *Store) All() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportLocked()
}

func (s *Store) exportLocked() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

// SetActive flips the node's activity flag. Deactivating a node also removes
// it from the active context and clears selection if it was selected.
func (s *Store) SetActive(id string, active bool) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.IsActive = active
	node.UpdatedAt = s.now()
	if !active {
		s.activeIDs = removeID(s.activeIDs, id)
		if s.selectedID == id {
			s.selectedID = ""
		}
	}
	s.mu.Unlock()

	s.afterMutation()
	return nil
}

// Select marks the node as the current selection, implicitly adding it to the
// active context. Select("") clears the selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if id == "" {
		s.selectedID = ""
		s.mu.Unlock()
		s.afterMutation()
		return nil
	}
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.selectedID = id
	if !containsID(s.activeIDs, id) {
		s.activeIDs = append(s.activeIDs, id)
	}
	s.mu.Unlock()

	s.afterMutation()
	return nil
}

// Selected returns the currently selected node, or nil.
func (s *Store) Selected() *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == "" {
		return nil
	}
	if n, ok := s.nodes[s.selectedID]; ok {
		return n.Clone()
	}
	return nil
}

// AddToActive appends the node to the active context. Idempotent on
// duplicate ids.
func (s *Store) AddToActive(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if !containsID(s.activeIDs, id) {
		s.activeIDs = append(s.activeIDs, id)
	}
	s.mu.Unlock()

	s.afterMutation()
	return nil
}

// RemoveFromActive drops the node from the active context; if it was the
// selection, the selection is cleared.
func (s *Store) RemoveFromActive(id string) {
	s.mu.Lock()
	s.activeIDs = removeID(s.activeIDs, id)
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()

	s.afterMutation()
}

// ClearActive empties the active context and the selection.
func (s *Store) ClearActive() {
	s.mu.Lock()
	s.activeIDs = nil
	s.selectedID = ""
	s.mu.Unlock()

	s.afterMutation()
}

// ActiveNodes returns the active context in order.
func (s *Store) ActiveNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.activeIDs))
	for _, id := range s.activeIDs {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

// SetLLMAccessible grants or revokes AI visibility for the node. Membership
// requires the node to exist.
func (s *Store) SetLLMAccessible(id string, accessible bool) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if accessible {
		s.accessible[id] = true
	} else {
		delete(s.accessible, id)
	}
	s.mu.Unlock()

	logging.GraphDebug("llm accessible %s -> %v", id, accessible)
	s.afterMutation()
	return nil
}

// IsLLMAccessible reports whether the node is in the allowlist.
func (s *Store) IsLLMAccessible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessible[id]
}

// LLMAccessibleNodes returns the allowlisted nodes in insertion order.
func (s *Store) LLMAccessibleNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.accessible))
	for _, id := range s.order {
		if s.accessible[id] {
			if n, ok := s.nodes[id]; ok {
				out = append(out, n.Clone())
			}
		}
	}
	return out
}

func (s *Store) accessibleLocked() []string {
	ids := make([]string, 0, len(s.accessible))
	for id := range s.accessible {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter describes a node query. Zero-valued fields impose no constraint;
// all present constraints are ANDed.
type Filter struct {
	Kind       Kind
	ActiveOnly bool
	// Tags matches nodes sharing at least one tag with the filter.
	Tags []string
	// Text is a case-insensitive substring match on name or description.
	Text string
}

// Query returns nodes matching the filter, in insertion order.
func (s *Store) Query(f Filter) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text := strings.ToLower(f.Text)
	out := make([]*Node, 0)
	for _, id := range s.order {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		if f.Kind != "" && n.Kind != f.Kind {
			continue
		}
		if f.ActiveOnly && !n.IsActive {
			continue
		}
		if len(f.Tags) > 0 && !intersects(n.Tags, f.Tags) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(n.Name), text) &&
			!strings.Contains(strings.ToLower(n.Description), text) {
			continue
		}
		out = append(out, n.Clone())
	}
	return out
}

// FindByName resolves a free-form name to a node using bidirectional
// substring containment: the candidate may be a substring of a node name or
// vice versa. Ties resolve to the first match in store order. Known
// limitation: short names can resolve to the wrong node.
func (s *Store) FindByName(name string) *Node {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		stored := strings.ToLower(n.Name)
		if strings.Contains(stored, name) || strings.Contains(name, stored) {
			return n.Clone()
		}
	}
	return nil
}

// MarkTransaction records a completed transfer against a person node:
// bumps the counter and the last-transaction date.
func (s *Store) MarkTransaction(id string, at time.Time) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok || node.Person == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Person.TotalTransactions++
	node.Person.LastTransactionDate = &at
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	s.afterMutation()
	return nil
}

// Load replaces in-memory state with previously persisted records. Used once
// at startup; accessible ids without a matching node are dropped.
func (s *Store) Load(nodes []*Node, accessibleIDs []string) {
	s.mu.Lock()
	s.nodes = make(map[string]*Node, len(nodes))
	s.order = s.order[:0]
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			continue
		}
		if _, dup := s.nodes[n.ID]; dup {
			continue
		}
		s.nodes[n.ID] = n.Clone()
		s.order = append(s.order, n.ID)
	}
	s.accessible = make(map[string]bool, len(accessibleIDs))
	for _, id := range accessibleIDs {
		if _, ok := s.nodes[id]; ok {
			s.accessible[id] = true
		}
	}
	s.activeIDs = nil
	s.selectedID = ""
	s.mu.Unlock()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
