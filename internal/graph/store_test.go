package graph

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(nil)
	t.Cleanup(s.Close)
	return s
}

func mustCreatePerson(t *testing.T, s *Store, name string) *Node {
	t.Helper()
	n, err := s.Create(KindPerson, &Node{Name: name})
	require.NoError(t, err)
	return n
}

func TestCreateAssignsIdentityAndTimestamps(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Create(KindPerson, &Node{Name: "Alice", Person: &PersonData{
		WalletAddress:     "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		TotalTransactions: 99, // must be reset to zero
	}})
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, KindPerson, n.Kind)
	assert.True(t, n.IsActive)
	assert.False(t, n.UpdatedAt.Before(n.CreatedAt))
	assert.Zero(t, n.Person.TotalTransactions)
}

func TestCreateRejectsBadInput(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(Kind("robot"), &Node{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = s.Create(KindPerson, &Node{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = s.Create(KindPerson, &Node{Name: "Bad Email", Person: &PersonData{Email: "not-an-email"}})
	assert.Error(t, err)

	_, err = s.Create(KindEvent, &Node{Name: "No Date"})
	assert.Error(t, err, "event without a date must be rejected")
}

func TestUpdateBumpsUpdatedAtAndMergesFields(t *testing.T) {
	s := newTestStore(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	n := mustCreatePerson(t, s, "Alice")

	clock = clock.Add(time.Hour)
	email := "alice@example.com"
	notes := "met at devcon"
	require.NoError(t, s.Update(n.ID, KindPerson, Patch{
		AddTags: []string{"friend", "friend"},
		Person:  &PersonPatch{Email: &email, Notes: &notes},
	}))

	got, err := s.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"friend"}, got.Tags)
	assert.Equal(t, email, got.Person.Email)
	assert.Equal(t, "Alice", got.Name, "unset patch fields stay untouched")
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUpdateKindMismatchIsRejected(t *testing.T) {
	s := newTestStore(t)
	n := mustCreatePerson(t, s, "Alice")

	err := s.Update(n.ID, KindEvent, Patch{})
	assert.ErrorIs(t, err, ErrKindMismatch)

	err = s.Update("missing", KindPerson, Patch{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestUpdatedAtNeverPrecedesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	n := mustCreatePerson(t, s, "Alice")

	// Clock regression must not violate the timestamp invariant.
	clock = clock.Add(-time.Hour)
	require.NoError(t, s.Update(n.ID, KindPerson, Patch{AddTags: []string{"x"}}))

	got, err := s.Get(n.ID)
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	n := mustCreatePerson(t, s, "Alice")

	require.NoError(t, s.AddToActive(n.ID))
	require.NoError(t, s.Select(n.ID))
	require.NoError(t, s.SetLLMAccessible(n.ID, true))

	require.NoError(t, s.Delete(n.ID))

	_, err := s.Get(n.ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Empty(t, s.ActiveNodes())
	assert.Nil(t, s.Selected())
	assert.False(t, s.IsLLMAccessible(n.ID))
	assert.Empty(t, s.LLMAccessibleNodes())
}

func TestSetActiveFalseClearsContextAndSelection(t *testing.T) {
	s := newTestStore(t)
	a := mustCreatePerson(t, s, "Alice")
	b := mustCreatePerson(t, s, "Bob")

	require.NoError(t, s.Select(a.ID))
	require.NoError(t, s.AddToActive(b.ID))

	require.NoError(t, s.SetActive(a.ID, false))

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, s.Selected())

	active := s.ActiveNodes()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
}

func TestSelectImplicitlyActivates(t *testing.T) {
	s := newTestStore(t)
	n := mustCreatePerson(t, s, "Alice")

	require.NoError(t, s.Select(n.ID))

	active := s.ActiveNodes()
	require.Len(t, active, 1)
	assert.Equal(t, n.ID, active[0].ID)
	require.NotNil(t, s.Selected())
	assert.Equal(t, n.ID, s.Selected().ID)

	// Removing from active clears the selection too.
	s.RemoveFromActive(n.ID)
	assert.Nil(t, s.Selected())
}

func TestAddToActiveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	n := mustCreatePerson(t, s, "Alice")

	require.NoError(t, s.AddToActive(n.ID))
	require.NoError(t, s.AddToActive(n.ID))
	assert.Len(t, s.ActiveNodes(), 1)
}

func TestQueryFiltersAreANDed(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(KindPerson, &Node{Name: "Alice", Description: "climbing partner", Tags: []string{"sports"}})
	require.NoError(t, err)
	_, err = s.Create(KindPerson, &Node{Name: "Bob", Tags: []string{"work"}})
	require.NoError(t, err)
	date := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	_, err = s.Create(KindEvent, &Node{Name: "Climbing meetup", Tags: []string{"sports"}, Event: &EventData{Date: date}})
	require.NoError(t, err)

	assert.Len(t, s.Query(Filter{}), 3)
	assert.Len(t, s.Query(Filter{Kind: KindPerson}), 2)
	assert.Len(t, s.Query(Filter{Tags: []string{"sports"}}), 2)
	assert.Len(t, s.Query(Filter{Kind: KindPerson, Tags: []string{"sports"}}), 1)

	// Case-insensitive substring over name and description.
	got := s.Query(Filter{Text: "CLIMB"})
	assert.Len(t, got, 2)

	got = s.Query(Filter{Kind: KindPerson, Text: "climb"})
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Name)
}

func TestQueryActiveOnly(t *testing.T) {
	s := newTestStore(t)
	a := mustCreatePerson(t, s, "Alice")
	mustCreatePerson(t, s, "Bob")

	require.NoError(t, s.SetActive(a.ID, false))

	got := s.Query(Filter{ActiveOnly: true})
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].Name)
}

func TestFindByNameBidirectionalSubstring(t *testing.T) {
	s := newTestStore(t)
	mustCreatePerson(t, s, "Alice")
	mustCreatePerson(t, s, "Alicia")

	// Partial name resolves.
	n := s.FindByName("Al")
	require.NotNil(t, n)
	// Tie resolves to first match in store order - documented limitation.
	assert.Equal(t, "Alice", n.Name)

	// Longer candidate containing a stored name also resolves.
	n = s.FindByName("Alice Smith")
	require.NotNil(t, n)
	assert.Equal(t, "Alice", n.Name)

	assert.Nil(t, s.FindByName("Zed"))
	assert.Nil(t, s.FindByName("  "))
}

func TestLLMAccessibleSetIsAnAllowlist(t *testing.T) {
	s := newTestStore(t)
	a := mustCreatePerson(t, s, "Alice")
	mustCreatePerson(t, s, "Bob")

	assert.Empty(t, s.LLMAccessibleNodes(), "nothing visible by default")

	require.NoError(t, s.SetLLMAccessible(a.ID, true))
	got := s.LLMAccessibleNodes()
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	require.NoError(t, s.SetLLMAccessible(a.ID, false))
	assert.Empty(t, s.LLMAccessibleNodes())

	assert.ErrorIs(t, s.SetLLMAccessible("missing", true), ErrNodeNotFound)
}

func TestMarkTransaction(t *testing.T) {
	s := newTestStore(t)
	n := mustCreatePerson(t, s, "Alice")

	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkTransaction(n.ID, at))
	require.NoError(t, s.MarkTransaction(n.ID, at.Add(time.Hour)))

	got, err := s.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Person.TotalTransactions)
	require.NotNil(t, got.Person.LastTransactionDate)
	assert.Equal(t, at.Add(time.Hour), *got.Person.LastTransactionDate)
}

func TestSerializationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(KindPerson, &Node{Name: "Alice", Tags: []string{"friend"}, Person: &PersonData{
		WalletAddress: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Relationship:  RelationshipFriend,
	}})
	require.NoError(t, err)
	end := time.Date(2026, 9, 2, 1, 0, 0, 0, time.UTC)
	_, err = s.Create(KindEvent, &Node{Name: "Meetup", Event: &EventData{
		Date:      time.Date(2026, 9, 1, 18, 30, 0, 0, time.UTC),
		EndDate:   &end,
		Attendees: []string{"p1"},
	}})
	require.NoError(t, err)
	_, err = s.Create(KindCommunity, &Node{Name: "Climbers", Community: &CommunityData{
		CommunityType: CommunityTypeClub,
		IsPublic:      true,
		Members:       []string{"p1", "p2"},
	}})
	require.NoError(t, err)

	before := s.All()
	data, err := json.Marshal(before)
	require.NoError(t, err)

	var after []*Node
	require.NoError(t, json.Unmarshal(data, &after))

	// Sub-second precision may be lost in transit; truncate for comparison.
	trunc := cmp.Comparer(func(a, b time.Time) bool {
		return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
	})
	if diff := cmp.Diff(before, after, trunc); diff != "" {
		t.Errorf("round-trip mismatch (-before +after):\n%s", diff)
	}
}

func TestLoadDropsDanglingAccessibleIDs(t *testing.T) {
	s := newTestStore(t)
	n := mustCreatePerson(t, s, "Alice")
	nodes := s.All()

	restored := newTestStore(t)
	restored.Load(nodes, []string{n.ID, "ghost"})

	got := restored.LLMAccessibleNodes()
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)
}

type recordingSaver struct {
	mu         sync.Mutex
	nodeSaves  int
	accessible [][]string
}

func (r *recordingSaver) SaveNodes(nodes []*Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeSaves++
	return nil
}

func (r *recordingSaver) SaveAccessible(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessible = append(r.accessible, ids)
	return nil
}

func TestMutationsReachTheSaver(t *testing.T) {
	saver := &recordingSaver{}
	s := NewStore(saver)

	_, err := s.Create(KindPerson, &Node{Name: "Alice"})
	require.NoError(t, err)
	s.Close()

	saver.mu.Lock()
	defer saver.mu.Unlock()
	assert.Greater(t, saver.nodeSaves, 0)
}

func TestOnChangeFiresAfterMutations(t *testing.T) {
	s := newTestStore(t)

	var mu sync.Mutex
	calls := 0
	s.SetOnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	n := mustCreatePerson(t, s, "Alice")
	require.NoError(t, s.Delete(n.ID))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}
