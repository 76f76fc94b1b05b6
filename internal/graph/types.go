// Package graph owns the personal relationship graph: people, events and
// communities, the active/selected conversation context, and the allowlist of
// nodes visible to AI tool calls.
package graph

import (
	"time"
)

// Kind identifies the concrete node type.
type Kind string

const (
	KindPerson    Kind = "person"
	KindEvent     Kind = "event"
	KindCommunity Kind = "community"
)

// Valid reports whether k is one of the known node kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPerson, KindEvent, KindCommunity:
		return true
	}
	return false
}

// Relationship classifies how a person relates to the user.
// Free-form values are accepted; these constants cover the common cases.
type Relationship string

const (
	RelationshipFamily       Relationship = "family"
	RelationshipFriend       Relationship = "friend"
	RelationshipColleague    Relationship = "colleague"
	RelationshipAcquaintance Relationship = "acquaintance"
)

// EventType classifies an event.
type EventType string

const (
	EventTypeMeetup     EventType = "meetup"
	EventTypeConference EventType = "conference"
	EventTypeParty      EventType = "party"
	EventTypeHackathon  EventType = "hackathon"
)

// CommunityType classifies a community.
type CommunityType string

const (
	CommunityTypeDAO          CommunityType = "dao"
	CommunityTypeClub         CommunityType = "club"
	CommunityTypeProfessional CommunityType = "professional"
	CommunityTypeOnline       CommunityType = "online"
)

// Node is a single entity in the graph. Kind-specific fields live on the
// embedded Person/Event/Community payloads; exactly one of them is meaningful
// for a given Kind.
type Node struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsActive    bool      `json:"isActive"`

	Person    *PersonData    `json:"person,omitempty"`
	Event     *EventData     `json:"event,omitempty"`
	Community *CommunityData `json:"community,omitempty"`
}

// PersonData carries person-specific fields.
type PersonData struct {
	// WalletAddress is an opaque base58 public key. Not validated at write
	// time; validate_wallet_address exists for that.
	WalletAddress       string       `json:"walletAddress,omitempty"`
	Relationship        Relationship `json:"relationship,omitempty"`
	Email               string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone               string       `json:"phone,omitempty"`
	Notes               string       `json:"notes,omitempty"`
	LastTransactionDate *time.Time   `json:"lastTransactionDate,omitempty"`
	TotalTransactions   int          `json:"totalTransactions"`
}

// EventData carries event-specific fields.
type EventData struct {
	Date         time.Time  `json:"date" validate:"required"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Location     string     `json:"location,omitempty"`
	EventType    EventType  `json:"eventType,omitempty"`
	Organizer    string     `json:"organizer,omitempty"` // free text or a person id
	TicketPrice  float64    `json:"ticketPrice,omitempty"`
	MaxAttendees int        `json:"maxAttendees,omitempty"`
	// Attendees has set semantics: a person id appears at most once.
	Attendees    []string `json:"attendees,omitempty"`
	Requirements string   `json:"requirements,omitempty"`
}

// CommunityData carries community-specific fields.
type CommunityData struct {
	CommunityType CommunityType `json:"communityType,omitempty"`
	IsPublic      bool          `json:"isPublic"`
	Members       []string      `json:"members,omitempty"`
	MemberCount   int           `json:"memberCount"`
	Website       string        `json:"website,omitempty" validate:"omitempty,url"`
	Governance    string        `json:"governance,omitempty"`
}

// Clone returns a deep copy of the node so callers can hold snapshots without
// racing graph mutations.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Tags = append([]string(nil), n.Tags...)
	if n.Person != nil {
		p := *n.Person
		if n.Person.LastTransactionDate != nil {
			d := *n.Person.LastTransactionDate
			p.LastTransactionDate = &d
		}
		out.Person = &p
	}
	if n.Event != nil {
		e := *n.Event
		e.Attendees = append([]string(nil), n.Event.Attendees...)
		if n.Event.EndDate != nil {
			d := *n.Event.EndDate
			e.EndDate = &d
		}
		out.Event = &e
	}
	if n.Community != nil {
		c := *n.Community
		c.Members = append([]string(nil), n.Community.Members...)
		out.Community = &c
	}
	return &out
}

// HasTag reports whether the node carries the given tag.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
