package graph

import "time"

// Patch is a partial node update. Nil pointer fields are left untouched;
// Add/Remove slices have set semantics.
type Patch struct {
	Name        *string
	Description *string
	AddTags     []string
	RemoveTags  []string

	Person    *PersonPatch
	Event     *EventPatch
	Community *CommunityPatch
}

// PersonPatch is a partial update for person-specific fields.
type PersonPatch struct {
	WalletAddress *string
	Relationship  *Relationship
	Email         *string
	Phone         *string
	Notes         *string
}

// EventPatch is a partial update for event-specific fields.
type EventPatch struct {
	Date         *time.Time
	EndDate      *time.Time
	Location     *string
	EventType    *EventType
	Organizer    *string
	TicketPrice  *float64
	MaxAttendees *int
	AddAttendees []string
	Requirements *string
}

// CommunityPatch is a partial update for community-specific fields.
type CommunityPatch struct {
	CommunityType *CommunityType
	IsPublic      *bool
	AddMembers    []string
	Website       *string
	Governance    *string
}

func (p Patch) apply(n *Node) {
	if p.Name != nil && *p.Name != "" {
		n.Name = *p.Name
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	for _, tag := range p.AddTags {
		if tag != "" && !n.HasTag(tag) {
			n.Tags = append(n.Tags, tag)
		}
	}
	for _, tag := range p.RemoveTags {
		n.Tags = removeID(n.Tags, tag)
	}

	if p.Person != nil && n.Person != nil {
		p.Person.apply(n.Person)
	}
	if p.Event != nil && n.Event != nil {
		p.Event.apply(n.Event)
	}
	if p.Community != nil && n.Community != nil {
		p.Community.apply(n.Community)
	}
}

func (p *PersonPatch) apply(d *PersonData) {
	if p.WalletAddress != nil {
		d.WalletAddress = *p.WalletAddress
	}
	if p.Relationship != nil {
		d.Relationship = *p.Relationship
	}
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
}

func (p *EventPatch) apply(d *EventData) {
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.EndDate != nil {
		d.EndDate = p.EndDate
	}
	if p.Location != nil {
		d.Location = *p.Location
	}
	if p.EventType != nil {
		d.EventType = *p.EventType
	}
	if p.Organizer != nil {
		d.Organizer = *p.Organizer
	}
	if p.TicketPrice != nil {
		d.TicketPrice = *p.TicketPrice
	}
	if p.MaxAttendees != nil {
		d.MaxAttendees = *p.MaxAttendees
	}
	for _, id := range p.AddAttendees {
		if id != "" && !containsID(d.Attendees, id) {
			d.Attendees = append(d.Attendees, id)
		}
	}
	if p.Requirements != nil {
		d.Requirements = *p.Requirements
	}
}

func (p *CommunityPatch) apply(d *CommunityData) {
	if p.CommunityType != nil {
		d.CommunityType = *p.CommunityType
	}
	if p.IsPublic != nil {
		d.IsPublic = *p.IsPublic
	}
	for _, id := range p.AddMembers {
		if id != "" && !containsID(d.Members, id) {
			d.Members = append(d.Members, id)
		}
	}
	d.MemberCount = len(d.Members)
	if p.Website != nil {
		d.Website = *p.Website
	}
	if p.Governance != nil {
		d.Governance = *p.Governance
	}
}
