package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kingraph/internal/graph"
)

func (b *Bridge) registerNodeTools() {
	b.register(&Tool{
		Name:        "list_accessible_nodes",
		Description: "List the nodes you have been granted access to, optionally filtered by kind (person, event, community).",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"kind": {Type: "string", Description: "Optional filter: person, event or community."},
			},
		},
		Handler: b.handleListAccessible,
	})
	b.register(&Tool{
		Name:        "get_all_nodes",
		Description: "List every accessible node with its kind and id.",
		Schema:      Schema{Type: "object"},
		Handler:     b.handleGetAllNodes,
	})
	b.register(&Tool{
		Name:        "search_nodes",
		Description: "Search accessible nodes by a case-insensitive substring of name or description.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query": {Type: "string", Description: "Substring to search for."},
			},
			Required: []string{"query"},
		},
		Handler: b.handleSearchNodes,
	})
	b.register(&Tool{
		Name:        "get_node_details",
		Description: "Get the full details of one accessible node by id.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"id": {Type: "string", Description: "The node id."},
			},
			Required: []string{"id"},
		},
		Handler: b.handleNodeDetails,
	})
	b.register(&Tool{
		Name:        "create_person_node",
		Description: "Create a person in the relationship graph.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"name":          {Type: "string", Description: "The person's name."},
				"description":   {Type: "string", Description: "Free-form description."},
				"walletAddress": {Type: "string", Description: "Optional wallet address."},
				"relationship":  {Type: "string", Description: "family, friend, colleague or acquaintance."},
				"email":         {Type: "string", Description: "Email address."},
				"phone":         {Type: "string", Description: "Phone number."},
				"notes":         {Type: "string", Description: "Private notes."},
				"tags":          {Type: "array", Description: "Tags to attach.", Items: &Items{Type: "string"}},
			},
			Required: []string{"name"},
		},
		Handler: b.handleCreatePerson,
	})
	b.register(&Tool{
		Name:        "create_event_node",
		Description: "Create an event in the relationship graph.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"name":         {Type: "string", Description: "The event name."},
				"date":         {Type: "string", Description: "Start date, ISO 8601 (e.g. 2026-09-01 or 2026-09-01T18:00:00Z)."},
				"endDate":      {Type: "string", Description: "Optional end date, ISO 8601."},
				"description":  {Type: "string", Description: "Free-form description."},
				"location":     {Type: "string", Description: "Where the event happens."},
				"eventType":    {Type: "string", Description: "meetup, conference, party or hackathon."},
				"organizer":    {Type: "string", Description: "Organizer name or person id."},
				"ticketPrice":  {Type: "number", Description: "Ticket price, if any."},
				"maxAttendees": {Type: "number", Description: "Attendance cap, if any."},
				"tags":         {Type: "array", Description: "Tags to attach.", Items: &Items{Type: "string"}},
			},
			Required: []string{"name", "date"},
		},
		Handler: b.handleCreateEvent,
	})
	b.register(&Tool{
		Name:        "create_community_node",
		Description: "Create a community in the relationship graph.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"name":          {Type: "string", Description: "The community name."},
				"description":   {Type: "string", Description: "Free-form description."},
				"communityType": {Type: "string", Description: "dao, club, professional or online."},
				"isPublic":      {Type: "boolean", Description: "Whether the community is public."},
				"website":       {Type: "string", Description: "Community website URL."},
				"tags":          {Type: "array", Description: "Tags to attach.", Items: &Items{Type: "string"}},
			},
			Required: []string{"name"},
		},
		Handler: b.handleCreateCommunity,
	})
	b.register(&Tool{
		Name:        "edit_person_node",
		Description: "Update fields of an accessible person node. Only provided fields change.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"id":            {Type: "string", Description: "The person node id."},
				"name":          {Type: "string", Description: "New name."},
				"description":   {Type: "string", Description: "New description."},
				"walletAddress": {Type: "string", Description: "New wallet address."},
				"relationship":  {Type: "string", Description: "New relationship."},
				"email":         {Type: "string", Description: "New email."},
				"phone":         {Type: "string", Description: "New phone number."},
				"notes":         {Type: "string", Description: "New notes."},
				"addTags":       {Type: "array", Description: "Tags to add.", Items: &Items{Type: "string"}},
				"removeTags":    {Type: "array", Description: "Tags to remove.", Items: &Items{Type: "string"}},
			},
			Required: []string{"id"},
		},
		Handler: b.handleEditPerson,
	})
	b.register(&Tool{
		Name:        "edit_event_node",
		Description: "Update fields of an accessible event node. Only provided fields change.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"id":           {Type: "string", Description: "The event node id."},
				"name":         {Type: "string", Description: "New name."},
				"description":  {Type: "string", Description: "New description."},
				"date":         {Type: "string", Description: "New start date, ISO 8601."},
				"endDate":      {Type: "string", Description: "New end date, ISO 8601."},
				"location":     {Type: "string", Description: "New location."},
				"eventType":    {Type: "string", Description: "New event type."},
				"organizer":    {Type: "string", Description: "New organizer."},
				"ticketPrice":  {Type: "number", Description: "New ticket price."},
				"maxAttendees": {Type: "number", Description: "New attendance cap."},
				"addAttendees": {Type: "array", Description: "Person ids to add as attendees.", Items: &Items{Type: "string"}},
				"addTags":      {Type: "array", Description: "Tags to add.", Items: &Items{Type: "string"}},
				"removeTags":   {Type: "array", Description: "Tags to remove.", Items: &Items{Type: "string"}},
			},
			Required: []string{"id"},
		},
		Handler: b.handleEditEvent,
	})
	b.register(&Tool{
		Name:        "edit_community_node",
		Description: "Update fields of an accessible community node. Only provided fields change.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"id":            {Type: "string", Description: "The community node id."},
				"name":          {Type: "string", Description: "New name."},
				"description":   {Type: "string", Description: "New description."},
				"communityType": {Type: "string", Description: "New community type."},
				"isPublic":      {Type: "boolean", Description: "New visibility."},
				"website":       {Type: "string", Description: "New website URL."},
				"addMembers":    {Type: "array", Description: "Person ids to add as members.", Items: &Items{Type: "string"}},
				"addTags":       {Type: "array", Description: "Tags to add.", Items: &Items{Type: "string"}},
				"removeTags":    {Type: "array", Description: "Tags to remove.", Items: &Items{Type: "string"}},
			},
			Required: []string{"id"},
		},
		Handler: b.handleEditCommunity,
	})
}

// accessibleNode loads a node only if it is in the LLM-accessible set. Node
// existence alone does not grant visibility.
func (b *Bridge) accessibleNode(id string) (*graph.Node, error) {
	if !b.graph.IsLLMAccessible(id) {
		return nil, fmt.Errorf("No accessible node with id %s.", id)
	}
	n, err := b.graph.Get(id)
	if err != nil {
		return nil, fmt.Errorf("No accessible node with id %s.", id)
	}
	return n, nil
}

func summarize(n *graph.Node) string {
	return fmt.Sprintf("- %s [%s] id=%s", n.Name, n.Kind, n.ID)
}

func describe(n *graph.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\nid: %s\n", n.Name, n.Kind, n.ID)
	if n.Description != "" {
		fmt.Fprintf(&sb, "description: %s\n", n.Description)
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(&sb, "tags: %s\n", strings.Join(n.Tags, ", "))
	}
	switch {
	case n.Person != nil:
		p := n.Person
		if p.Relationship != "" {
			fmt.Fprintf(&sb, "relationship: %s\n", p.Relationship)
		}
		if p.WalletAddress != "" {
			fmt.Fprintf(&sb, "wallet: %s\n", p.WalletAddress)
		}
		if p.Email != "" {
			fmt.Fprintf(&sb, "email: %s\n", p.Email)
		}
		if p.Phone != "" {
			fmt.Fprintf(&sb, "phone: %s\n", p.Phone)
		}
		if p.Notes != "" {
			fmt.Fprintf(&sb, "notes: %s\n", p.Notes)
		}
		fmt.Fprintf(&sb, "transactions: %d\n", p.TotalTransactions)
	case n.Event != nil:
		e := n.Event
		fmt.Fprintf(&sb, "date: %s\n", e.Date.Format(time.RFC3339))
		if e.EndDate != nil {
			fmt.Fprintf(&sb, "ends: %s\n", e.EndDate.Format(time.RFC3339))
		}
		if e.Location != "" {
			fmt.Fprintf(&sb, "location: %s\n", e.Location)
		}
		if e.EventType != "" {
			fmt.Fprintf(&sb, "type: %s\n", e.EventType)
		}
		if e.Organizer != "" {
			fmt.Fprintf(&sb, "organizer: %s\n", e.Organizer)
		}
		if e.MaxAttendees > 0 {
			fmt.Fprintf(&sb, "attendees: %d/%d\n", len(e.Attendees), e.MaxAttendees)
		} else if len(e.Attendees) > 0 {
			fmt.Fprintf(&sb, "attendees: %d\n", len(e.Attendees))
		}
	case n.Community != nil:
		c := n.Community
		if c.CommunityType != "" {
			fmt.Fprintf(&sb, "type: %s\n", c.CommunityType)
		}
		fmt.Fprintf(&sb, "public: %v\nmembers: %d\n", c.IsPublic, c.MemberCount)
		if c.Website != "" {
			fmt.Fprintf(&sb, "website: %s\n", c.Website)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bridge) handleListAccessible(_ context.Context, args map[string]any) (string, error) {
	kind := graph.Kind(strings.ToLower(stringArg(args, "kind")))
	if kind != "" && !kind.Valid() {
		return "", fmt.Errorf("Unknown node kind %q. Use person, event or community.", kind)
	}

	nodes := b.graph.LLMAccessibleNodes()
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if kind != "" && n.Kind != kind {
			continue
		}
		lines = append(lines, summarize(n))
	}
	if len(lines) == 0 {
		return "No accessible nodes.", nil
	}
	return fmt.Sprintf("%d accessible node(s):\n%s", len(lines), strings.Join(lines, "\n")), nil
}

func (b *Bridge) handleGetAllNodes(ctx context.Context, _ map[string]any) (string, error) {
	return b.handleListAccessible(ctx, map[string]any{})
}

func (b *Bridge) handleSearchNodes(_ context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", errors.New("Search query must not be empty.")
	}

	lower := strings.ToLower(query)
	var lines []string
	for _, n := range b.graph.LLMAccessibleNodes() {
		if strings.Contains(strings.ToLower(n.Name), lower) ||
			strings.Contains(strings.ToLower(n.Description), lower) {
			lines = append(lines, summarize(n))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No accessible nodes match %q.", query), nil
	}
	return fmt.Sprintf("%d match(es) for %q:\n%s", len(lines), query, strings.Join(lines, "\n")), nil
}

func (b *Bridge) handleNodeDetails(_ context.Context, args map[string]any) (string, error) {
	n, err := b.accessibleNode(stringArg(args, "id"))
	if err != nil {
		return "", err
	}
	return describe(n), nil
}

// parseDate accepts full RFC 3339 timestamps or bare dates.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("Could not parse date %q. Use ISO 8601, e.g. 2026-09-01T18:00:00Z.", value)
}

// created finishes a create handler: AI-created nodes are granted to the
// accessible set immediately, so the model can see what it just made.
func (b *Bridge) created(n *graph.Node) (string, error) {
	if err := b.graph.SetLLMAccessible(n.ID, true); err != nil {
		return "", fmt.Errorf("Created %s but could not grant access: %v", n.Name, err)
	}
	return fmt.Sprintf("Created %s %q with id %s.", n.Kind, n.Name, n.ID), nil
}

func (b *Bridge) handleCreatePerson(_ context.Context, args map[string]any) (string, error) {
	n := &graph.Node{
		Name:        strings.TrimSpace(stringArg(args, "name")),
		Description: stringArg(args, "description"),
		Tags:        stringSliceArg(args, "tags"),
		Person: &graph.PersonData{
			WalletAddress: stringArg(args, "walletAddress"),
			Relationship:  graph.Relationship(stringArg(args, "relationship")),
			Email:         stringArg(args, "email"),
			Phone:         stringArg(args, "phone"),
			Notes:         stringArg(args, "notes"),
		},
	}
	node, err := b.graph.Create(graph.KindPerson, n)
	if err != nil {
		return "", fmt.Errorf("Could not create person: %v", err)
	}
	return b.created(node)
}

func (b *Bridge) handleCreateEvent(_ context.Context, args map[string]any) (string, error) {
	date, err := parseDate(stringArg(args, "date"))
	if err != nil {
		return "", err
	}
	price, _ := floatArg(args, "ticketPrice")
	event := &graph.EventData{
		Date:         date,
		Location:     stringArg(args, "location"),
		EventType:    graph.EventType(stringArg(args, "eventType")),
		Organizer:    stringArg(args, "organizer"),
		TicketPrice:  price,
		MaxAttendees: intArg(args, "maxAttendees", 0),
	}
	if raw := stringArg(args, "endDate"); raw != "" {
		end, err := parseDate(raw)
		if err != nil {
			return "", err
		}
		event.EndDate = &end
	}

	node, err := b.graph.Create(graph.KindEvent, &graph.Node{
		Name:        strings.TrimSpace(stringArg(args, "name")),
		Description: stringArg(args, "description"),
		Tags:        stringSliceArg(args, "tags"),
		Event:       event,
	})
	if err != nil {
		return "", fmt.Errorf("Could not create event: %v", err)
	}
	return b.created(node)
}

func (b *Bridge) handleCreateCommunity(_ context.Context, args map[string]any) (string, error) {
	node, err := b.graph.Create(graph.KindCommunity, &graph.Node{
		Name:        strings.TrimSpace(stringArg(args, "name")),
		Description: stringArg(args, "description"),
		Tags:        stringSliceArg(args, "tags"),
		Community: &graph.CommunityData{
			CommunityType: graph.CommunityType(stringArg(args, "communityType")),
			IsPublic:      boolArg(args, "isPublic"),
			Website:       stringArg(args, "website"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Could not create community: %v", err)
	}
	return b.created(node)
}

func (b *Bridge) handleEditPerson(_ context.Context, args map[string]any) (string, error) {
	n, err := b.accessibleNode(stringArg(args, "id"))
	if err != nil {
		return "", err
	}

	patch := graph.Patch{
		Name:        optString(args, "name"),
		Description: optString(args, "description"),
		AddTags:     stringSliceArg(args, "addTags"),
		RemoveTags:  stringSliceArg(args, "removeTags"),
		Person: &graph.PersonPatch{
			WalletAddress: optString(args, "walletAddress"),
			Email:         optString(args, "email"),
			Phone:         optString(args, "phone"),
			Notes:         optString(args, "notes"),
		},
	}
	if rel := optString(args, "relationship"); rel != nil {
		r := graph.Relationship(*rel)
		patch.Person.Relationship = &r
	}

	if err := b.graph.Update(n.ID, graph.KindPerson, patch); err != nil {
		return "", fmt.Errorf("Could not update %s: %v", n.Name, err)
	}
	return fmt.Sprintf("Updated person %q.", n.Name), nil
}

func (b *Bridge) handleEditEvent(_ context.Context, args map[string]any) (string, error) {
	n, err := b.accessibleNode(stringArg(args, "id"))
	if err != nil {
		return "", err
	}

	eventPatch := &graph.EventPatch{
		Location:     optString(args, "location"),
		Organizer:    optString(args, "organizer"),
		AddAttendees: stringSliceArg(args, "addAttendees"),
	}
	if raw := optString(args, "date"); raw != nil {
		date, err := parseDate(*raw)
		if err != nil {
			return "", err
		}
		eventPatch.Date = &date
	}
	if raw := optString(args, "endDate"); raw != nil {
		end, err := parseDate(*raw)
		if err != nil {
			return "", err
		}
		eventPatch.EndDate = &end
	}
	if raw := optString(args, "eventType"); raw != nil {
		et := graph.EventType(*raw)
		eventPatch.EventType = &et
	}
	if _, present := args["ticketPrice"]; present {
		price, err := floatArg(args, "ticketPrice")
		if err != nil {
			return "", errors.New("ticketPrice must be a number.")
		}
		eventPatch.TicketPrice = &price
	}
	if _, present := args["maxAttendees"]; present {
		limit := intArg(args, "maxAttendees", 0)
		eventPatch.MaxAttendees = &limit
	}

	patch := graph.Patch{
		Name:        optString(args, "name"),
		Description: optString(args, "description"),
		AddTags:     stringSliceArg(args, "addTags"),
		RemoveTags:  stringSliceArg(args, "removeTags"),
		Event:       eventPatch,
	}
	if err := b.graph.Update(n.ID, graph.KindEvent, patch); err != nil {
		return "", fmt.Errorf("Could not update %s: %v", n.Name, err)
	}
	return fmt.Sprintf("Updated event %q.", n.Name), nil
}

func (b *Bridge) handleEditCommunity(_ context.Context, args map[string]any) (string, error) {
	n, err := b.accessibleNode(stringArg(args, "id"))
	if err != nil {
		return "", err
	}

	communityPatch := &graph.CommunityPatch{
		AddMembers: stringSliceArg(args, "addMembers"),
		Website:    optString(args, "website"),
	}
	if raw := optString(args, "communityType"); raw != nil {
		ct := graph.CommunityType(*raw)
		communityPatch.CommunityType = &ct
	}
	if _, present := args["isPublic"]; present {
		public := boolArg(args, "isPublic")
		communityPatch.IsPublic = &public
	}

	patch := graph.Patch{
		Name:        optString(args, "name"),
		Description: optString(args, "description"),
		AddTags:     stringSliceArg(args, "addTags"),
		RemoveTags:  stringSliceArg(args, "removeTags"),
		Community:   communityPatch,
	}
	if err := b.graph.Update(n.ID, graph.KindCommunity, patch); err != nil {
		return "", fmt.Errorf("Could not update %s: %v", n.Name, err)
	}
	return fmt.Sprintf("Updated community %q.", n.Name), nil
}
