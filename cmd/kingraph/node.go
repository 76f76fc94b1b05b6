package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kingraph/internal/graph"
)

var (
	nodeKind        string
	nodeDescription string
	nodeTags        []string
	nodeWallet      string
	nodeDate        string
	nodeRevoke      bool
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect and manage graph nodes",
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all nodes in the graph",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		filter := graph.Filter{}
		if nodeKind != "" {
			filter.Kind = graph.Kind(nodeKind)
			if !filter.Kind.Valid() {
				return fmt.Errorf("unknown kind %q", nodeKind)
			}
		}
		nodes := a.graph.Query(filter)
		if len(nodes) == 0 {
			fmt.Println("No nodes.")
			return nil
		}
		for _, n := range nodes {
			access := " "
			if a.graph.IsLLMAccessible(n.ID) {
				access = "*"
			}
			fmt.Printf("%s %-9s %-24s %s\n", access, n.Kind, n.Name, n.ID)
		}
		fmt.Println("\n* = accessible to the assistant")
		return nil
	},
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a node (person by default)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		kind := graph.Kind(nodeKind)
		if nodeKind == "" {
			kind = graph.KindPerson
		}
		node := &graph.Node{
			Name:        strings.Join(args, " "),
			Description: nodeDescription,
			Tags:        nodeTags,
		}
		switch kind {
		case graph.KindPerson:
			node.Person = &graph.PersonData{WalletAddress: nodeWallet}
		case graph.KindEvent:
			if nodeDate == "" {
				return fmt.Errorf("events need --date (ISO 8601)")
			}
			date, err := time.Parse("2006-01-02", nodeDate)
			if err != nil {
				if date, err = time.Parse(time.RFC3339, nodeDate); err != nil {
					return fmt.Errorf("could not parse --date %q", nodeDate)
				}
			}
			node.Event = &graph.EventData{Date: date}
		case graph.KindCommunity:
			node.Community = &graph.CommunityData{}
		default:
			return fmt.Errorf("unknown kind %q", nodeKind)
		}

		created, err := a.graph.Create(kind, node)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s %q (%s)\n", created.Kind, created.Name, created.ID)
		return nil
	},
}

var nodeGrantCmd = &cobra.Command{
	Use:   "grant [name or id]",
	Short: "Grant (or revoke with --revoke) assistant access to a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := a.graph.Get(args[0])
		if err != nil {
			if node = a.graph.FindByName(args[0]); node == nil {
				return fmt.Errorf("no node matches %q", args[0])
			}
		}
		if err := a.graph.SetLLMAccessible(node.ID, !nodeRevoke); err != nil {
			return err
		}
		if nodeRevoke {
			fmt.Printf("Revoked assistant access to %q\n", node.Name)
		} else {
			fmt.Printf("Granted assistant access to %q\n", node.Name)
		}
		return nil
	},
}

var nodeShowCmd = &cobra.Command{
	Use:   "show [name or id]",
	Short: "Show a node's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := a.graph.Get(args[0])
		if err != nil {
			if node = a.graph.FindByName(args[0]); node == nil {
				return fmt.Errorf("no node matches %q", args[0])
			}
		}
		printNode(node)
		return nil
	},
}

func printNode(n *graph.Node) {
	fmt.Printf("%s [%s]\n  id: %s\n", n.Name, n.Kind, n.ID)
	if n.Description != "" {
		fmt.Printf("  description: %s\n", n.Description)
	}
	if len(n.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(n.Tags, ", "))
	}
	switch {
	case n.Person != nil:
		if n.Person.Relationship != "" {
			fmt.Printf("  relationship: %s\n", n.Person.Relationship)
		}
		if n.Person.WalletAddress != "" {
			fmt.Printf("  wallet: %s\n", n.Person.WalletAddress)
		}
		fmt.Printf("  transactions: %d\n", n.Person.TotalTransactions)
	case n.Event != nil:
		fmt.Printf("  date: %s\n", n.Event.Date.Format(time.RFC3339))
		if n.Event.Location != "" {
			fmt.Printf("  location: %s\n", n.Event.Location)
		}
	case n.Community != nil:
		fmt.Printf("  members: %d\n", n.Community.MemberCount)
	}
	fmt.Printf("  created: %s\n", n.CreatedAt.Format(time.RFC3339))
}

func init() {
	nodeListCmd.Flags().StringVarP(&nodeKind, "kind", "k", "", "filter by kind: person, event, community")
	nodeCreateCmd.Flags().StringVarP(&nodeKind, "kind", "k", "", "node kind (default person)")
	nodeCreateCmd.Flags().StringVarP(&nodeDescription, "description", "d", "", "node description")
	nodeCreateCmd.Flags().StringSliceVarP(&nodeTags, "tag", "t", nil, "tags (repeatable)")
	nodeCreateCmd.Flags().StringVar(&nodeWallet, "wallet", "", "wallet address (person nodes)")
	nodeCreateCmd.Flags().StringVar(&nodeDate, "date", "", "event date, ISO 8601 (event nodes)")
	nodeGrantCmd.Flags().BoolVar(&nodeRevoke, "revoke", false, "revoke access instead of granting")

	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeCreateCmd)
	nodeCmd.AddCommand(nodeGrantCmd)
	nodeCmd.AddCommand(nodeShowCmd)
}
