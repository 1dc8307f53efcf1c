package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Descriptors are listed statically so the command works without provider
// credentials configured.
var knownConnectors = []struct {
	Key     string
	Variant string
	Name    string
}{
	{"NOTION", "personal", "Notion"},
	{"LINEAR", "personal", "Linear"},
	{"ATLASSIAN", "personal", "Atlassian"},
	{"STRIPE", "shared", "Stripe"},
	{"RESEND", "shared", "Resend"},
	{"SUPABASE", "shared", "Supabase"},
}

func NewConnectorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connectors",
		Short: "List known connector definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, connector := range knownConnectors {
				fmt.Printf("%-12s %-9s %s\n", connector.Key, connector.Variant, connector.Name)
			}

			return nil
		},
	}
}
