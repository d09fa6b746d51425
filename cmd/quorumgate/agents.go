package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
)

func newAgentsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the configured agent roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			roster, err := agent.LoadRoster(cfg.Orchestrator.AgentsFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tTRUST\tID\tCAPABILITIES")
			for i := range roster {
				d := &roster[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.Name, d.Version, d.TrustLevel, agent.DeriveID(d), strings.Join(d.Capabilities, ","))
			}
			return w.Flush()
		},
	}
}
