// Command quorumgate runs the multi-agent validation coordinator, either as an
// HTTP service or as a one-shot CI gate.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errRejected signals a completed run whose change was not approved.
var errRejected = errors.New("change rejected")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "quorumgate",
		Short:         "Security-first multi-agent validation coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default quorumgate.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newCheckCmd(&configPath),
		newAgentsCmd(&configPath),
	)
	return root
}
