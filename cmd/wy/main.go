package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wy",
		Short: "Workyard: workload capacity and governance intake",
		Long:  "Workyard scores work items into weekly capacity and converts approved governance requests into tracked work.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newWeightsCmd())
	cmd.AddCommand(newPersonCmd())
	cmd.AddCommand(newManagerCmd())
	cmd.AddCommand(newItemCmd())
	cmd.AddCommand(newRequestCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newCapacityCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAskCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wy %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
