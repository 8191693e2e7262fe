package main

import (
	"os"

	"github.com/spf13/cobra"

	"firmup/internal/interfaces/cli/migrate"
	"firmup/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "firmup",
		Short: "firmup - device firmware upgrade orchestration",
		Long:  `firmup manages a firmware catalog and rolls images out to network devices over SSH, one at a time or fleet-wide.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
