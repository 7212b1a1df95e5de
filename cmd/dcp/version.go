package main

import (
	"fmt"

	"github.com/dcp-ai/dcp-core/pkg/bundle"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the CLI and protocol version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dcp-core %s (DCP %s)\n", version, bundle.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
