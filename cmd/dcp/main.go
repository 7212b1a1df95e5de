// Package main is the entry point for the dcp CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dcp-ai/dcp-core/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
	flagNoColor bool

	// cfg holds environment defaults, loaded before any command runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dcp",
	Short: "Digital Citizenship Protocol CLI",
	Long: `Issue and verify DCP Citizenship Bundles.

A Citizenship Bundle binds a human, an agent, a declared intent, a policy
decision and a hash-chained audit trail into one signed, tamper-evident unit.

Defaults can be set through the environment:
  DCP_PUBLIC_KEY        verification key override (base64 or did:key)
  DCP_SECRET_KEY_FILE   signing key file
  DCP_SIGNER_TYPE       signer type (default "human")
  DCP_SIGNER_ID         signer id
  DCP_KEY_DIR           keygen output directory (default "keys")
  DCP_NO_COLOR          disable colored output`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		if cfg.NoColor || flagNoColor {
			color.NoColor = true
		}

		log.SetFlags(0)
		log.SetPrefix("dcp: ")
		if flagVerbose {
			log.SetOutput(cmd.ErrOrStderr())
		} else {
			log.SetOutput(io.Discard)
		}
		return nil
	},
}

// exitError ends the process with a specific status after the command has
// already reported why.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		config.Exitf("Error: %v", err)
	}
}
