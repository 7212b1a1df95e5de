package main

import (
	"fmt"
	"io"
	"log"

	"github.com/dcp-ai/dcp-core/pkg/bundle"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	verifyPublicKey string
	verifyJSON      bool
	verifyExplain   bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <signed-bundle-file> [public-key-file]",
	Short: "Verify a signed Citizenship Bundle",
	Long: `Verify a signed Citizenship Bundle.

Checks run in order and stop at the first failure: structure, key
resolution, signature, bundle_hash, merkle_root, and the audit trail's
intent_hash/prev_hash chain.

The verifying key is taken from the public-key-file argument, then
--public-key, then DCP_PUBLIC_KEY, and finally the signer key embedded in
the bundle. Exits 1 when verification fails.`,
	Example: `  dcp verify signed.json
  dcp verify signed.json keys/public_key.txt
  dcp verify signed.json --public-key did:key:z6Mk... --explain
  dcp verify signed.json --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Resolve the key override
		publicKey := firstNonEmpty(verifyPublicKey, cfg.PublicKey)
		if len(args) == 2 {
			var err error
			publicKey, err = readKeyText(args[1])
			if err != nil {
				return err
			}
		}

		// 2. Load the signed bundle
		data, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}
		log.Printf("verifying %s (%d bytes), key override: %t", args[0], len(data), publicKey != "")

		// 3. Verify
		var result *bundle.VerificationResult
		var outcomes []bundle.GateOutcome
		if sb, err := bundle.ParseSignedBundle(data); err != nil {
			result = bundle.VerifyJSON(data, publicKey)
		} else {
			result, outcomes = bundle.Explain(sb, publicKey)
		}
		for _, o := range outcomes {
			log.Printf("gate %s: %s %s", o.Gate, o.Status, o.Reason)
		}

		// 4. Output
		if verifyJSON {
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			if verifyExplain {
				printOutcomes(cmd.OutOrStdout(), outcomes)
			}
			printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
		}

		if !result.Verified {
			return &exitError{code: 1}
		}
		return nil
	},
}

func printResult(out, errOut io.Writer, result *bundle.VerificationResult) {
	if result.Verified {
		green := color.New(color.FgGreen)
		green.Fprintln(out, "✅ SIGNATURE VALID")
		green.Fprintln(out, "✅ BUNDLE INTEGRITY VALID")
		green.Fprintln(out, "✅ VERIFIED")
		return
	}
	red := color.New(color.FgRed)
	red.Fprintln(out, "❌ VERIFICATION FAILED")
	for _, e := range result.Errors {
		red.Fprintf(errOut, "   %s\n", e)
	}
}

func printOutcomes(out io.Writer, outcomes []bundle.GateOutcome) {
	for _, o := range outcomes {
		status := string(o.Status)
		switch o.Status {
		case bundle.GatePass:
			status = color.GreenString(status)
		case bundle.GateFail:
			status = color.RedString(status)
		case bundle.GateSkip:
			status = color.YellowString(status)
		}
		if o.Reason != "" {
			fmt.Fprintf(out, "  %-12s %s  %s\n", o.Gate, status, o.Reason)
		} else {
			fmt.Fprintf(out, "  %-12s %s\n", o.Gate, status)
		}
	}
	fmt.Fprintln(out)
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyPublicKey, "public-key", "", "Verifying key override (base64 or did:key)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output the verification result as JSON")
	verifyCmd.Flags().BoolVar(&verifyExplain, "explain", false, "Show the outcome of every check")
}
