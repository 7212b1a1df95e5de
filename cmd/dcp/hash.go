package main

import (
	"fmt"

	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/spf13/cobra"
)

var bundleHashCmd = &cobra.Command{
	Use:   "bundle-hash <bundle-file>",
	Short: "Compute the tagged SHA-256 hash of a bundle",
	Long: `Compute the bundle_hash of a Citizenship Bundle: the SHA-256 of its
canonical JSON, tagged "sha256:". A signed bundle is hashed by its inner
bundle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readObject(cmd, args[0])
		if err != nil {
			return err
		}
		digest, err := crypto.Digest(unwrapBundle(doc))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), crypto.TagDigest(digest))
		return nil
	},
}

var merkleRootCmd = &cobra.Command{
	Use:   "merkle-root <bundle-file>",
	Short: "Compute the Merkle root of a bundle's audit entries",
	Long: `Compute the tagged Merkle root over the digests of a bundle's
audit_entries, in order. Exits 2 when the bundle has no audit entries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readObject(cmd, args[0])
		if err != nil {
			return err
		}
		entries, _ := unwrapBundle(doc)["audit_entries"].([]any)
		if len(entries) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "audit_entries must be a non-empty array")
			return &exitError{code: 2}
		}

		root, _, err := crypto.MerkleRootOf(entries)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), crypto.TagDigest(root))
		return nil
	},
}

var intentHashCmd = &cobra.Command{
	Use:   "intent-hash <intent-file>",
	Short: "Compute the intent_hash of an Intent",
	Long: `Compute the intent_hash (hex SHA-256 of the canonical JSON) of an
Intent document, as carried by every audit entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readObject(cmd, args[0])
		if err != nil {
			return err
		}
		digest, err := crypto.Digest(doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), digest)
		return nil
	},
}

func readObject(cmd *cobra.Command, path string) (map[string]any, error) {
	raw, err := readDocument(cmd, path)
	if err != nil {
		return nil, err
	}
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func init() {
	rootCmd.AddCommand(bundleHashCmd)
	rootCmd.AddCommand(merkleRootCmd)
	rootCmd.AddCommand(intentHashCmd)
}
