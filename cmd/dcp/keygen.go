package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	publicKeyFile  = "public_key.txt"
	secretKeyFile  = "secret_key.txt"
	publicJWKFile  = "public.jwk"
	privateJWKFile = "private.jwk"
)

var (
	keygenOutDir  string
	keygenJWK     bool
	keygenShowDID bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new Ed25519 keypair",
	Long: `Generate a new Ed25519 keypair for signing Citizenship Bundles.

Outputs:
  - public_key.txt  base64 verifying key
  - secret_key.txt  base64 signing key (32-byte seed), mode 0600
  - public.jwk / private.jwk when --jwk is set, with the did:key as key ID`,
	Example: `  # Write keys to ./keys
  dcp keygen

  # Write keys and JWKs to a custom directory
  dcp keygen --out-dir agent-keys --jwk

  # Only print the did:key (for scripting)
  dcp keygen --show-did`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		dir := keygenOutDir
		if dir == "" {
			dir = cfg.KeyDir
		}

		// 1. Generate Key Pair
		kp, err := crypto.GenerateKeypair()
		if err != nil {
			return err
		}
		didKey, err := kp.DID()
		if err != nil {
			return err
		}

		// 2. Save key text files
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, publicKeyFile), []byte(kp.PublicKey+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write public key: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, secretKeyFile), []byte(kp.SecretKey+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write secret key: %w", err)
		}
		log.Printf("wrote %s and %s to %s", publicKeyFile, secretKeyFile, dir)

		// 3. Save JWKs
		if keygenJWK {
			if err := writeJWKs(kp, dir); err != nil {
				return err
			}
			log.Printf("wrote %s and %s to %s", publicJWKFile, privateJWKFile, dir)
		}

		if keygenShowDID {
			fmt.Fprintln(out, didKey)
			return nil
		}
		color.New(color.FgGreen).Fprintf(out, "✅ Keypair written to %s/\n", dir)
		fmt.Fprintf(out, "🔑 did:key: %s\n", didKey)
		return nil
	},
}

func writeJWKs(kp *crypto.Keypair, dir string) error {
	pubJWK, err := kp.PublicJWK()
	if err != nil {
		return err
	}
	privJWK, err := kp.PrivateJWK()
	if err != nil {
		return err
	}

	pubBytes, err := json.MarshalIndent(pubJWK, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, publicJWKFile), pubBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write public JWK: %w", err)
	}

	privBytes, err := json.MarshalIndent(privJWK, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, privateJWKFile), privBytes, 0o600); err != nil {
		return fmt.Errorf("failed to write private JWK: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenOutDir, "out-dir", "", "Output directory for key files (default $DCP_KEY_DIR or \"keys\")")
	keygenCmd.Flags().BoolVar(&keygenJWK, "jwk", false, "Also write the keypair as JWK files")
	keygenCmd.Flags().BoolVar(&keygenShowDID, "show-did", false, "Only output did:key to stdout")
}
