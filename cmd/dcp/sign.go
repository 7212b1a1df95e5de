package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dcp-ai/dcp-core/pkg/bundle"
	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/fatih/color"
	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"
)

var (
	signSecretKeyFile string
	signOut           string
	signSignerType    string
	signSignerID      string
)

var signCmd = &cobra.Command{
	Use:   "sign <bundle-file>",
	Short: "Sign a Citizenship Bundle",
	Long: `Sign a Citizenship Bundle (JSON or YAML) and emit the signed bundle.

The signing key file holds the base64 key written by "dcp keygen", or a
private Ed25519 JWK.`,
	Example: `  dcp sign citizenship_bundle.json --secret-key-file keys/secret_key.txt --out signed.json

  # Key from the environment, bundle from stdin
  DCP_SECRET_KEY_FILE=keys/private.jwk dcp sign - < bundle.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyPath := signSecretKeyFile
		if keyPath == "" {
			keyPath = cfg.SecretKeyFile
		}
		if keyPath == "" {
			return fmt.Errorf("a signing key is required (--secret-key-file or DCP_SECRET_KEY_FILE)")
		}

		// 1. Load the signing key
		secretKey, err := loadSecretKey(keyPath)
		if err != nil {
			return err
		}

		// 2. Load the bundle
		doc, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}

		// 3. Sign
		opts := bundle.SignOptions{
			SignerType: firstNonEmpty(signSignerType, cfg.SignerType),
			SignerID:   firstNonEmpty(signSignerID, cfg.SignerID),
		}
		log.Printf("signing %s as %s", args[0], opts.SignerType)
		signed, err := bundle.SignBundle(doc, secretKey, opts)
		if err != nil {
			return fmt.Errorf("failed to sign bundle: %w", err)
		}
		log.Printf("bundle_hash %s", signed.Signature.BundleHash)

		// 4. Output
		if signOut == "" {
			return writeJSON(cmd.OutOrStdout(), signed)
		}
		f, err := os.Create(signOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := writeJSON(f, signed); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write signed bundle: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write signed bundle: %w", err)
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ Signed bundle saved to %s\n", signOut)
		return nil
	},
}

// loadSecretKey reads a base64 signing key or a private JWK from path.
func loadSecretKey(path string) (string, error) {
	text, err := readKeyText(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(text, "{") {
		return text, nil
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal([]byte(text), &jwk); err != nil {
		return "", fmt.Errorf("failed to parse private JWK: %w", err)
	}
	kp, err := crypto.KeypairFromJWK(jwk)
	if err != nil {
		return "", err
	}
	return kp.SecretKey, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVarP(&signSecretKeyFile, "secret-key-file", "k", "", "Signing key file (base64 or private JWK)")
	signCmd.Flags().StringVarP(&signOut, "out", "o", "", "Write the signed bundle to a file instead of stdout")
	signCmd.Flags().StringVar(&signSignerType, "signer-type", "", "Signer type (default $DCP_SIGNER_TYPE or \"human\")")
	signCmd.Flags().StringVar(&signSignerID, "signer-id", "", "Signer id (default the bundle's human_id)")
}
