// Package config loads CLI defaults from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds defaults for dcp commands. Flags given on the command line
// take precedence over these values.
type Config struct {
	// PublicKey overrides the signer key embedded in a signed bundle during
	// verification. Base64 or did:key.
	PublicKey string `env:"DCP_PUBLIC_KEY"`

	// SecretKeyFile is the file holding the base64 signing key.
	SecretKeyFile string `env:"DCP_SECRET_KEY_FILE"`

	SignerType string `env:"DCP_SIGNER_TYPE" envDefault:"human"`
	SignerID   string `env:"DCP_SIGNER_ID"`

	// KeyDir is where keygen writes key files.
	KeyDir string `env:"DCP_KEY_DIR" envDefault:"keys"`

	NoColor bool `env:"DCP_NO_COLOR"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the Config described by the current environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
