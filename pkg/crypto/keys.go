package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/dcp-ai/dcp-core/pkg/did"
)

const (
	// PublicKeySize is the size of a verifying key in bytes.
	PublicKeySize = ed25519.PublicKeySize

	// SecretKeySize is the size of a signing key (Ed25519 seed) in bytes.
	SecretKeySize = ed25519.SeedSize

	// SignatureSize is the size of a detached signature in bytes.
	SignatureSize = ed25519.SignatureSize
)

// Common errors returned by this package.
var (
	// ErrDecode is returned when key or signature text is not valid base64
	// (or, for public keys, not a valid did:key).
	ErrDecode = errors.New("decode failed")

	// ErrInvalidSecretKey is returned when a signing key cannot be used.
	ErrInvalidSecretKey = errors.New("invalid secret key")

	// ErrInvalidPublicKey is returned when a verifying key has the wrong size.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// Keypair holds an Ed25519 keypair in its text encoding (standard base64).
// SecretKey is the 32-byte seed.
type Keypair struct {
	PublicKey string `json:"public_key_b64"`
	SecretKey string `json:"secret_key_b64"`
}

// KeyGenerator creates keypairs from an injected randomness source.
type KeyGenerator struct {
	rand io.Reader
}

// NewKeyGenerator returns a generator reading entropy from r.
// A nil r selects crypto/rand.
func NewKeyGenerator(r io.Reader) *KeyGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &KeyGenerator{rand: r}
}

// Generate creates a fresh keypair. It fails only when the randomness source
// cannot supply enough bytes.
func (g *KeyGenerator) Generate() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(g.rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Keypair{
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		SecretKey: base64.StdEncoding.EncodeToString(priv.Seed()),
	}, nil
}

// GenerateKeypair creates a fresh keypair using crypto/rand.
func GenerateKeypair() (*Keypair, error) {
	return NewKeyGenerator(nil).Generate()
}

// KeypairFromSeed derives the keypair of a 32-byte Ed25519 seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SecretKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSecretKey, SecretKeySize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{
		PublicKey: base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
		SecretKey: base64.StdEncoding.EncodeToString(seed),
	}, nil
}

// DID returns the did:key identifier of the keypair's public half.
func (k *Keypair) DID() (string, error) {
	pub, err := ParsePublicKey(k.PublicKey)
	if err != nil {
		return "", err
	}
	return did.NewKeyDID(pub), nil
}

// PublicKeyFromSecret derives the base64 verifying key from a signing key.
func PublicKeyFromSecret(secretKey string) (string, error) {
	priv, err := decodeSecretKey(secretKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)), nil
}

// ParsePublicKey decodes a verifying key given as standard base64 or as a
// did:key identifier.
func ParsePublicKey(text string) (ed25519.PublicKey, error) {
	raw, err := decodePublicKeyText(text)
	if err != nil {
		return nil, err
	}
	if len(raw) != PublicKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func decodePublicKeyText(text string) ([]byte, error) {
	if did.IsKeyDID(text) {
		pub, err := did.PublicKeyFromKeyDID(text)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %v", ErrDecode, err)
		}
		return pub, nil
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrDecode, err)
	}
	return raw, nil
}

// decodeSecretKey accepts the 32-byte seed, or the 64-byte seed||public form
// emitted by other DCP SDKs provided its public half matches the seed.
func decodeSecretKey(text string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalidSecretKey, ErrDecode, err)
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(priv[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidSecretKey)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: want %d or %d bytes, got %d", ErrInvalidSecretKey, ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}
