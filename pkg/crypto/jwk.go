package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/dcp-ai/dcp-core/pkg/did"
	"github.com/go-jose/go-jose/v4"
)

// PublicJWK returns the verifying key as an EdDSA JSON Web Key whose key ID
// is the key's did:key identifier.
func (k *Keypair) PublicJWK() (jose.JSONWebKey, error) {
	pub, err := ParsePublicKey(k.PublicKey)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	return newJWK(pub, pub), nil
}

// PrivateJWK returns the signing key as an EdDSA JSON Web Key.
func (k *Keypair) PrivateJWK() (jose.JSONWebKey, error) {
	priv, err := decodeSecretKey(k.SecretKey)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	return newJWK(priv, priv.Public().(ed25519.PublicKey)), nil
}

func newJWK(key any, pub ed25519.PublicKey) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       key,
		KeyID:     did.NewKeyDID(pub),
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}
}

// KeypairFromJWK converts a private Ed25519 JWK into a Keypair.
func KeypairFromJWK(jwk jose.JSONWebKey) (*Keypair, error) {
	if !jwk.Valid() {
		return nil, fmt.Errorf("%w: invalid JWK", ErrInvalidSecretKey)
	}
	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: JWK is %T, want Ed25519 private key", ErrInvalidSecretKey, jwk.Key)
	}
	return &Keypair{
		PublicKey: base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
		SecretKey: base64.StdEncoding.EncodeToString(priv.Seed()),
	}, nil
}

// PublicKeyFromJWK returns the base64 verifying key held by an Ed25519 JWK,
// public or private.
func PublicKeyFromJWK(jwk jose.JSONWebKey) (string, error) {
	if !jwk.Valid() {
		return "", fmt.Errorf("%w: invalid JWK", ErrInvalidPublicKey)
	}
	switch key := jwk.Key.(type) {
	case ed25519.PublicKey:
		return base64.StdEncoding.EncodeToString(key), nil
	case ed25519.PrivateKey:
		return base64.StdEncoding.EncodeToString(key.Public().(ed25519.PublicKey)), nil
	default:
		return "", fmt.Errorf("%w: JWK is %T, want Ed25519", ErrInvalidPublicKey, jwk.Key)
	}
}
