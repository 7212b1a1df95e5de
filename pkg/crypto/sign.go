package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Sign canonicalizes v and returns the base64 detached Ed25519 signature
// over the canonical bytes. The signature carries no copy of v.
func Sign(v any, secretKey string) (string, error) {
	priv, err := decodeSecretKey(secretKey)
	if err != nil {
		return "", err
	}

	msg, err := Canonicalize(v)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg)), nil
}

// Verify reports whether signature is a valid detached signature over the
// canonical bytes of v under publicKey.
//
// Text that cannot be decoded at all yields false and an error wrapping
// ErrDecode. Decodable input of the wrong length, or a signature that does
// not verify, yields false and a nil error. Callers treat both as
// "not verified".
func Verify(v any, signature, publicKey string) (bool, error) {
	msg, err := Canonicalize(v)
	if err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("%w: signature: %v", ErrDecode, err)
	}
	pub, err := decodePublicKeyText(publicKey)
	if err != nil {
		return false, err
	}

	if len(sig) != SignatureSize || len(pub) != PublicKeySize {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig), nil
}
