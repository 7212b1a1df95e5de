// Package did encodes and decodes Ed25519 verifying keys as did:key
// identifiers, so a DCP signer can be named by its key alone.
package did

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by this package.
var (
	ErrInvalidDID         = errors.New("invalid DID format")
	ErrUnsupportedMethod  = errors.New("unsupported DID method (only did:key supported)")
	ErrInvalidKeyDID      = errors.New("invalid did:key format")
	ErrUnsupportedKeyType = errors.New("unsupported key type in did:key (only Ed25519 supported)")
)

const (
	// Prefix is the scheme and method shared by every did:key identifier.
	Prefix = "did:key:"

	// Ed25519MulticodecPrefix is the multicodec prefix for Ed25519 public keys (0xed01)
	Ed25519MulticodecPrefix = 0xed01

	// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes
	Ed25519PublicKeySize = ed25519.PublicKeySize
)

// IsKeyDID reports whether s looks like a did:key identifier. It does not
// validate the encoded key.
func IsKeyDID(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// NewKeyDID constructs a did:key identifier from an Ed25519 public key.
// Format: did:key:z<base58btc(0xed01 || public_key)>
//
// Returns an empty string if publicKey is not 32 bytes.
func NewKeyDID(publicKey []byte) string {
	if len(publicKey) != Ed25519PublicKeySize {
		return ""
	}

	prefixed := make([]byte, 2+len(publicKey))
	prefixed[0] = 0xed
	prefixed[1] = 0x01
	copy(prefixed[2:], publicKey)

	return Prefix + "z" + base58Encode(prefixed)
}

// PublicKeyFromKeyDID extracts the Ed25519 public key from a did:key identifier.
func PublicKeyFromKeyDID(didStr string) (ed25519.PublicKey, error) {
	if didStr == "" {
		return nil, ErrInvalidDID
	}

	parts := strings.Split(didStr, ":")
	if len(parts) < 3 || parts[0] != "did" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDID, didStr)
	}
	if parts[1] != "key" {
		return nil, fmt.Errorf("%w: got did:%s", ErrUnsupportedMethod, parts[1])
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: did:key must have exactly 3 parts", ErrInvalidKeyDID)
	}

	multibaseValue := parts[2]
	if multibaseValue == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrInvalidKeyDID)
	}
	// 'z' is the multibase prefix for base58btc
	if multibaseValue[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got '%c'", ErrInvalidKeyDID, multibaseValue[0])
	}

	decoded, err := base58Decode(multibaseValue[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58btc encoding: %v", ErrInvalidKeyDID, err)
	}
	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: decoded value too short", ErrInvalidKeyDID)
	}
	if decoded[0] != 0xed || decoded[1] != 0x01 {
		return nil, fmt.Errorf("%w: expected Ed25519 multicodec (0xed01), got 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}

	publicKey := decoded[2:]
	if len(publicKey) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidKeyDID, Ed25519PublicKeySize, len(publicKey))
	}

	return ed25519.PublicKey(publicKey), nil
}

// base58Alphabet is the Bitcoin Base58 alphabet
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// base58Encode encodes a byte slice to base58btc (Bitcoin alphabet).
func base58Encode(input []byte) string {
	if len(input) == 0 {
		return ""
	}

	leadingZeros := 0
	for _, b := range input {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	// log(256)/log(58) ≈ 1.37
	buf := make([]byte, len(input)*138/100+1)

	var length int
	for _, b := range input {
		carry := int(b)
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 256 * int(buf[i])
			}
			buf[i] = byte(carry % 58)
			carry /= 58
			if i >= length {
				length = i + 1
			}
		}
	}

	result := make([]byte, leadingZeros+length)
	for i := 0; i < leadingZeros; i++ {
		result[i] = '1'
	}
	for i := 0; i < length; i++ {
		result[leadingZeros+i] = base58Alphabet[buf[length-1-i]]
	}
	return string(result)
}

// base58Decode decodes a base58btc string to bytes.
func base58Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	leadingOnes := 0
	for _, c := range input {
		if c != '1' {
			break
		}
		leadingOnes++
	}

	buf := make([]byte, len(input)*733/1000+1)

	var length int
	for _, c := range input {
		val := strings.IndexRune(base58Alphabet, c)
		if val < 0 {
			return nil, fmt.Errorf("invalid base58 character: %c", c)
		}

		carry := val
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 58 * int(buf[i])
			}
			buf[i] = byte(carry % 256)
			carry /= 256
			if i >= length {
				length = i + 1
			}
		}
	}

	result := make([]byte, leadingOnes+length)
	for i := 0; i < length; i++ {
		result[leadingOnes+i] = buf[length-1-i]
	}
	return result, nil
}
