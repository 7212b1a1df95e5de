package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// HashAlgorithm is the tag used for tagged digests ("sha256:<hex>").
	HashAlgorithm = "sha256"

	// DigestSize is the size of a raw digest in bytes.
	DigestSize = sha256.Size

	digestTagPrefix = HashAlgorithm + ":"
)

// ErrInvalidDigest is returned when a hex digest does not decode to DigestSize bytes.
var ErrInvalidDigest = errors.New("invalid digest")

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest returns the lowercase hex SHA-256 of the canonical form of v.
func Digest(v any) (string, error) {
	canon, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canon), nil
}

// TagDigest prefixes a hex digest with the hash algorithm tag.
func TagDigest(hexDigest string) string {
	return digestTagPrefix + hexDigest
}

// ParseTaggedDigest strips the "sha256:" tag from s. ok is false when s
// carries any other tag or none, meaning the digest is not asserted.
func ParseTaggedDigest(s string) (hexDigest string, ok bool) {
	if !strings.HasPrefix(s, digestTagPrefix) {
		return "", false
	}
	return s[len(digestTagPrefix):], true
}

// MerkleRoot aggregates ordered hex leaf digests into a single root.
//
// Each layer with an odd count has its last element duplicated, then adjacent
// pairs are hashed as SHA-256(left || right) over the decoded bytes. ok is
// false when leaves is empty.
func MerkleRoot(leaves []string) (root string, ok bool, err error) {
	if len(leaves) == 0 {
		return "", false, nil
	}

	layer := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		b, err := decodeDigest(leaf)
		if err != nil {
			return "", false, fmt.Errorf("leaf %d: %w", i, err)
		}
		layer[i] = b
	}

	for len(layer) > 1 {
		if len(layer)%2 == 1 {
			layer = append(layer, layer[len(layer)-1])
		}
		next := make([][]byte, 0, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			pair := make([]byte, 0, 2*DigestSize)
			pair = append(pair, layer[i]...)
			pair = append(pair, layer[i+1]...)
			sum := sha256.Sum256(pair)
			next = append(next, sum[:])
		}
		layer = next
	}

	return hex.EncodeToString(layer[0]), true, nil
}

// MerkleRootOf digests each value as a leaf, in order, and returns their
// Merkle root.
func MerkleRootOf[T any](values []T) (root string, ok bool, err error) {
	leaves := make([]string, len(values))
	for i, v := range values {
		d, err := Digest(v)
		if err != nil {
			return "", false, fmt.Errorf("leaf %d: %w", i, err)
		}
		leaves[i] = d
	}
	return MerkleRoot(leaves)
}

func decodeDigest(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	if len(b) != DigestSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidDigest, DigestSize, len(b))
	}
	return b, nil
}
