package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/dcp-ai/dcp-core/pkg/did"
)

// SignerTypeHuman is the default signer type.
const SignerTypeHuman = "human"

// SignOptions configures SignBundle.
type SignOptions struct {
	// SignerType defaults to SignerTypeHuman.
	SignerType string

	// SignerID defaults to the bundle's human_binding_record.human_id, or to
	// the signer's did:key when the bundle has none.
	SignerID string

	// Now overrides the current time (for testing).
	Now func() time.Time
}

// SignBundle signs b, which may be a *CitizenshipBundle or any JSON-shaped
// value, and returns the signed envelope. The signature covers only the
// bundle; bundle_hash and merkle_root are recorded alongside it.
func SignBundle(b any, secretKey string, opts SignOptions) (*SignedBundle, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	// 1. Derive the signer's public key
	publicKey, err := crypto.PublicKeyFromSecret(secretKey)
	if err != nil {
		return nil, err
	}

	// 2. Fix the bundle bytes
	canon, err := crypto.Canonicalize(b)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize bundle: %w", err)
	}
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(canon))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, ErrNotAnObject
	}

	// 3. Digests
	bundleHash := crypto.HashBytes(canon)

	var merkleRoot *string
	if entries, ok := doc["audit_entries"].([]any); ok {
		root, ok, err := crypto.MerkleRootOf(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to compute merkle root: %w", err)
		}
		if ok {
			tagged := crypto.TagDigest(root)
			merkleRoot = &tagged
		}
	}

	// 4. Sign
	sig, err := crypto.Sign(json.RawMessage(canon), secretKey)
	if err != nil {
		return nil, err
	}

	signerType := opts.SignerType
	if signerType == "" {
		signerType = SignerTypeHuman
	}
	signerID := opts.SignerID
	if signerID == "" {
		signerID = humanID(doc)
	}
	if signerID == "" {
		pub, err := crypto.ParsePublicKey(publicKey)
		if err != nil {
			return nil, err
		}
		signerID = did.NewKeyDID(pub)
	}

	return &SignedBundle{
		Bundle: json.RawMessage(canon),
		Signature: &BundleSignature{
			Alg:       AlgEd25519,
			CreatedAt: now().UTC().Format(time.RFC3339),
			Signer: Signer{
				Type:         signerType,
				ID:           signerID,
				PublicKeyB64: publicKey,
			},
			BundleHash: crypto.TagDigest(bundleHash),
			MerkleRoot: merkleRoot,
			SigB64:     sig,
		},
	}, nil
}

func humanID(doc map[string]any) string {
	hbr, ok := doc["human_binding_record"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := hbr["human_id"].(string)
	return id
}
