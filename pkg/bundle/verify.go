package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dcp-ai/dcp-core/pkg/crypto"
)

// GateStatus is the outcome of one verification check.
type GateStatus string

const (
	// GatePass means the check ran and succeeded.
	GatePass GateStatus = "PASS"

	// GateSkip means the bundle did not assert what the check covers.
	GateSkip GateStatus = "SKIP"

	// GateFail means the check ran and failed; verification stopped here.
	GateFail GateStatus = "FAIL"

	// GateNotRun marks checks after a failure.
	GateNotRun GateStatus = "NOT_RUN"
)

// Gate names, in evaluation order.
const (
	GateStructure  = "structure"
	GatePublicKey  = "public_key"
	GateSignature  = "signature"
	GateBundleHash = "bundle_hash"
	GateMerkleRoot = "merkle_root"
	GateAuditChain = "audit_chain"
)

// GateOutcome reports what one check did.
type GateOutcome struct {
	Gate   string     `json:"gate"`
	Status GateStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// verifyState is threaded through the gates. Earlier gates fill in what
// later gates read; the SignedBundle itself is never modified.
type verifyState struct {
	sb          *SignedBundle
	keyOverride string

	publicKey  string
	doc        map[string]any
	intent     any
	hasIntent  bool
	entries    []any
	hasEntries bool
}

type gate struct {
	name  string
	check func(*verifyState) (GateStatus, *Error)
}

var gates = []gate{
	{name: GateStructure, check: checkStructure},
	{name: GatePublicKey, check: resolvePublicKey},
	{name: GateSignature, check: checkSignature},
	{name: GateBundleHash, check: checkBundleHash},
	{name: GateMerkleRoot, check: checkMerkleRoot},
	{name: GateAuditChain, check: checkAuditChain},
}

// ParseSignedBundle decodes a signed bundle from JSON.
func ParseSignedBundle(data []byte) (*SignedBundle, error) {
	var sb SignedBundle
	if err := json.Unmarshal(data, &sb); err != nil {
		return nil, WrapError(ErrCodeMalformed, "invalid signed bundle format", err)
	}
	return &sb, nil
}

// VerifyJSON parses data as a signed bundle and verifies it.
func VerifyJSON(data []byte, publicKey string) *VerificationResult {
	sb, err := ParseSignedBundle(data)
	if err != nil {
		return failure(err.(*Error))
	}
	return VerifySignedBundle(sb, publicKey)
}

// VerifySignedBundle checks a signed bundle. publicKey, when non-empty,
// overrides the key embedded in the signer block; it may be base64 or a
// did:key identifier.
//
// Checks run in a fixed order and stop at the first failure: structure,
// key resolution, signature over the bundle, bundle_hash, merkle_root, and
// the intent_hash/prev_hash chain. Absent bundle_hash or merkle_root values
// skip their checks.
func VerifySignedBundle(sb *SignedBundle, publicKey string) *VerificationResult {
	result, _ := Explain(sb, publicKey)
	return result
}

// Explain verifies like VerifySignedBundle and also returns the outcome of
// every check.
func Explain(sb *SignedBundle, publicKey string) (*VerificationResult, []GateOutcome) {
	state := &verifyState{sb: sb, keyOverride: publicKey}
	outcomes := make([]GateOutcome, 0, len(gates))

	var failed *Error
	for _, g := range gates {
		if failed != nil {
			outcomes = append(outcomes, GateOutcome{Gate: g.name, Status: GateNotRun})
			continue
		}
		status, err := g.check(state)
		outcome := GateOutcome{Gate: g.name, Status: status}
		if err != nil {
			outcome.Status = GateFail
			outcome.Reason = err.Message
			failed = err
		}
		outcomes = append(outcomes, outcome)
	}

	if failed != nil {
		return failure(failed), outcomes
	}
	return &VerificationResult{Verified: true}, outcomes
}

func failure(err *Error) *VerificationResult {
	return &VerificationResult{
		Verified: false,
		Errors:   []string{err.Message},
		Code:     err.Code,
	}
}

func checkStructure(s *verifyState) (GateStatus, *Error) {
	if s.sb == nil {
		return GateFail, NewError(ErrCodeMalformed, "missing signed bundle")
	}
	if isAbsent(s.sb.Bundle) {
		return GateFail, NewError(ErrCodeMalformed, "missing bundle")
	}
	if s.sb.Signature == nil {
		return GateFail, NewError(ErrCodeMalformed, "missing signature")
	}
	if s.sb.Signature.SigB64 == "" {
		return GateFail, NewError(ErrCodeMalformed, "missing signature.sig_b64")
	}

	dec := json.NewDecoder(bytes.NewReader(s.sb.Bundle))
	dec.UseNumber()
	if err := dec.Decode(&s.doc); err != nil || s.doc == nil {
		return GateFail, WrapError(ErrCodeMalformed, "bundle is not a JSON object", err)
	}

	if intent, ok := s.doc["intent"]; ok && intent != nil {
		s.intent, s.hasIntent = intent, true
	}
	if entries, ok := s.doc["audit_entries"].([]any); ok {
		s.entries, s.hasEntries = entries, true
	}
	return GatePass, nil
}

func resolvePublicKey(s *verifyState) (GateStatus, *Error) {
	s.publicKey = s.keyOverride
	if s.publicKey == "" {
		s.publicKey = s.sb.Signature.Signer.PublicKeyB64
	}
	if s.publicKey == "" {
		return GateFail, NewError(ErrCodePublicKeyMissing, "missing public key")
	}
	return GatePass, nil
}

func checkSignature(s *verifyState) (GateStatus, *Error) {
	ok, err := crypto.Verify(s.sb.Bundle, s.sb.Signature.SigB64, s.publicKey)
	if err != nil {
		return GateFail, WrapError(ErrCodeSignatureInvalid, ErrSignatureInvalid.Message, err)
	}
	if !ok {
		return GateFail, ErrSignatureInvalid
	}
	return GatePass, nil
}

func checkBundleHash(s *verifyState) (GateStatus, *Error) {
	declared, ok := crypto.ParseTaggedDigest(s.sb.Signature.BundleHash)
	if !ok {
		return GateSkip, nil
	}
	actual, err := crypto.Digest(s.sb.Bundle)
	if err != nil {
		return GateFail, WrapError(ErrCodeMalformed, "canonicalize error", err)
	}
	if declared != actual {
		return GateFail, ErrBundleHashInvalid
	}
	return GatePass, nil
}

func checkMerkleRoot(s *verifyState) (GateStatus, *Error) {
	if s.sb.Signature.MerkleRoot == nil || !s.hasEntries {
		return GateSkip, nil
	}
	declared, ok := crypto.ParseTaggedDigest(*s.sb.Signature.MerkleRoot)
	if !ok {
		return GateSkip, nil
	}

	actual, ok, err := crypto.MerkleRootOf(s.entries)
	if err != nil {
		return GateFail, WrapError(ErrCodeMalformed, "hash audit entry", err)
	}
	// A declared root over an empty trail cannot match.
	if !ok || declared != actual {
		return GateFail, ErrMerkleRootInvalid
	}
	return GatePass, nil
}

func checkAuditChain(s *verifyState) (GateStatus, *Error) {
	if !s.hasIntent || !s.hasEntries {
		return GateSkip, nil
	}

	intentHash, err := crypto.Digest(s.intent)
	if err != nil {
		return GateFail, WrapError(ErrCodeMalformed, "intent hash", err)
	}

	expectedPrev := GenesisHash
	for i, raw := range s.entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return GateFail, NewError(ErrCodeMalformed, fmt.Sprintf("audit entry %d is not an object", i))
		}

		if got, declared := entry["intent_hash"]; declared && got != intentHash {
			return GateFail, NewError(ErrCodeIntentHashMismatch,
				fmt.Sprintf("intent_hash (entry %d): expected %s, got %s", i, intentHash, describe(got)))
		}
		if got, declared := entry["prev_hash"]; declared && got != expectedPrev {
			return GateFail, NewError(ErrCodePrevHashMismatch,
				fmt.Sprintf("prev_hash chain (entry %d): expected %s, got %s", i, expectedPrev, describe(got)))
		}

		// The next link covers the entry as stored, hash fields included.
		expectedPrev, err = crypto.Digest(entry)
		if err != nil {
			return GateFail, WrapError(ErrCodeMalformed, fmt.Sprintf("hash audit entry %d", i), err)
		}
	}
	return GatePass, nil
}

// describe renders a declared hash value for a failure reason.
func describe(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	canon, err := crypto.Canonicalize(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(canon)
}
