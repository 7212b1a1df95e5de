package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// Version is the dcp_version stamped on records created by this package.
	Version = "1.0"

	// GenesisHash is the prev_hash expected on the first audit entry.
	GenesisHash = "GENESIS"

	// AlgEd25519 is the signature algorithm identifier of a bundle signature.
	AlgEd25519 = "ed25519"
)

// HumanBindingRecord binds a legally responsible human or organisation to
// the agents acting for it.
type HumanBindingRecord struct {
	DCPVersion     string  `json:"dcp_version"`
	HumanID        string  `json:"human_id"`
	LegalName      string  `json:"legal_name"`
	EntityType     string  `json:"entity_type"`
	Jurisdiction   string  `json:"jurisdiction"`
	LiabilityMode  string  `json:"liability_mode"`
	OverrideRights bool    `json:"override_rights"`
	IssuedAt       string  `json:"issued_at"`
	ExpiresAt      *string `json:"expires_at"`
	Contact        *string `json:"contact,omitempty"`
	Signature      string  `json:"signature"`
}

// AgentPassport is the identity document of an agent.
type AgentPassport struct {
	DCPVersion            string   `json:"dcp_version"`
	AgentID               string   `json:"agent_id"`
	PublicKey             string   `json:"public_key"`
	HumanBindingReference string   `json:"human_binding_reference"`
	Capabilities          []string `json:"capabilities,omitempty"`
	RiskTier              string   `json:"risk_tier,omitempty"`
	CreatedAt             string   `json:"created_at"`
	Status                string   `json:"status"`
	Signature             string   `json:"signature"`
}

// IntentTarget is where an intended action is directed.
type IntentTarget struct {
	Channel string  `json:"channel"`
	To      *string `json:"to,omitempty"`
	Domain  *string `json:"domain,omitempty"`
	URL     *string `json:"url,omitempty"`
}

// Intent declares an action an agent is about to take.
type Intent struct {
	DCPVersion      string       `json:"dcp_version"`
	IntentID        string       `json:"intent_id"`
	AgentID         string       `json:"agent_id"`
	HumanID         string       `json:"human_id"`
	Timestamp       string       `json:"timestamp"`
	ActionType      string       `json:"action_type"`
	Target          IntentTarget `json:"target"`
	DataClasses     []string     `json:"data_classes"`
	EstimatedImpact string       `json:"estimated_impact"`
	RequiresConsent *bool        `json:"requires_consent,omitempty"`
}

// PolicyDecision records the outcome of evaluating an Intent.
type PolicyDecision struct {
	DCPVersion string   `json:"dcp_version"`
	IntentID   string   `json:"intent_id"`
	Decision   string   `json:"decision"`
	RiskScore  float64  `json:"risk_score"`
	Reasons    []string `json:"reasons"`
}

// AuditEvidence points at what an audited action produced.
type AuditEvidence struct {
	Tool      *string `json:"tool"`
	ResultRef *string `json:"result_ref"`
}

// AuditEntry is one link of the append-only audit trail.
type AuditEntry struct {
	DCPVersion     string        `json:"dcp_version"`
	AuditID        string        `json:"audit_id"`
	PrevHash       string        `json:"prev_hash"`
	Timestamp      string        `json:"timestamp"`
	AgentID        string        `json:"agent_id"`
	HumanID        string        `json:"human_id"`
	IntentID       string        `json:"intent_id"`
	IntentHash     string        `json:"intent_hash"`
	PolicyDecision string        `json:"policy_decision"`
	Outcome        string        `json:"outcome"`
	Evidence       AuditEvidence `json:"evidence"`
}

// CitizenshipBundle groups every record of one agent action.
type CitizenshipBundle struct {
	HumanBindingRecord HumanBindingRecord `json:"human_binding_record"`
	AgentPassport      AgentPassport      `json:"agent_passport"`
	Intent             Intent             `json:"intent"`
	PolicyDecision     PolicyDecision     `json:"policy_decision"`
	AuditEntries       []AuditEntry       `json:"audit_entries"`
}

// Signer describes who produced a bundle signature.
type Signer struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	PublicKeyB64 string `json:"public_key_b64"`
}

// BundleSignature is the signature block of a SignedBundle. Only the
// bundle is covered by SigB64; this block's own fields are not signed.
type BundleSignature struct {
	Alg        string  `json:"alg"`
	CreatedAt  string  `json:"created_at"`
	Signer     Signer  `json:"signer"`
	BundleHash string  `json:"bundle_hash,omitempty"`
	MerkleRoot *string `json:"merkle_root"`
	SigB64     string  `json:"sig_b64"`
}

// UnmarshalJSON decodes a signature block. A bundle_hash or merkle_root
// that is not a JSON string is left unset, so its check is skipped.
func (s *BundleSignature) UnmarshalJSON(data []byte) error {
	type plain BundleSignature
	var aux struct {
		plain
		BundleHash json.RawMessage `json:"bundle_hash"`
		MerkleRoot json.RawMessage `json:"merkle_root"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*s = BundleSignature(aux.plain)
	s.BundleHash = ""
	s.MerkleRoot = nil
	if v, ok := jsonString(aux.BundleHash); ok {
		s.BundleHash = v
	}
	if v, ok := jsonString(aux.MerkleRoot); ok {
		s.MerkleRoot = &v
	}
	return nil
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// SignedBundle is a bundle plus its detached signature block.
//
// Bundle is kept as raw JSON so verification digests it exactly as stored,
// including fields this package does not model.
type SignedBundle struct {
	Bundle    json.RawMessage  `json:"bundle"`
	Signature *BundleSignature `json:"signature"`
}

// DecodeBundle returns the typed view of the signed bundle.
func (sb *SignedBundle) DecodeBundle() (*CitizenshipBundle, error) {
	if isAbsent(sb.Bundle) {
		return nil, fmt.Errorf("%w: bundle", ErrMissingArtifact)
	}
	var b CitizenshipBundle
	if err := json.Unmarshal(sb.Bundle, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &b, nil
}

// VerificationResult is the verdict of VerifySignedBundle. Errors is set
// only when Verified is false.
type VerificationResult struct {
	Verified bool     `json:"verified"`
	Errors   []string `json:"errors,omitempty"`

	// Code is the error code of the failing check. It is not serialized.
	Code string `json:"-"`
}

// isAbsent treats an empty, null or empty-object bundle as missing.
func isAbsent(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}":
		return true
	}
	return false
}
