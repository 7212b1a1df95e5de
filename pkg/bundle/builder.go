package bundle

import (
	"fmt"
	"time"

	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/google/uuid"
)

// AuditEntryParams describes an audit entry for Builder.CreateAuditEntry.
// Empty identity fields are taken from the builder's intent and policy
// decision; an empty AuditID or Timestamp is generated.
type AuditEntryParams struct {
	AuditID        string
	Timestamp      string
	AgentID        string
	HumanID        string
	IntentID       string
	PolicyDecision string
	Outcome        string
	Evidence       *AuditEvidence
}

// Builder assembles a CitizenshipBundle. Errors are deferred to Build.
type Builder struct {
	hbr      *HumanBindingRecord
	passport *AgentPassport
	intent   *Intent
	policy   *PolicyDecision
	entries  []AuditEntry

	now func() time.Time
	err error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock overrides the clock used for generated timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// HumanBindingRecord sets the human binding record.
func (b *Builder) HumanBindingRecord(r HumanBindingRecord) *Builder {
	b.hbr = &r
	return b
}

// AgentPassport sets the agent passport.
func (b *Builder) AgentPassport(p AgentPassport) *Builder {
	b.passport = &p
	return b
}

// Intent sets the intent every audit entry is bound to.
func (b *Builder) Intent(i Intent) *Builder {
	b.intent = &i
	return b
}

// PolicyDecision sets the policy decision.
func (b *Builder) PolicyDecision(p PolicyDecision) *Builder {
	b.policy = &p
	return b
}

// AddAuditEntry appends a pre-built entry as is.
func (b *Builder) AddAuditEntry(e AuditEntry) *Builder {
	b.entries = append(b.entries, e)
	return b
}

// CreateAuditEntry appends an entry whose intent_hash is the digest of the
// intent and whose prev_hash links to the previous entry (GENESIS first).
func (b *Builder) CreateAuditEntry(p AuditEntryParams) *Builder {
	if b.err != nil {
		return b
	}
	if b.intent == nil {
		b.err = ErrIntentRequired
		return b
	}

	intentHash, err := crypto.Digest(b.intent)
	if err != nil {
		b.err = fmt.Errorf("intent hash: %w", err)
		return b
	}

	prevHash := GenesisHash
	if n := len(b.entries); n > 0 {
		prevHash, err = crypto.Digest(b.entries[n-1])
		if err != nil {
			b.err = fmt.Errorf("prev hash: %w", err)
			return b
		}
	}

	entry := AuditEntry{
		DCPVersion:     Version,
		AuditID:        p.AuditID,
		PrevHash:       prevHash,
		Timestamp:      p.Timestamp,
		AgentID:        firstNonEmpty(p.AgentID, b.intent.AgentID),
		HumanID:        firstNonEmpty(p.HumanID, b.intent.HumanID),
		IntentID:       firstNonEmpty(p.IntentID, b.intent.IntentID),
		IntentHash:     intentHash,
		PolicyDecision: p.PolicyDecision,
		Outcome:        p.Outcome,
	}
	if entry.AuditID == "" {
		entry.AuditID = "audit_" + uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = b.now().UTC().Format(time.RFC3339)
	}
	if entry.PolicyDecision == "" && b.policy != nil {
		entry.PolicyDecision = b.policy.Decision
	}
	if p.Evidence != nil {
		entry.Evidence = *p.Evidence
	}

	b.entries = append(b.entries, entry)
	return b
}

// Build returns the assembled bundle, or the first error recorded while
// building, ErrMissingArtifact for any unset record, or ErrNoAuditEntries.
func (b *Builder) Build() (*CitizenshipBundle, error) {
	if b.err != nil {
		return nil, b.err
	}
	switch {
	case b.hbr == nil:
		return nil, fmt.Errorf("%w: human_binding_record", ErrMissingArtifact)
	case b.passport == nil:
		return nil, fmt.Errorf("%w: agent_passport", ErrMissingArtifact)
	case b.intent == nil:
		return nil, fmt.Errorf("%w: intent", ErrMissingArtifact)
	case b.policy == nil:
		return nil, fmt.Errorf("%w: policy_decision", ErrMissingArtifact)
	case len(b.entries) == 0:
		return nil, ErrNoAuditEntries
	}

	entries := make([]AuditEntry, len(b.entries))
	copy(entries, b.entries)

	return &CitizenshipBundle{
		HumanBindingRecord: *b.hbr,
		AgentPassport:      *b.passport,
		Intent:             *b.intent,
		PolicyDecision:     *b.policy,
		AuditEntries:       entries,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
