package bundle_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dcp-ai/dcp-core/pkg/bundle"
	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testKeypair(t *testing.T, b byte) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.NewKeyGenerator(bytes.NewReader(bytes.Repeat([]byte{b}, 32))).Generate()
	require.NoError(t, err)
	return kp
}

func strPtr(s string) *string { return &s }

// newTestBuilder returns a builder holding every record except audit entries.
func newTestBuilder(kp *crypto.Keypair) *bundle.Builder {
	return bundle.NewBuilder().
		WithClock(clock).
		HumanBindingRecord(bundle.HumanBindingRecord{
			DCPVersion:     bundle.Version,
			HumanID:        "human_001",
			LegalName:      "Ada Lovelace",
			EntityType:     "natural_person",
			Jurisdiction:   "GB",
			LiabilityMode:  "owner_responsible",
			OverrideRights: true,
			IssuedAt:       "2026-01-01T00:00:00Z",
			Signature:      "hbr-sig",
		}).
		AgentPassport(bundle.AgentPassport{
			DCPVersion:            bundle.Version,
			AgentID:               "agent_001",
			PublicKey:             kp.PublicKey,
			HumanBindingReference: "human_001",
			Capabilities:          []string{"email"},
			RiskTier:              "low",
			CreatedAt:             "2026-01-01T00:00:00Z",
			Status:                "active",
			Signature:             "passport-sig",
		}).
		Intent(bundle.Intent{
			DCPVersion:      bundle.Version,
			IntentID:        "intent_001",
			AgentID:         "agent_001",
			HumanID:         "human_001",
			Timestamp:       "2026-03-01T11:59:00Z",
			ActionType:      "send_email",
			Target:          bundle.IntentTarget{Channel: "email", To: strPtr("bob@example.com")},
			DataClasses:     []string{"contact_info"},
			EstimatedImpact: "low",
		}).
		PolicyDecision(bundle.PolicyDecision{
			DCPVersion: bundle.Version,
			IntentID:   "intent_001",
			Decision:   "approve",
			RiskScore:  0.25,
			Reasons:    []string{"low risk"},
		})
}

// buildBundle returns a valid bundle with n chained audit entries.
func buildBundle(t *testing.T, kp *crypto.Keypair, n int) *bundle.CitizenshipBundle {
	t.Helper()
	b := newTestBuilder(kp)
	for i := 0; i < n; i++ {
		b.CreateAuditEntry(bundle.AuditEntryParams{
			AuditID: "audit_" + string(rune('a'+i)),
			Outcome: "sent",
		})
	}
	cb, err := b.Build()
	require.NoError(t, err)
	return cb
}

func signBundle(t *testing.T, b any, kp *crypto.Keypair) *bundle.SignedBundle {
	t.Helper()
	sb, err := bundle.SignBundle(b, kp.SecretKey, bundle.SignOptions{Now: clock})
	require.NoError(t, err)
	return sb
}

// toDoc converts any JSON-shaped value to its generic map form.
func toDoc(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func entriesOf(doc map[string]any) []any {
	return doc["audit_entries"].([]any)
}
