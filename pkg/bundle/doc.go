// Package bundle assembles, signs and verifies DCP Citizenship Bundles.
//
// A Citizenship Bundle binds a human binding record, an agent passport, an
// intent, a policy decision and a hash-chained audit trail. A SignedBundle
// adds a detached Ed25519 signature over the bundle's canonical JSON plus
// the bundle digest and the Merkle root of the audit entries.
//
// Typical use:
//
//	b, err := bundle.NewBuilder().
//		HumanBindingRecord(hbr).
//		AgentPassport(passport).
//		Intent(intent).
//		PolicyDecision(decision).
//		CreateAuditEntry(bundle.AuditEntryParams{Outcome: "sent"}).
//		Build()
//	signed, err := bundle.SignBundle(b, secretKey, bundle.SignOptions{})
//	result := bundle.VerifySignedBundle(signed, "")
//
// Verification is a pure function of its input and safe for concurrent use.
package bundle
