package bundle_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dcp-ai/dcp-core/pkg/bundle"
	"github.com/dcp-ai/dcp-core/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flipFirstChar(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

func TestVerifySignedBundle_EndToEnd(t *testing.T) {
	kp := testKeypair(t, 4)
	sb := signBundle(t, buildBundle(t, kp, 1), kp)

	result := bundle.VerifySignedBundle(sb, kp.PublicKey)
	assert.True(t, result.Verified)
	assert.Empty(t, result.Errors)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"verified":true}`, string(data))

	sb.Signature.SigB64 = flipFirstChar(sb.Signature.SigB64)
	result = bundle.VerifySignedBundle(sb, kp.PublicKey)
	data, err = json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"verified":false,"errors":["SIGNATURE INVALID"]}`, string(data))
	assert.Equal(t, bundle.ErrCodeSignatureInvalid, result.Code)
}

func TestVerifySignedBundle_EmbeddedKey(t *testing.T) {
	kp := testKeypair(t, 4)
	sb := signBundle(t, buildBundle(t, kp, 3), kp)

	result := bundle.VerifySignedBundle(sb, "")
	assert.True(t, result.Verified, result.Errors)
}

func TestVerifySignedBundle_KeyOverride(t *testing.T) {
	kp := testKeypair(t, 4)
	other := testKeypair(t, 5)
	sb := signBundle(t, buildBundle(t, kp, 1), kp)

	t.Run("override wins over embedded key", func(t *testing.T) {
		result := bundle.VerifySignedBundle(sb, other.PublicKey)
		assert.False(t, result.Verified)
		assert.Equal(t, []string{"SIGNATURE INVALID"}, result.Errors)
	})

	t.Run("did:key override", func(t *testing.T) {
		didKey, err := kp.DID()
		require.NoError(t, err)
		result := bundle.VerifySignedBundle(sb, didKey)
		assert.True(t, result.Verified, result.Errors)
	})

	t.Run("undecodable override", func(t *testing.T) {
		result := bundle.VerifySignedBundle(sb, "not base64!")
		assert.Equal(t, []string{"SIGNATURE INVALID"}, result.Errors)
	})
}

func TestVerifySignedBundle_Structure(t *testing.T) {
	kp := testKeypair(t, 4)
	valid := signBundle(t, buildBundle(t, kp, 1), kp)

	tests := []struct {
		name string
		sb   *bundle.SignedBundle
		want string
		code string
	}{
		{name: "nil", sb: nil, want: "missing signed bundle", code: bundle.ErrCodeMalformed},
		{name: "no bundle", sb: &bundle.SignedBundle{Signature: valid.Signature}, want: "missing bundle", code: bundle.ErrCodeMalformed},
		{name: "null bundle", sb: &bundle.SignedBundle{Bundle: json.RawMessage("null"), Signature: valid.Signature}, want: "missing bundle", code: bundle.ErrCodeMalformed},
		{name: "no signature", sb: &bundle.SignedBundle{Bundle: valid.Bundle}, want: "missing signature", code: bundle.ErrCodeMalformed},
		{
			name: "no sig_b64",
			sb:   &bundle.SignedBundle{Bundle: valid.Bundle, Signature: &bundle.BundleSignature{Signer: valid.Signature.Signer}},
			want: "missing signature.sig_b64",
			code: bundle.ErrCodeMalformed,
		},
		{
			name: "bundle not an object",
			sb:   &bundle.SignedBundle{Bundle: json.RawMessage(`[1,2]`), Signature: valid.Signature},
			want: "bundle is not a JSON object",
			code: bundle.ErrCodeMalformed,
		},
		{
			name: "no public key",
			sb:   &bundle.SignedBundle{Bundle: valid.Bundle, Signature: &bundle.BundleSignature{SigB64: valid.Signature.SigB64}},
			want: "missing public key",
			code: bundle.ErrCodePublicKeyMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bundle.VerifySignedBundle(tt.sb, "")
			assert.False(t, result.Verified)
			assert.Equal(t, []string{tt.want}, result.Errors)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestVerifySignedBundle_BundleHash(t *testing.T) {
	kp := testKeypair(t, 4)

	t.Run("mismatch", func(t *testing.T) {
		sb := signBundle(t, buildBundle(t, kp, 1), kp)
		sb.Signature.BundleHash = crypto.TagDigest(crypto.HashBytes([]byte("other")))
		result := bundle.VerifySignedBundle(sb, "")
		assert.Equal(t, []string{"BUNDLE HASH MISMATCH"}, result.Errors)
		assert.Equal(t, bundle.ErrCodeBundleHashMismatch, result.Code)
	})

	t.Run("absent is not asserted", func(t *testing.T) {
		sb := signBundle(t, buildBundle(t, kp, 1), kp)
		sb.Signature.BundleHash = ""
		sb.Signature.MerkleRoot = nil
		assert.True(t, bundle.VerifySignedBundle(sb, "").Verified)
	})

	t.Run("unrecognized tag is not asserted", func(t *testing.T) {
		sb := signBundle(t, buildBundle(t, kp, 1), kp)
		sb.Signature.BundleHash = "sha512:whatever"
		other := "blake3:whatever"
		sb.Signature.MerkleRoot = &other
		assert.True(t, bundle.VerifySignedBundle(sb, "").Verified)
	})
}

func TestVerifySignedBundle_MerkleRoot(t *testing.T) {
	kp := testKeypair(t, 4)

	t.Run("mismatch", func(t *testing.T) {
		sb := signBundle(t, buildBundle(t, kp, 3), kp)
		wrong := crypto.TagDigest(crypto.HashBytes([]byte("other")))
		sb.Signature.MerkleRoot = &wrong
		result := bundle.VerifySignedBundle(sb, "")
		assert.Equal(t, []string{"MERKLE ROOT MISMATCH"}, result.Errors)
		assert.Equal(t, bundle.ErrCodeMerkleRootMismatch, result.Code)
	})

	t.Run("entries missing skips check", func(t *testing.T) {
		sb := signBundle(t, map[string]any{"intent": map[string]any{"intent_id": "x"}}, kp)
		declared := crypto.TagDigest(crypto.HashBytes([]byte("anything")))
		sb.Signature.MerkleRoot = &declared
		assert.True(t, bundle.VerifySignedBundle(sb, "").Verified)
	})

	t.Run("declared root over empty trail", func(t *testing.T) {
		sb := signBundle(t, map[string]any{"audit_entries": []any{}}, kp)
		declared := crypto.TagDigest(crypto.HashBytes([]byte("anything")))
		sb.Signature.MerkleRoot = &declared
		assert.Equal(t, []string{"MERKLE ROOT MISMATCH"}, bundle.VerifySignedBundle(sb, "").Errors)
	})
}

func TestVerifySignedBundle_PrevHashChainBreak(t *testing.T) {
	kp := testKeypair(t, 4)
	doc := toDoc(t, buildBundle(t, kp, 3))
	entries := entriesOf(doc)

	expected, err := crypto.Digest(entries[0])
	require.NoError(t, err)

	entries[1].(map[string]any)["prev_hash"] = "corrupted"
	// Unrelated damage further down must not be reported.
	entries[2].(map[string]any)["intent_hash"] = "also-corrupted"

	// Re-sign so only the chain check can fail.
	sb := signBundle(t, doc, kp)
	result := bundle.VerifySignedBundle(sb, "")

	assert.False(t, result.Verified)
	assert.Equal(t, []string{fmt.Sprintf("prev_hash chain (entry 1): expected %s, got corrupted", expected)}, result.Errors)
	assert.Equal(t, bundle.ErrCodePrevHashMismatch, result.Code)
}

func TestVerifySignedBundle_IntentHashMismatch(t *testing.T) {
	kp := testKeypair(t, 4)
	cb := buildBundle(t, kp, 2)
	intentHash, err := crypto.Digest(cb.Intent)
	require.NoError(t, err)

	doc := toDoc(t, cb)
	doc["intent"].(map[string]any)["action_type"] = "wire_transfer"
	tampered, err := crypto.Digest(doc["intent"])
	require.NoError(t, err)

	sb := signBundle(t, doc, kp)
	result := bundle.VerifySignedBundle(sb, "")
	assert.Equal(t, []string{fmt.Sprintf("intent_hash (entry 0): expected %s, got %s", tampered, intentHash)}, result.Errors)
	assert.Equal(t, bundle.ErrCodeIntentHashMismatch, result.Code)
}

func TestVerifySignedBundle_UndeclaredHashesStillChain(t *testing.T) {
	kp := testKeypair(t, 4)

	t.Run("omitted fields are skipped", func(t *testing.T) {
		doc := toDoc(t, buildBundle(t, kp, 3))
		entries := entriesOf(doc)
		first := entries[0].(map[string]any)
		delete(first, "intent_hash")
		delete(first, "prev_hash")

		// entry 1 must now link to entry 0 as stored, without its hash fields.
		link, err := crypto.Digest(first)
		require.NoError(t, err)
		entries[1].(map[string]any)["prev_hash"] = link
		link, err = crypto.Digest(entries[1])
		require.NoError(t, err)
		entries[2].(map[string]any)["prev_hash"] = link

		result := bundle.VerifySignedBundle(signBundle(t, doc, kp), "")
		assert.True(t, result.Verified, result.Errors)
	})

	t.Run("unasserted link only hides edits nothing later covers", func(t *testing.T) {
		doc := toDoc(t, buildBundle(t, kp, 2))
		entries := entriesOf(doc)
		second := entries[1].(map[string]any)
		delete(second, "prev_hash")
		entries[0].(map[string]any)["outcome"] = "rewritten"
		// entry 1 no longer asserts its link and is the last entry
		assert.True(t, bundle.VerifySignedBundle(signBundle(t, doc, kp), "").Verified)

		doc = toDoc(t, buildBundle(t, kp, 3))
		entries = entriesOf(doc)
		middle := entries[1].(map[string]any)
		delete(middle, "prev_hash")
		middle["outcome"] = "rewritten"
		result := bundle.VerifySignedBundle(signBundle(t, doc, kp), "")
		assert.False(t, result.Verified)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "prev_hash chain (entry 2)")
	})
}

func TestVerifySignedBundle_NonStringDeclaredHash(t *testing.T) {
	kp := testKeypair(t, 4)
	doc := toDoc(t, buildBundle(t, kp, 1))
	entriesOf(doc)[0].(map[string]any)["prev_hash"] = nil

	result := bundle.VerifySignedBundle(signBundle(t, doc, kp), "")
	assert.Equal(t, []string{"prev_hash chain (entry 0): expected GENESIS, got null"}, result.Errors)
}

func TestVerifySignedBundle_EntryNotObject(t *testing.T) {
	kp := testKeypair(t, 4)
	doc := toDoc(t, buildBundle(t, kp, 1))
	doc["audit_entries"] = []any{"not-an-entry"}

	result := bundle.VerifySignedBundle(signBundle(t, doc, kp), "")
	assert.Equal(t, []string{"audit entry 0 is not an object"}, result.Errors)
	assert.Equal(t, bundle.ErrCodeMalformed, result.Code)
}

func TestVerifySignedBundle_PreservesUnknownFields(t *testing.T) {
	kp := testKeypair(t, 4)
	doc := toDoc(t, buildBundle(t, kp, 1))
	doc["x_extension"] = map[string]any{"note": "kept"}
	entriesOf(doc)[0].(map[string]any)["x_trace"] = "t-1"

	data, err := json.Marshal(signBundle(t, doc, kp))
	require.NoError(t, err)

	result := bundle.VerifyJSON(data, "")
	assert.True(t, result.Verified, result.Errors)
}

func TestVerifyJSON_Malformed(t *testing.T) {
	result := bundle.VerifyJSON([]byte(`{"bundle":`), "")
	assert.False(t, result.Verified)
	assert.Equal(t, []string{"invalid signed bundle format"}, result.Errors)
}

func TestVerifySignedBundle_DoesNotMutateInput(t *testing.T) {
	kp := testKeypair(t, 4)
	sb := signBundle(t, buildBundle(t, kp, 2), kp)
	before, err := json.Marshal(sb)
	require.NoError(t, err)

	bundle.VerifySignedBundle(sb, "")

	after, err := json.Marshal(sb)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestVerifySignedBundle_SignatureBlockNotSigned(t *testing.T) {
	kp := testKeypair(t, 4)
	sb := signBundle(t, buildBundle(t, kp, 1), kp)
	sb.Signature.CreatedAt = "1999-01-01T00:00:00Z"
	sb.Signature.Signer.ID = "someone-else"

	assert.True(t, bundle.VerifySignedBundle(sb, "").Verified)
}

func TestVerifySignedBundle_Concurrent(t *testing.T) {
	kp := testKeypair(t, 4)
	sb := signBundle(t, buildBundle(t, kp, 5), kp)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = bundle.VerifySignedBundle(sb, "").Verified
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "goroutine %d", i)
	}
}

func TestExplain(t *testing.T) {
	kp := testKeypair(t, 4)

	t.Run("all gates", func(t *testing.T) {
		sb := signBundle(t, buildBundle(t, kp, 2), kp)
		sb.Signature.BundleHash = ""

		result, outcomes := bundle.Explain(sb, "")
		assert.True(t, result.Verified)
		assert.Equal(t, []bundle.GateOutcome{
			{Gate: bundle.GateStructure, Status: bundle.GatePass},
			{Gate: bundle.GatePublicKey, Status: bundle.GatePass},
			{Gate: bundle.GateSignature, Status: bundle.GatePass},
			{Gate: bundle.GateBundleHash, Status: bundle.GateSkip},
			{Gate: bundle.GateMerkleRoot, Status: bundle.GatePass},
			{Gate: bundle.GateAuditChain, Status: bundle.GatePass},
		}, outcomes)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		sb := signBundle(t, buildBundle(t, kp, 2), kp)
		sb.Signature.SigB64 = flipFirstChar(sb.Signature.SigB64)

		result, outcomes := bundle.Explain(sb, "")
		assert.False(t, result.Verified)
		assert.Equal(t, []bundle.GateOutcome{
			{Gate: bundle.GateStructure, Status: bundle.GatePass},
			{Gate: bundle.GatePublicKey, Status: bundle.GatePass},
			{Gate: bundle.GateSignature, Status: bundle.GateFail, Reason: "SIGNATURE INVALID"},
			{Gate: bundle.GateBundleHash, Status: bundle.GateNotRun},
			{Gate: bundle.GateMerkleRoot, Status: bundle.GateNotRun},
			{Gate: bundle.GateAuditChain, Status: bundle.GateNotRun},
		}, outcomes)
	})
}

func TestError(t *testing.T) {
	err := bundle.WrapError(bundle.ErrCodeSignatureInvalid, "SIGNATURE INVALID", crypto.ErrDecode)
	assert.ErrorIs(t, err, bundle.ErrSignatureInvalid)
	assert.ErrorIs(t, err, crypto.ErrDecode)
	assert.Equal(t, bundle.ErrCodeSignatureInvalid, bundle.GetErrorCode(err))
	assert.Equal(t, "", bundle.GetErrorCode(crypto.ErrDecode))
	assert.Contains(t, err.Error(), "SIGNATURE_INVALID: SIGNATURE INVALID")
}

func TestVerifyJSON_NonStringDeclaredDigests(t *testing.T) {
	kp := testKeypair(t, 4)
	sb := signBundle(t, buildBundle(t, kp, 2), kp)

	tests := []struct {
		name       string
		bundleHash any
		merkleRoot any
	}{
		{name: "numbers", bundleHash: 42, merkleRoot: 7},
		{name: "objects", bundleHash: map[string]any{"alg": "sha256"}, merkleRoot: []any{"sha256:00"}},
		{name: "null", bundleHash: nil, merkleRoot: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := toDoc(t, sb)
			sig := envelope["signature"].(map[string]any)
			sig["bundle_hash"] = tt.bundleHash
			sig["merkle_root"] = tt.merkleRoot
			data, err := json.Marshal(envelope)
			require.NoError(t, err)

			parsed, err := bundle.ParseSignedBundle(data)
			require.NoError(t, err)
			assert.Empty(t, parsed.Signature.BundleHash)
			assert.Nil(t, parsed.Signature.MerkleRoot)

			result, outcomes := bundle.Explain(parsed, "")
			assert.True(t, result.Verified, result.Errors)
			assert.Equal(t, bundle.GateSkip, outcomes[3].Status)
			assert.Equal(t, bundle.GateSkip, outcomes[4].Status)
			assert.True(t, bundle.VerifyJSON(data, "").Verified)
		})
	}

	t.Run("string digests still decode", func(t *testing.T) {
		data, err := json.Marshal(sb)
		require.NoError(t, err)
		parsed, err := bundle.ParseSignedBundle(data)
		require.NoError(t, err)
		assert.Equal(t, sb.Signature, parsed.Signature)
	})
}

func TestVerifySignedBundle_NullIntentSkipsChain(t *testing.T) {
	kp := testKeypair(t, 4)
	doc := toDoc(t, buildBundle(t, kp, 2))
	doc["intent"] = nil
	entriesOf(doc)[1].(map[string]any)["prev_hash"] = "corrupted"

	result, outcomes := bundle.Explain(signBundle(t, doc, kp), "")
	assert.True(t, result.Verified, result.Errors)
	assert.Equal(t, bundle.GateSkip, outcomes[5].Status)
}
