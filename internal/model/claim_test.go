package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClaimPayloadLenientDecode(t *testing.T) {
	raw := `{
		"policyId": "42",
		"riskId": "0x01",
		"S": 1700000000,
		"E": "1700003600",
		"Lstar": "0x0f4240",
		"refValue": 1e6,
		"curValue": "not-a-number",
		"payout": 1.5,
		"nonce": null
	}`

	var payload ClaimPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	checks := map[string]struct {
		field Int
		want  string
		set   bool
	}{
		"policyId": {payload.PolicyID, "42", true},
		"S":        {payload.S, "1700000000", true},
		"E":        {payload.E, "1700003600", true},
		"Lstar":    {payload.Lstar, "1000000", true},
		"refValue": {payload.RefValue, "1000000", true},
		"curValue": {payload.CurValue, "0", false},
		"payout":   {payload.Payout, "0", false},
		"nonce":    {payload.Nonce, "0", false},
		"deadline": {payload.Deadline, "0", false},
	}
	for name, check := range checks {
		if got := check.field.String(); got != check.want {
			t.Fatalf("%s: got %s want %s", name, got, check.want)
		}
		if check.field.IsSet() != check.set {
			t.Fatalf("%s: set=%v want %v", name, check.field.IsSet(), check.set)
		}
	}

	if !payload.RiskID.IsSet() || payload.RiskID.Hash.Big().Int64() != 1 {
		t.Fatalf("riskId mismatch: %s", payload.RiskID.Hex())
	}
}

func TestClaimPayloadWrongTypesDoNotFail(t *testing.T) {
	raw := `{"policyId": {"nested": true}, "riskId": 7, "S": [1]}`

	var auth ClaimAuthorization
	if err := json.Unmarshal([]byte(`{"payload":`+raw+`,"expiresAt":10}`), &auth); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if auth.Payload.PolicyID.IsSet() || auth.Payload.RiskID.IsSet() || auth.Payload.S.IsSet() {
		t.Fatalf("expected unset fields: %+v", auth.Payload)
	}
	if auth.ExpiresAt != 10 {
		t.Fatalf("expiresAt mismatch: %d", auth.ExpiresAt)
	}
}

func TestIntOrFallback(t *testing.T) {
	var unset Int
	if got := unset.Or(IntFromUint64(9).Big()); got.Int64() != 9 {
		t.Fatalf("fallback not applied: %s", got)
	}
	if got := IntFromUint64(3).Or(IntFromUint64(9).Big()); got.Int64() != 3 {
		t.Fatalf("value overridden: %s", got)
	}
}

func TestDraftEffectiveFields(t *testing.T) {
	draft := PolicyDraft{
		QuoteDeadline:      100,
		QuoteSignature:     "0xaa",
		DistributorAddress: "0x1111111111111111111111111111111111111111",
		MintParams:         MintParams{PolicyType: 0},
	}
	if draft.Deadline() != 100 || draft.Signature() != "0xaa" {
		t.Fatalf("defaults mismatch")
	}

	draft.OnchainCalldata = &OnchainCalldata{
		Deadline:           200,
		Signature:          "0xbb",
		DistributorAddress: "0x2222222222222222222222222222222222222222",
		MintParams:         &MintParams{PolicyType: 1},
	}
	if draft.Deadline() != 200 || draft.Signature() != "0xbb" {
		t.Fatalf("override mismatch")
	}
	if draft.Distributor() != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("distributor override mismatch")
	}
	if draft.EffectiveMintParams().PolicyType != 1 {
		t.Fatalf("mint params override mismatch")
	}

	if !draft.Expired(time.Unix(200, 0)) || draft.Expired(time.Unix(199, 0)) {
		t.Fatalf("expiry boundary mismatch")
	}
}

func TestCoverageRequestJSON(t *testing.T) {
	req := CoverageRequest{
		Product:        ProductDepegLP,
		Wallet:         "0xabc",
		TermDays:       30,
		InsuredAmount:  decimal.RequireFromString("500.25"),
		IdempotencyKey: "key-1",
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["insuredAmount"].(float64); !ok {
		t.Fatalf("insuredAmount should be a number: %s", data)
	}
	if decoded["termDays"].(float64) != 30 || decoded["idempotencyKey"] != "key-1" {
		t.Fatalf("payload mismatch: %s", data)
	}
	if _, ok := decoded["params"].(map[string]interface{}); !ok {
		t.Fatalf("params should default to an object: %s", data)
	}
}

func TestIntRejectsNegativeAndOversized(t *testing.T) {
	cases := map[string]struct {
		want string
		set  bool
	}{
		`"0x-5"`:       {"0", false},
		`"-3"`:         {"0", false},
		`-1e3`:         {"0", false},
		`1e100`:        {"0", false},
		`"1e20000000"`: {"0", false},
		`"0xff"`:       {"255", true},
		`1e20`:         {"100000000000000000000", true},
	}
	for raw, tc := range cases {
		var v Int
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("%s: unmarshal failed: %v", raw, err)
		}
		if v.String() != tc.want || v.IsSet() != tc.set {
			t.Fatalf("%s: got %s set=%v, want %s set=%v", raw, v.String(), v.IsSet(), tc.want, tc.set)
		}
	}

	var payload ClaimPayload
	if err := json.Unmarshal([]byte(`{"payout":"0x-5","nonce":"0x2"}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Payout.IsSet() || payload.Payout.Big().Sign() != 0 {
		t.Fatalf("negative hex payout should default to zero, got %s", payload.Payout)
	}
	if payload.Nonce.String() != "2" {
		t.Fatalf("nonce mismatch: %s", payload.Nonce)
	}
}
