package settlement

import (
	"math/big"
	"strings"

	"liquidityGuard/internal/amount"
	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/model"
)

// buyPolicyCalldata encodes the draft's effective mint parameters. It is
// built before any transaction is sent so a malformed draft costs nothing.
func buyPolicyCalldata(draft model.PolicyDraft, premium *big.Int) ([]byte, error) {
	mp := draft.EffectiveMintParams()

	riskHex := firstNonEmpty(mp.RiskID, draft.RiskID)
	if riskHex == "" {
		return nil, apperr.Validation("quote %s has no risk id", draft.DraftID)
	}
	riskID, err := chain.ParseBytes32(riskHex)
	if err != nil {
		return nil, apperr.Validation("quote %s: %v", draft.DraftID, err)
	}

	extraHex := mp.ExtraData
	if extraHex == "" && draft.OnchainCalldata != nil {
		extraHex = draft.OnchainCalldata.ExtraData
	}
	extra, err := chain.ParseBytes(extraHex)
	if err != nil {
		return nil, apperr.Validation("quote %s extra data: %v", draft.DraftID, err)
	}

	signature, err := chain.ParseBytes(draft.Signature())
	if err != nil || len(signature) == 0 {
		return nil, apperr.Validation("quote %s has no usable signature", draft.DraftID)
	}

	coverageCap := mp.CoverageCap.Big()
	if !mp.CoverageCap.IsSet() && draft.OnchainCalldata != nil {
		if v, ok := amount.ParseAtomic(draft.OnchainCalldata.CoverageCapAtomic); ok {
			coverageCap = v
		}
	}

	params := chain.BuyPolicyParams{
		PolicyType:    mp.PolicyType,
		RiskID:        riskID,
		InsuredAmount: mp.InsuredAmount.Big(),
		CoverageCap:   coverageCap,
		DeductibleBps: mp.DeductibleBps,
		StartAt:       mp.StartAt,
		ActiveAt:      mp.ActiveAt,
		EndAt:         mp.EndAt,
		ExtraData:     extra,
	}
	deadline := new(big.Int).SetUint64(draft.Deadline())
	return chain.PackBuyPolicy(params, premium, deadline, signature)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
