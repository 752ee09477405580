package claim

import (
	"math/big"
	"strings"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/model"
)

// ExecuteArgs coerces a signed payload into executeClaim arguments. Missing
// numeric fields become zero, a missing policy id falls back to policyID and
// a missing deadline falls back to the authorization expiry.
func ExecuteArgs(auth model.ClaimAuthorization, policyID string) (chain.ExecuteClaimArgs, error) {
	p := auth.Payload

	fallbackID, ok := new(big.Int).SetString(strings.TrimSpace(policyID), 10)
	if !ok {
		fallbackID = nil
	}
	id := p.PolicyID.Or(fallbackID)
	if id.Sign() == 0 && fallbackID == nil {
		return chain.ExecuteClaimArgs{}, apperr.Validation("claim payload has no policy id and %q is not numeric", policyID)
	}

	signature, err := chain.ParseBytes(auth.Signature)
	if err != nil {
		return chain.ExecuteClaimArgs{}, apperr.Validation("invalid claim signature: %v", err)
	}
	if len(signature) == 0 {
		return chain.ExecuteClaimArgs{}, apperr.Validation("claim authorization is not signed")
	}

	var expiry *big.Int
	if auth.ExpiresAt > 0 {
		expiry = big.NewInt(auth.ExpiresAt)
	}

	return chain.ExecuteClaimArgs{
		PolicyID:  id,
		RiskID:    p.RiskID.Hash,
		S:         p.S.Big(),
		E:         p.E.Big(),
		Lstar:     p.Lstar.Big(),
		RefValue:  p.RefValue.Big(),
		CurValue:  p.CurValue.Big(),
		Payout:    p.Payout.Big(),
		Nonce:     p.Nonce.Big(),
		Deadline:  p.Deadline.Or(expiry),
		Signature: signature,
	}, nil
}
