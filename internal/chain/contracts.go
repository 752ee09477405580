package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var errShortCalldata = errors.New("calldata shorter than selector")

// BuyPolicyParams is the distributor's buyPolicy params tuple.
type BuyPolicyParams struct {
	PolicyType    uint8    `abi:"policyType"`
	RiskID        [32]byte `abi:"riskId"`
	InsuredAmount *big.Int `abi:"insuredAmount"`
	CoverageCap   *big.Int `abi:"coverageCap"`
	DeductibleBps uint32   `abi:"deductibleBps"`
	StartAt       uint64   `abi:"startAt"`
	ActiveAt      uint64   `abi:"activeAt"`
	EndAt         uint64   `abi:"endAt"`
	ExtraData     []byte   `abi:"extraData"`
}

// ExecuteClaimArgs are the payout module's executeClaim arguments, in call order.
type ExecuteClaimArgs struct {
	PolicyID  *big.Int
	RiskID    [32]byte
	S         *big.Int
	E         *big.Int
	Lstar     *big.Int
	RefValue  *big.Int
	CurValue  *big.Int
	Payout    *big.Int
	Nonce     *big.Int
	Deadline  *big.Int
	Signature []byte
}

// PolicyData mirrors the policy NFT's policyData tuple; field order matters.
type PolicyData struct {
	PolicyType    uint8    `abi:"policyType"`
	RiskID        [32]byte `abi:"riskId"`
	InsuredAmount *big.Int `abi:"insuredAmount"`
	CoverageCap   *big.Int `abi:"coverageCap"`
	DeductibleBps uint32   `abi:"deductibleBps"`
	StartAt       uint64   `abi:"startAt"`
	ActiveAt      uint64   `abi:"activeAt"`
	EndAt         uint64   `abi:"endAt"`
	ClaimedUpTo   uint64   `abi:"claimedUpTo"`
}

// DLPPolicyData mirrors the policy NFT's dlpPolicyData tuple; field order matters.
type DLPPolicyData struct {
	ChainID          uint64         `abi:"chainId"`
	AavePool         common.Address `abi:"aavePool"`
	CollateralAsset  common.Address `abi:"collateralAsset"`
	CoverageRatioBps uint16         `abi:"coverageRatioBps"`
	MaxPayoutBps     uint16         `abi:"maxPayoutBps"`
}

// PackApprove encodes ERC20 approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return pack(ERC20ABI, "approve", spender, amount)
}

// PackDeposit encodes reserve pool deposit(assets, receiver).
func PackDeposit(assets *big.Int, receiver common.Address) ([]byte, error) {
	return pack(ReservePoolABI, "deposit", assets, receiver)
}

// PackBuyPolicy encodes distributor buyPolicy(params, premium, deadline, signature).
func PackBuyPolicy(params BuyPolicyParams, premium, deadline *big.Int, signature []byte) ([]byte, error) {
	return pack(DistributorABI, "buyPolicy", params, premium, deadline, signature)
}

// PackExecuteClaim encodes payout module executeClaim(...).
func PackExecuteClaim(args ExecuteClaimArgs) ([]byte, error) {
	return pack(PayoutModuleABI, "executeClaim",
		args.PolicyID,
		args.RiskID,
		args.S,
		args.E,
		args.Lstar,
		args.RefValue,
		args.CurValue,
		args.Payout,
		args.Nonce,
		args.Deadline,
		args.Signature,
	)
}

func pack(load func() (abi.ABI, error), method string, args ...interface{}) ([]byte, error) {
	parsed, err := load()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Reader performs typed contract reads over a Caller.
type Reader struct {
	caller Caller
}

func NewReader(caller Caller) *Reader {
	return &Reader{caller: caller}
}

func (r *Reader) call(ctx context.Context, to common.Address, load func() (abi.ABI, error), method string, args ...interface{}) ([]interface{}, error) {
	if r == nil || r.caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	parsed, err := load()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// Decimals reads ERC20 decimals.
func (r *Reader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	values, err := r.call(ctx, token, ERC20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(values[0])
}

// BalanceOf reads an ERC20 balance.
func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	values, err := r.call(ctx, token, ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Allowance reads the amount spender may move on behalf of owner.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := r.call(ctx, token, ERC20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// ShareToken reads the reserve pool's share token address.
func (r *Reader) ShareToken(ctx context.Context, pool common.Address) (common.Address, error) {
	values, err := r.call(ctx, pool, ReservePoolABI, "shareToken")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PricePerShare reads the reserve pool's share price in asset units.
func (r *Reader) PricePerShare(ctx context.Context, pool common.Address) (*big.Int, error) {
	values, err := r.call(ctx, pool, ReservePoolABI, "pricePerShare")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// CurrentNav reads the reserve pool's net asset value.
func (r *Reader) CurrentNav(ctx context.Context, pool common.Address) (*big.Int, error) {
	values, err := r.call(ctx, pool, ReservePoolABI, "currentNav")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PoliciesByUser lists the policy NFT ids held by user.
func (r *Reader) PoliciesByUser(ctx context.Context, nft, user common.Address) ([]*big.Int, error) {
	values, err := r.call(ctx, nft, PolicyNFTABI, "getPoliciesByUser", user)
	if err != nil {
		return nil, err
	}
	ids, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported policy id list type %T", values[0])
	}
	return ids, nil
}

// PolicyData reads the base policy tuple.
func (r *Reader) PolicyData(ctx context.Context, nft common.Address, policyID *big.Int) (PolicyData, error) {
	values, err := r.call(ctx, nft, PolicyNFTABI, "policyData", policyID)
	if err != nil {
		return PolicyData{}, err
	}
	return *abi.ConvertType(values[0], new(PolicyData)).(*PolicyData), nil
}

// DLPPolicyData reads the Aave DLP extension tuple.
func (r *Reader) DLPPolicyData(ctx context.Context, nft common.Address, policyID *big.Int) (DLPPolicyData, error) {
	values, err := r.call(ctx, nft, PolicyNFTABI, "dlpPolicyData", policyID)
	if err != nil {
		return DLPPolicyData{}, err
	}
	return *abi.ConvertType(values[0], new(DLPPolicyData)).(*DLPPolicyData), nil
}
