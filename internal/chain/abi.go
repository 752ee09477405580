package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "approve", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

const reservePoolABIJSON = `[
  {"inputs": [], "name": "asset", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "shareToken", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "pricePerShare", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "currentNav", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalManagedAssets", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{"name": "assets", "type": "uint256"}, {"name": "receiver", "type": "address"}],
    "name": "deposit",
    "outputs": [{"name": "shares", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const distributorABIJSON = `[
  {"inputs": [], "name": "asset", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "reservePool", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "nonces", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [
      {
        "name": "params",
        "type": "tuple",
        "components": [
          {"name": "policyType", "type": "uint8"},
          {"name": "riskId", "type": "bytes32"},
          {"name": "insuredAmount", "type": "uint256"},
          {"name": "coverageCap", "type": "uint256"},
          {"name": "deductibleBps", "type": "uint32"},
          {"name": "startAt", "type": "uint64"},
          {"name": "activeAt", "type": "uint64"},
          {"name": "endAt", "type": "uint64"},
          {"name": "extraData", "type": "bytes"}
        ]
      },
      {"name": "premium", "type": "uint256"},
      {"name": "deadline", "type": "uint256"},
      {"name": "signature", "type": "bytes"}
    ],
    "name": "buyPolicy",
    "outputs": [{"name": "policyId", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const payoutModuleABIJSON = `[
  {
    "inputs": [
      {"name": "policyId", "type": "uint256"},
      {"name": "riskId", "type": "bytes32"},
      {"name": "S", "type": "uint256"},
      {"name": "E", "type": "uint256"},
      {"name": "Lstar", "type": "uint256"},
      {"name": "refValue", "type": "uint256"},
      {"name": "curValue", "type": "uint256"},
      {"name": "payout", "type": "uint256"},
      {"name": "nonce", "type": "uint256"},
      {"name": "deadline", "type": "uint256"},
      {"name": "signature", "type": "bytes"}
    ],
    "name": "executeClaim",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const policyNFTABIJSON = `[
  {"inputs": [{"name": "user", "type": "address"}], "name": "getPoliciesByUser", "outputs": [{"type": "uint256[]"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{"name": "policyId", "type": "uint256"}],
    "name": "policyData",
    "outputs": [
      {
        "type": "tuple",
        "components": [
          {"name": "policyType", "type": "uint8"},
          {"name": "riskId", "type": "bytes32"},
          {"name": "insuredAmount", "type": "uint256"},
          {"name": "coverageCap", "type": "uint256"},
          {"name": "deductibleBps", "type": "uint32"},
          {"name": "startAt", "type": "uint64"},
          {"name": "activeAt", "type": "uint64"},
          {"name": "endAt", "type": "uint64"},
          {"name": "claimedUpTo", "type": "uint64"}
        ]
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "policyId", "type": "uint256"}],
    "name": "dlpPolicyData",
    "outputs": [
      {
        "type": "tuple",
        "components": [
          {"name": "chainId", "type": "uint64"},
          {"name": "aavePool", "type": "address"},
          {"name": "collateralAsset", "type": "address"},
          {"name": "coverageRatioBps", "type": "uint16"},
          {"name": "maxPayoutBps", "type": "uint16"}
        ]
      }
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

type lazyABI struct {
	source string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.source))
	})
	return l.parsed, l.err
}

var (
	erc20ABI        = &lazyABI{source: erc20ABIJSON}
	reservePoolABI  = &lazyABI{source: reservePoolABIJSON}
	distributorABI  = &lazyABI{source: distributorABIJSON}
	payoutModuleABI = &lazyABI{source: payoutModuleABIJSON}
	policyNFTABI    = &lazyABI{source: policyNFTABIJSON}
)

// ERC20ABI returns the parsed token ABI.
func ERC20ABI() (abi.ABI, error) { return erc20ABI.get() }

// ReservePoolABI returns the parsed reserve pool ABI.
func ReservePoolABI() (abi.ABI, error) { return reservePoolABI.get() }

// DistributorABI returns the parsed policy distributor ABI.
func DistributorABI() (abi.ABI, error) { return distributorABI.get() }

// PayoutModuleABI returns the parsed payout module ABI.
func PayoutModuleABI() (abi.ABI, error) { return payoutModuleABI.get() }

// PolicyNFTABI returns the parsed policy NFT ABI.
func PolicyNFTABI() (abi.ABI, error) { return policyNFTABI.get() }

// AllABIs returns every contract ABI this client speaks, for calldata decoding.
func AllABIs() ([]abi.ABI, error) {
	loaders := []*lazyABI{erc20ABI, reservePoolABI, distributorABI, payoutModuleABI, policyNFTABI}
	out := make([]abi.ABI, 0, len(loaders))
	for _, l := range loaders {
		parsed, err := l.get()
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// MethodByCalldata finds the method matching the 4-byte selector of data.
func MethodByCalldata(data []byte) (*abi.Method, error) {
	abis, err := AllABIs()
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, errShortCalldata
	}
	var lastErr error
	for _, parsed := range abis {
		method, err := parsed.MethodById(data[:4])
		if err == nil {
			return method, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
