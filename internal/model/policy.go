package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a coverage product offered by the pricing backend.
type Product string

const (
	ProductDepegLP Product = "DEPEG_LP"
	ProductAaveDLP Product = "AAVE_DLP"
)

// Valid reports whether p is a known product.
func (p Product) Valid() bool {
	return p == ProductDepegLP || p == ProductAaveDLP
}

// PolicyType is the on-chain policy family.
type PolicyType string

const (
	PolicyTypeCurveLP PolicyType = "CURVE_LP"
	PolicyTypeAaveDLP PolicyType = "AAVE_DLP"
)

// TermDays is the coverage term in days.
type TermDays int

// Valid reports whether t is one of the offered terms.
func (t TermDays) Valid() bool {
	return t == 10 || t == 20 || t == 30
}

// CoverageRequest is sent to the pricing backend to obtain a signed draft.
// It is immutable once sent.
type CoverageRequest struct {
	Product        Product
	Wallet         string
	TermDays       TermDays
	InsuredAmount  decimal.Decimal
	Params         map[string]interface{}
	IdempotencyKey string
}

type coverageRequestJSON struct {
	Product        Product                `json:"product"`
	Wallet         string                 `json:"wallet"`
	Params         map[string]interface{} `json:"params"`
	TermDays       TermDays               `json:"termDays"`
	InsuredAmount  json.Number            `json:"insuredAmount"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
}

// MarshalJSON encodes the insured amount as a JSON number.
func (r CoverageRequest) MarshalJSON() ([]byte, error) {
	params := r.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	return json.Marshal(coverageRequestJSON{
		Product:        r.Product,
		Wallet:         r.Wallet,
		Params:         params,
		TermDays:       r.TermDays,
		InsuredAmount:  json.Number(r.InsuredAmount.String()),
		IdempotencyKey: r.IdempotencyKey,
	})
}

// MintParams are the distributor buyPolicy tuple fields, sized for on-chain encoding.
type MintParams struct {
	PolicyType    uint8  `json:"policyType"`
	RiskID        string `json:"riskId"`
	InsuredAmount Int    `json:"insuredAmount"`
	CoverageCap   Int    `json:"coverageCap"`
	DeductibleBps uint32 `json:"deductibleBps"`
	StartAt       uint64 `json:"startAt"`
	ActiveAt      uint64 `json:"activeAt"`
	EndAt         uint64 `json:"endAt"`
	ExtraData     string `json:"extraData"`
}

// OnchainCalldata is the optional backend bundle that overrides draft defaults.
type OnchainCalldata struct {
	Signature          string          `json:"signature"`
	Deadline           uint64          `json:"deadline"`
	Nonce              string          `json:"nonce"`
	MintParams         *MintParams     `json:"mintParams,omitempty"`
	TypedData          json.RawMessage `json:"typedData,omitempty"`
	DistributorAddress string          `json:"distributorAddress"`
	ExtraData          string          `json:"extraData"`
	PremiumAtomic      string          `json:"premiumAtomic"`
	CoverageCapAtomic  string          `json:"coverageCapAtomic"`
}

// PolicyDraft is a signed, time-bounded quote. Premium and mint parameters
// are used as issued, never recomputed.
type PolicyDraft struct {
	DraftID            string                 `json:"draftId"`
	Product            Product                `json:"product"`
	PremiumUSD         float64                `json:"premiumUSD"`
	CoverageCapUSD     float64                `json:"coverageCapUSD"`
	DeductibleBps      uint32                 `json:"deductibleBps"`
	CliffHours         float64                `json:"cliffHours"`
	PricingBreakdown   map[string]interface{} `json:"pricingBreakdown,omitempty"`
	Wallet             string                 `json:"wallet"`
	Params             map[string]interface{} `json:"params,omitempty"`
	TermDays           TermDays               `json:"termDays"`
	InsuredAmount      float64                `json:"insuredAmount"`
	CreatedAt          string                 `json:"createdAt"`
	TermsHash          string                 `json:"termsHash"`
	RiskID             string                 `json:"riskId"`
	PolicyType         PolicyType             `json:"policyType"`
	StartAt            uint64                 `json:"startAt"`
	ActiveAt           uint64                 `json:"activeAt"`
	EndAt              uint64                 `json:"endAt"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	OnchainCalldata    *OnchainCalldata       `json:"onchainCalldata,omitempty"`
	DistributorAddress string                 `json:"distributorAddress"`
	QuoteSignature     string                 `json:"quoteSignature"`
	QuoteDeadline      uint64                 `json:"quoteDeadline"`
	QuoteNonce         string                 `json:"quoteNonce"`
	QuoteTypedData     json.RawMessage        `json:"quoteTypedData,omitempty"`
	MintParams         MintParams             `json:"mintParams"`
	PremiumAtomic      string                 `json:"premiumAtomic,omitempty"`
}

// Deadline returns the effective quote deadline in unix seconds.
func (d PolicyDraft) Deadline() uint64 {
	if d.OnchainCalldata != nil && d.OnchainCalldata.Deadline > 0 {
		return d.OnchainCalldata.Deadline
	}
	return d.QuoteDeadline
}

// Expired reports whether the draft can no longer be settled at now.
func (d PolicyDraft) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= d.Deadline()
}

// Signature returns the effective quote signature.
func (d PolicyDraft) Signature() string {
	if d.OnchainCalldata != nil && d.OnchainCalldata.Signature != "" {
		return d.OnchainCalldata.Signature
	}
	return d.QuoteSignature
}

// EffectiveMintParams returns the bundle's mint params when present.
func (d PolicyDraft) EffectiveMintParams() MintParams {
	if d.OnchainCalldata != nil && d.OnchainCalldata.MintParams != nil {
		return *d.OnchainCalldata.MintParams
	}
	return d.MintParams
}

// Distributor returns the draft-provided settlement target, if any.
func (d PolicyDraft) Distributor() string {
	if d.OnchainCalldata != nil && d.OnchainCalldata.DistributorAddress != "" {
		return d.OnchainCalldata.DistributorAddress
	}
	return d.DistributorAddress
}

// AtomicPremium returns the backend-provided atomic premium, if any.
func (d PolicyDraft) AtomicPremium() string {
	if d.OnchainCalldata != nil && d.OnchainCalldata.PremiumAtomic != "" {
		return d.OnchainCalldata.PremiumAtomic
	}
	return d.PremiumAtomic
}

// PolicyStatus is owned by the backend; the client only observes it.
type PolicyStatus string

const (
	PolicyDraftStatus PolicyStatus = "draft"
	PolicyPending     PolicyStatus = "pending"
	PolicyActive      PolicyStatus = "active"
	PolicyExpired     PolicyStatus = "expired"
	PolicyClaimed     PolicyStatus = "claimed"
	PolicyQueued      PolicyStatus = "queued"
)

// PolicyRecord is a persisted policy returned by the backend.
type PolicyRecord struct {
	PolicyID       string                 `json:"policyId"`
	DraftID        string                 `json:"draftId,omitempty"`
	NFTTokenID     string                 `json:"nftTokenId"`
	PolicyType     PolicyType             `json:"policyType"`
	RiskID         string                 `json:"riskId"`
	Product        Product                `json:"product"`
	Wallet         string                 `json:"wallet"`
	InsuredAmount  string                 `json:"insuredAmount"`
	TermDays       TermDays               `json:"termDays"`
	StartAt        uint64                 `json:"startAt"`
	ActiveAt       uint64                 `json:"activeAt"`
	EndAt          uint64                 `json:"endAt"`
	ClaimedUpTo    uint64                 `json:"claimedUpTo"`
	Nonce          uint64                 `json:"nonce"`
	Status         PolicyStatus           `json:"status"`
	CoverageCapUSD string                 `json:"coverageCapUSD"`
	DeductibleBps  uint32                 `json:"deductibleBps"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// FinalizeRequest reports the confirmed mint to the backend.
type FinalizeRequest struct {
	TxHashMint    string `json:"txHashMint"`
	PremiumTxHash string `json:"premiumTxHash,omitempty"`
}
