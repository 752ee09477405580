package model

import (
	"encoding/json"
	"time"
)

// ClaimPreview estimates a payout over a risk window. It is superseded by
// every new preview request.
type ClaimPreview struct {
	PolicyID       string          `json:"policyId"`
	S              uint64          `json:"S"`
	E              uint64          `json:"E"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	PayoutEstimate float64         `json:"payoutEstimate"`
}

// ClaimPayload holds the signed executeClaim fields. Every numeric field is
// optional; absent or malformed values read as zero.
type ClaimPayload struct {
	PolicyID Int     `json:"policyId"`
	RiskID   Bytes32 `json:"riskId"`
	S        Int     `json:"S"`
	E        Int     `json:"E"`
	Lstar    Int     `json:"Lstar"`
	RefValue Int     `json:"refValue"`
	CurValue Int     `json:"curValue"`
	Payout   Int     `json:"payout"`
	Nonce    Int     `json:"nonce"`
	Deadline Int     `json:"deadline"`
}

// ClaimAuthorization is a validator-signed permit for one executeClaim call.
type ClaimAuthorization struct {
	PolicyID     string          `json:"policyId"`
	EIP712Domain json.RawMessage `json:"eip712Domain,omitempty"`
	TypedData    json.RawMessage `json:"typedData,omitempty"`
	Payload      ClaimPayload    `json:"payload"`
	Signature    string          `json:"signature"`
	Payout       float64         `json:"payout"`
	ExpiresAt    int64           `json:"expiresAt"`
}

// Expired reports whether the authorization can no longer be submitted at now.
func (a ClaimAuthorization) Expired(now time.Time) bool {
	return now.Unix() >= a.ExpiresAt
}

// ClaimStatus is owned by the backend.
type ClaimStatus string

const (
	ClaimSigned   ClaimStatus = "signed"
	ClaimQueued   ClaimStatus = "queued"
	ClaimExecuted ClaimStatus = "executed"
	ClaimFailed   ClaimStatus = "failed"
)

// ClaimRecord is the backend's view of a claim.
type ClaimRecord struct {
	ClaimID   string      `json:"claimId"`
	PolicyID  string      `json:"policyId"`
	Product   Product     `json:"product"`
	Status    ClaimStatus `json:"status"`
	Payout    float64     `json:"payout"`
	CreatedAt string      `json:"createdAt"`
	TxHash    string      `json:"txHash,omitempty"`
}

// ClaimQueueItem is a claim waiting for reserve liquidity.
type ClaimQueueItem struct {
	ClaimID  string  `json:"claimId"`
	PolicyID string  `json:"policyId"`
	Wallet   string  `json:"wallet,omitempty"`
	Payout   float64 `json:"payout"`
	Position int     `json:"position"`
	QueuedAt string  `json:"queuedAt"`
}

// SignClaimRequest asks the validator for a claim authorization.
type SignClaimRequest struct {
	PolicyID string `json:"policyId"`
}
