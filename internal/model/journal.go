package model

// JournalKind names the transaction a journal entry records.
type JournalKind string

const (
	JournalApprove JournalKind = "approve"
	JournalMint    JournalKind = "mint"
	JournalDeposit JournalKind = "deposit"
	JournalClaim   JournalKind = "claim"
)

// JournalStatus is the observed state of a submitted transaction.
type JournalStatus string

const (
	JournalSubmitted JournalStatus = "submitted"
	JournalConfirmed JournalStatus = "confirmed"
	JournalReverted  JournalStatus = "reverted"
)

// JournalEntry is a local audit record of a transaction sent by this client.
type JournalEntry struct {
	Kind       JournalKind   `json:"kind"`
	Status     JournalStatus `json:"status"`
	ChainID    uint64        `json:"chain_id"`
	Wallet     string        `json:"wallet"`
	Target     string        `json:"target"`
	TxHash     string        `json:"tx_hash"`
	DraftID    string        `json:"draft_id,omitempty"`
	PolicyID   string        `json:"policy_id,omitempty"`
	Amount     string        `json:"amount,omitempty"`
	RecordedAt string        `json:"recorded_at"`
}
