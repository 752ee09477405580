// Package session carries the connected wallet and network into every flow.
package session

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
)

// Session is the acting wallet on one network. The zero value is disconnected.
type Session struct {
	Wallet     common.Address
	ChainID    uint64
	Transactor chain.Transactor
}

// New builds a session whose wallet is the transactor's account.
func New(chainID uint64, tx chain.Transactor) Session {
	s := Session{ChainID: chainID, Transactor: tx}
	if tx != nil {
		s.Wallet = tx.From()
	}
	return s
}

// ReadOnly builds a session that can read for wallet but not send.
func ReadOnly(chainID uint64, wallet common.Address) Session {
	return Session{ChainID: chainID, Wallet: wallet}
}

// Connected reports whether a wallet address is present.
func (s Session) Connected() bool {
	return s.Wallet != (common.Address{})
}

// WalletHex returns the lowercase wallet address used in backend queries.
func (s Session) WalletHex() string {
	if !s.Connected() {
		return ""
	}
	return strings.ToLower(s.Wallet.Hex())
}

// CheckNetwork is the network gate every flow passes before doing work.
func (s Session) CheckNetwork(target uint64) error {
	if target == 0 {
		return apperr.MissingConfig("chain-id")
	}
	if !s.Connected() {
		return apperr.Validation("wallet not connected")
	}
	if s.ChainID != target {
		return apperr.ChainMsg("wrong network: connected to chain %d, expected %d", s.ChainID, target)
	}
	return nil
}

// RequireSigner extends CheckNetwork with a transactor check.
func (s Session) RequireSigner(target uint64) error {
	if err := s.CheckNetwork(target); err != nil {
		return err
	}
	if s.Transactor == nil {
		return apperr.MissingConfig("private-key")
	}
	return nil
}
