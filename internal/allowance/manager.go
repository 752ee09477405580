// Package allowance grants token spending permission before value transfers.
package allowance

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/storage"
)

// Reader reads the current on-chain allowance.
type Reader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

type pairKey struct {
	owner   common.Address
	spender common.Address
	token   common.Address
}

// Manager issues exact-amount approvals when the current allowance falls
// short. Check-then-approve is serialized per (owner, spender, token).
type Manager struct {
	reader  Reader
	journal storage.Journal
	chainID uint64
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[pairKey]chan struct{}
}

func NewManager(reader Reader, journal storage.Journal, chainID uint64, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		reader:  reader,
		journal: storage.OrNop(journal),
		chainID: chainID,
		logger:  logger,
		locks:   make(map[pairKey]chan struct{}),
	}
}

func (m *Manager) lock(ctx context.Context, key pairKey) (func(), error) {
	m.mu.Lock()
	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ensure makes sure spender may move required of token for the transactor's
// account. It approves exactly required, and only when the allowance read
// immediately before is lower, then waits for the approval to confirm. The
// returned hash is zero when no approval was needed.
func (m *Manager) Ensure(ctx context.Context, tx chain.Transactor, spender, token common.Address, required *big.Int) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, apperr.MissingConfig("private-key")
	}
	if required == nil || required.Sign() <= 0 {
		return common.Hash{}, apperr.Validation("required allowance must be positive")
	}
	owner := tx.From()

	unlock, err := m.lock(ctx, pairKey{owner: owner, spender: spender, token: token})
	if err != nil {
		return common.Hash{}, err
	}
	defer unlock()

	current, err := m.reader.Allowance(ctx, token, owner, spender)
	if err != nil {
		return common.Hash{}, apperr.Chain("read allowance", err)
	}
	if current.Cmp(required) >= 0 {
		m.logger.Debug("allowance sufficient",
			zap.String("token", token.Hex()),
			zap.String("spender", spender.Hex()),
			zap.String("current", current.String()),
		)
		return common.Hash{}, nil
	}

	data, err := chain.PackApprove(spender, required)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := tx.Send(ctx, token, data)
	if err != nil {
		return common.Hash{}, apperr.Chain("approve", err)
	}

	entry := model.JournalEntry{
		Kind:    model.JournalApprove,
		Status:  model.JournalSubmitted,
		ChainID: m.chainID,
		Wallet:  owner.Hex(),
		Target:  token.Hex(),
		TxHash:  hash.Hex(),
		Amount:  required.String(),
	}
	storage.Note(ctx, m.journal, m.logger, entry)
	m.logger.Info("approval submitted",
		zap.String("tx", hash.Hex()),
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", required.String()),
	)

	if receipt, err := tx.WaitReceipt(ctx, hash); err != nil {
		if receipt != nil {
			entry.Status = model.JournalReverted
			entry.RecordedAt = ""
			storage.Note(ctx, m.journal, m.logger, entry)
		}
		return hash, apperr.Chain("approve", err)
	}
	entry.Status = model.JournalConfirmed
	entry.RecordedAt = ""
	storage.Note(ctx, m.journal, m.logger, entry)
	return hash, nil
}
