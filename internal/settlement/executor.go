// Package settlement submits authorized mint, deposit and claim transactions
// and reconciles confirmed results with the backend.
package settlement

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityGuard/internal/allowance"
	"liquidityGuard/internal/amount"
	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/clock"
	"liquidityGuard/internal/config"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/session"
	"liquidityGuard/internal/storage"
)

// Backend finalizes confirmed mints.
type Backend interface {
	FinalizePolicy(ctx context.Context, draftID string, req model.FinalizeRequest) (model.PolicyRecord, error)
}

// DecimalsReader resolves token decimals.
type DecimalsReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Refresher re-reads balances after a confirmed transaction.
type Refresher interface {
	Refresh(ctx context.Context, wallet common.Address) error
}

// Result describes a settlement that reached the chain.
type Result struct {
	TxHash         common.Hash
	ApprovalTxHash common.Hash
	Amount         *big.Int
	Policy         *model.PolicyRecord
}

// Executor runs settlement steps strictly in order: approve, submit,
// confirm, finalize, refresh. Any failure stops the remaining steps.
type Executor struct {
	cfg        config.Config
	backend    Backend
	allowances *allowance.Manager
	decimals   DecimalsReader
	refresher  Refresher
	journal    storage.Journal
	clock      clock.Clock
	logger     *zap.Logger
}

// Options carries the optional collaborators of an Executor.
type Options struct {
	Refresher Refresher
	Journal   storage.Journal
	Clock     clock.Clock
	Logger    *zap.Logger
}

func NewExecutor(cfg config.Config, backend Backend, allowances *allowance.Manager, decimals DecimalsReader, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:        cfg,
		backend:    backend,
		allowances: allowances,
		decimals:   decimals,
		refresher:  opts.Refresher,
		journal:    storage.OrNop(opts.Journal),
		clock:      clock.OrReal(opts.Clock),
		logger:     logger,
	}
}

// Settle buys the policy described by draft. The draft's premium and mint
// parameters are used exactly as issued.
func (e *Executor) Settle(ctx context.Context, sess session.Session, draft model.PolicyDraft) (Result, error) {
	if err := sess.RequireSigner(e.cfg.ChainID); err != nil {
		return Result{}, err
	}
	if err := e.checkDeadline(draft); err != nil {
		return Result{}, err
	}

	target, err := e.resolveDistributor(draft)
	if err != nil {
		return Result{}, err
	}
	if err := e.cfg.Require(config.KeyUSDC); err != nil {
		return Result{}, err
	}
	token := e.cfg.Address(config.KeyUSDC)

	premium, err := e.premium(draft)
	if err != nil {
		return Result{}, err
	}
	calldata, err := buyPolicyCalldata(draft, premium)
	if err != nil {
		return Result{}, err
	}

	logger := e.logger.With(zap.String("draft_id", draft.DraftID), zap.String("distributor", target.Hex()))
	approvalHash, err := e.allowances.Ensure(ctx, sess.Transactor, target, token, premium)
	if err != nil {
		return Result{ApprovalTxHash: approvalHash}, err
	}
	// approval may have taken long enough for the quote to lapse
	if err := e.checkDeadline(draft); err != nil {
		return Result{ApprovalTxHash: approvalHash}, err
	}

	hash, err := e.submit(ctx, sess, target, calldata, model.JournalEntry{
		Kind:    model.JournalMint,
		DraftID: draft.DraftID,
		Amount:  premium.String(),
	})
	res := Result{TxHash: hash, ApprovalTxHash: approvalHash, Amount: premium}
	if err != nil {
		return res, err
	}
	logger.Info("policy mint confirmed", zap.String("tx", hash.Hex()), zap.String("premium", premium.String()))

	record, err := e.backend.FinalizePolicy(ctx, draft.DraftID, model.FinalizeRequest{
		TxHashMint:    hash.Hex(),
		PremiumTxHash: hash.Hex(),
	})
	if err != nil {
		logger.Warn("finalize failed after confirmed mint", zap.String("tx", hash.Hex()), zap.Error(err))
		return res, err
	}
	res.Policy = &record
	logger.Info("policy finalized", zap.String("policy_id", record.PolicyID), zap.String("status", string(record.Status)))

	e.refresh(ctx, sess)
	return res, nil
}

// Deposit moves amountInput of the payment token into the reserve pool for
// reserve shares. There is no draft and nothing to finalize.
func (e *Executor) Deposit(ctx context.Context, sess session.Session, amountInput string) (Result, error) {
	value, err := amount.ParsePositive(amountInput)
	if err != nil {
		return Result{}, err
	}
	if err := sess.RequireSigner(e.cfg.ChainID); err != nil {
		return Result{}, err
	}
	if err := e.cfg.Require(config.KeyReservePool, config.KeyUSDC); err != nil {
		return Result{}, err
	}
	pool := e.cfg.Address(config.KeyReservePool)
	token := e.cfg.Address(config.KeyUSDC)

	decimals, err := e.decimals.Decimals(ctx, token)
	if err != nil {
		return Result{}, apperr.Chain("read token decimals", err)
	}
	assets, err := amount.ToUnits(value, decimals)
	if err != nil {
		return Result{}, err
	}
	calldata, err := chain.PackDeposit(assets, sess.Wallet)
	if err != nil {
		return Result{}, err
	}

	approvalHash, err := e.allowances.Ensure(ctx, sess.Transactor, pool, token, assets)
	if err != nil {
		return Result{ApprovalTxHash: approvalHash}, err
	}
	hash, err := e.submit(ctx, sess, pool, calldata, model.JournalEntry{
		Kind:   model.JournalDeposit,
		Amount: assets.String(),
	})
	res := Result{TxHash: hash, ApprovalTxHash: approvalHash, Amount: assets}
	if err != nil {
		return res, err
	}
	e.logger.Info("deposit confirmed", zap.String("tx", hash.Hex()), zap.String("assets", assets.String()))

	e.refresh(ctx, sess)
	return res, nil
}

// ExecuteClaim submits a signed executeClaim call to the payout module.
func (e *Executor) ExecuteClaim(ctx context.Context, sess session.Session, policyID string, args chain.ExecuteClaimArgs) (common.Hash, error) {
	if err := sess.RequireSigner(e.cfg.ChainID); err != nil {
		return common.Hash{}, err
	}
	if err := e.cfg.Require(config.KeyPayoutModule); err != nil {
		return common.Hash{}, err
	}
	calldata, err := chain.PackExecuteClaim(args)
	if err != nil {
		return common.Hash{}, err
	}
	amountText := ""
	if args.Payout != nil {
		amountText = args.Payout.String()
	}
	hash, err := e.submit(ctx, sess, e.cfg.Address(config.KeyPayoutModule), calldata, model.JournalEntry{
		Kind:     model.JournalClaim,
		PolicyID: policyID,
		Amount:   amountText,
	})
	if err != nil {
		return hash, err
	}
	e.refresh(ctx, sess)
	return hash, nil
}

// submit sends calldata to target and waits for the receipt, journaling
// each observed status.
func (e *Executor) submit(ctx context.Context, sess session.Session, target common.Address, calldata []byte, entry model.JournalEntry) (common.Hash, error) {
	hash, err := sess.Transactor.Send(ctx, target, calldata)
	if err != nil {
		return common.Hash{}, apperr.Chain(string(entry.Kind), err)
	}

	entry.Status = model.JournalSubmitted
	entry.ChainID = e.cfg.ChainID
	entry.Wallet = sess.Wallet.Hex()
	entry.Target = target.Hex()
	entry.TxHash = hash.Hex()
	storage.Note(ctx, e.journal, e.logger, entry)
	e.logger.Info("transaction submitted", zap.String("kind", string(entry.Kind)), zap.String("tx", hash.Hex()))

	receipt, err := sess.Transactor.WaitReceipt(ctx, hash)
	if err != nil {
		if receipt != nil {
			entry.Status = model.JournalReverted
			entry.RecordedAt = ""
			storage.Note(ctx, e.journal, e.logger, entry)
		}
		return hash, apperr.Chain(string(entry.Kind), err)
	}
	entry.Status = model.JournalConfirmed
	entry.RecordedAt = ""
	storage.Note(ctx, e.journal, e.logger, entry)
	return hash, nil
}

func (e *Executor) refresh(ctx context.Context, sess session.Session) {
	if e.refresher == nil {
		return
	}
	if err := e.refresher.Refresh(ctx, sess.Wallet); err != nil {
		e.logger.Warn("balance refresh failed", zap.Error(err))
	}
}

func (e *Executor) checkDeadline(draft model.PolicyDraft) error {
	if draft.Deadline() == 0 {
		return apperr.Validation("quote has no deadline")
	}
	if draft.Expired(e.clock.Now()) {
		return apperr.Stale("quote %s expired; request a new quote", draft.DraftID)
	}
	return nil
}

func (e *Executor) resolveDistributor(draft model.PolicyDraft) (common.Address, error) {
	if raw := strings.TrimSpace(draft.Distributor()); raw != "" {
		if addr, err := chain.ParseAddress(raw); err == nil && addr != (common.Address{}) {
			return addr, nil
		}
		e.logger.Warn("ignoring invalid draft distributor", zap.String("value", raw))
	}
	if err := e.cfg.Require(config.KeyDistributor); err != nil {
		return common.Address{}, err
	}
	return e.cfg.Address(config.KeyDistributor), nil
}

// premium prefers the backend's atomic value. Deriving it from the USD
// float is opt-in since the result may not match the signed amount.
func (e *Executor) premium(draft model.PolicyDraft) (*big.Int, error) {
	if v, ok := amount.ParseAtomic(draft.AtomicPremium()); ok && v.Sign() > 0 {
		return v, nil
	}
	if !e.cfg.AllowFloatPremium {
		return nil, apperr.Validation("quote %s has no atomic premium; request a new quote", draft.DraftID)
	}
	v, err := amount.FromUSD(draft.PremiumUSD, amount.USDDecimals)
	if err != nil {
		return nil, err
	}
	e.logger.Warn("deriving premium from USD float",
		zap.String("draft_id", draft.DraftID),
		zap.Float64("premium_usd", draft.PremiumUSD),
		zap.String("atomic", v.String()),
	)
	return v, nil
}
