package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityGuard/internal/apperr"
)

// Transactor submits state-changing calls on behalf of one account.
type Transactor interface {
	From() common.Address
	Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	// WaitReceipt blocks until the transaction is mined. A reverted receipt
	// is returned together with a chain error.
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Backend is the node surface a KeyedWallet needs; *Client satisfies it.
type Backend interface {
	Caller
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

const (
	defaultReceiptPoll = 2 * time.Second
	maxReceiptPoll     = 15 * time.Second
	gasLimitPaddingPct = 20
)

// KeyedWallet signs EIP-1559 transactions with a local private key.
type KeyedWallet struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      *big.Int
	pollInterval time.Duration

	// nonces are assigned under mu so two sends never share one.
	mu sync.Mutex
}

// NewKeyedWallet parses a hex private key (with or without 0x).
func NewKeyedWallet(backend Backend, hexKey string, chainID uint64) (*KeyedWallet, error) {
	if backend == nil {
		return nil, errors.New("chain backend is nil")
	}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, apperr.MissingConfig("private-key")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, apperr.Configuration("invalid private key: %v", err)
	}
	return &KeyedWallet{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      new(big.Int).SetUint64(chainID),
		pollInterval: defaultReceiptPoll,
	}, nil
}

// SetPollInterval overrides the initial receipt polling interval.
func (w *KeyedWallet) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

func (w *KeyedWallet) From() common.Address {
	return w.from
}

// Send estimates, signs and broadcasts a call to `to`.
func (w *KeyedWallet) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, apperr.Chain("fetch nonce", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, apperr.Chain("suggest gas tip", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, apperr.Chain("fetch head", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      w.from,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	})
	if err != nil {
		return common.Hash{}, apperr.Chain("estimate gas", err)
	}
	gas += gas * gasLimitPaddingPct / 100

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, apperr.Chain("sign transaction", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, apperr.Chain("send transaction", err)
	}
	return signed.Hash(), nil
}

// WaitReceipt polls until the receipt is available or ctx ends.
func (w *KeyedWallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return WaitMined(ctx, w.backend, hash, w.pollInterval)
}

// ReceiptFetcher returns receipts for mined transactions.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitMined polls fetcher with exponential backoff bounded only by ctx.
func WaitMined(ctx context.Context, fetcher ReceiptFetcher, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	if interval <= 0 {
		interval = defaultReceiptPoll
	}
	var receipt *types.Receipt
	operation := func() error {
		r, err := fetcher.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = maxReceiptPoll
	b.MaxElapsedTime = 0
	b.Multiplier = 1.5

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, apperr.Chain(fmt.Sprintf("wait for %s", hash.Hex()), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, apperr.ChainMsg("transaction reverted: %s", hash.Hex())
	}
	return receipt, nil
}
