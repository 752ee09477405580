// Package refresh re-reads on-chain balances and reserve share state.
package refresh

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/clock"
	"liquidityGuard/internal/config"
)

// Reader is the on-chain surface the refresher reads.
type Reader interface {
	DecimalsFetcher
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	ShareToken(ctx context.Context, pool common.Address) (common.Address, error)
	PricePerShare(ctx context.Context, pool common.Address) (*big.Int, error)
}

const maxParallelReads = 8

// Balance is one token holding.
type Balance struct {
	Label    string
	Token    common.Address
	Decimals uint8
	Amount   *big.Int
}

// Snapshot is the latest display state. Fields whose read failed keep
// their zero value; other fields are still populated.
type Snapshot struct {
	Wallet        common.Address
	ShareToken    common.Address
	ShareDecimals uint8
	// PricePerShare is in payment token units; nil when unread.
	PricePerShare *big.Int
	Balances      map[string]Balance
	ReadAt        time.Time
}

// Refresher reads balances in parallel. It never blocks or cancels
// state-changing flows; it only replaces its own snapshot.
type Refresher struct {
	cfg      config.Config
	reader   Reader
	decimals *DecimalsCache
	pool     pond.Pool
	clock    clock.Clock
	logger   *zap.Logger

	shareMu     sync.Mutex
	shareToken  common.Address
	shareCached bool

	mu   sync.RWMutex
	last Snapshot
}

// Options carries the refresher's optional collaborators.
type Options struct {
	Clock  clock.Clock
	Logger *zap.Logger
}

func NewRefresher(cfg config.Config, reader Reader, decimals *DecimalsCache, opts Options) *Refresher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if decimals == nil {
		decimals = NewDecimalsCache(reader)
	}
	return &Refresher{
		cfg:      cfg,
		reader:   reader,
		decimals: decimals,
		pool:     pond.NewPool(maxParallelReads),
		clock:    clock.OrReal(opts.Clock),
		logger:   logger,
	}
}

// Close stops the worker pool after in-flight reads finish.
func (r *Refresher) Close() {
	r.pool.StopAndWait()
}

// Last returns the most recent snapshot.
func (r *Refresher) Last() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Refresh reads a new snapshot for wallet and stores it.
func (r *Refresher) Refresh(ctx context.Context, wallet common.Address) error {
	snap, err := r.Read(ctx, wallet)
	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()
	return err
}

type tokenSpec struct {
	label string
	key   string
}

var walletTokens = []tokenSpec{
	{label: "USDC", key: config.KeyUSDC},
	{label: "Curve LP", key: config.KeyCurveLP},
	{label: "Aave collateral", key: config.KeyAaveCollateral},
}

// Read performs every read concurrently. A failed read does not block the
// others; all failures are reported as one error.
func (r *Refresher) Read(ctx context.Context, wallet common.Address) (Snapshot, error) {
	snap := Snapshot{Wallet: wallet, Balances: make(map[string]Balance), ReadAt: r.clock.Now()}
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(what string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", what, err))
		mu.Unlock()
	}
	setBalance := func(b Balance) {
		mu.Lock()
		snap.Balances[b.Label] = b
		mu.Unlock()
	}

	var tasks []pond.Task
	if r.cfg.Has(config.KeyReservePool) {
		reservePool := r.cfg.Address(config.KeyReservePool)
		tasks = append(tasks, r.pool.Submit(func() {
			price, err := r.reader.PricePerShare(ctx, reservePool)
			if err != nil {
				fail("share price", err)
				return
			}
			mu.Lock()
			snap.PricePerShare = price
			mu.Unlock()
		}))
	}

	if wallet != (common.Address{}) {
		for _, tok := range walletTokens {
			if !r.cfg.Has(tok.key) {
				continue
			}
			tok := tok
			token := r.cfg.Address(tok.key)
			tasks = append(tasks, r.pool.Submit(func() {
				b, err := r.balance(ctx, tok.label, token, wallet)
				if err != nil {
					fail(tok.label+" balance", err)
					return
				}
				setBalance(b)
			}))
		}
	}

	if r.cfg.Has(config.KeyReservePool) || r.cfg.Has(config.KeyLGUSD) {
		tasks = append(tasks, r.pool.Submit(func() {
			share, err := r.resolveShareToken(ctx)
			if err != nil {
				fail("share token", err)
				return
			}
			decimals, err := r.decimals.Decimals(ctx, share)
			if err != nil {
				fail("share decimals", err)
				return
			}
			mu.Lock()
			snap.ShareToken = share
			snap.ShareDecimals = decimals
			mu.Unlock()

			if wallet == (common.Address{}) {
				return
			}
			amount, err := r.reader.BalanceOf(ctx, share, wallet)
			if err != nil {
				fail("lgUSD balance", err)
				return
			}
			setBalance(Balance{Label: "lgUSD", Token: share, Decimals: decimals, Amount: amount})
		}))
	}

	for _, task := range tasks {
		if err := task.Wait(); err != nil {
			fail("read task", err)
		}
	}

	err := combine(errs)
	if err != nil {
		r.logger.Warn("balance refresh incomplete", zap.Int("failures", len(errs)), zap.Error(err))
	}
	return snap, err
}

func (r *Refresher) balance(ctx context.Context, label string, token, wallet common.Address) (Balance, error) {
	decimals, err := r.decimals.Decimals(ctx, token)
	if err != nil {
		return Balance{}, err
	}
	amount, err := r.reader.BalanceOf(ctx, token, wallet)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Label: label, Token: token, Decimals: decimals, Amount: amount}, nil
}

// resolveShareToken asks the reserve pool once and caches the answer. The
// configured lgusd address is used when the pool is not configured.
func (r *Refresher) resolveShareToken(ctx context.Context) (common.Address, error) {
	r.shareMu.Lock()
	defer r.shareMu.Unlock()
	if r.shareCached {
		return r.shareToken, nil
	}
	if !r.cfg.Has(config.KeyReservePool) {
		return r.cfg.Address(config.KeyLGUSD), nil
	}
	share, err := r.reader.ShareToken(ctx, r.cfg.Address(config.KeyReservePool))
	if err != nil {
		return common.Address{}, err
	}
	r.shareToken = share
	r.shareCached = true
	return share, nil
}

// Watch refreshes immediately and then on every tick until ctx ends.
func (r *Refresher) Watch(ctx context.Context, wallet common.Address, interval time.Duration, fn func(Snapshot, error)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := r.Refresh(ctx, wallet)
		if fn != nil {
			fn(r.Last(), err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func combine(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return apperr.Chain("refresh", errs[0])
	default:
		return apperr.ChainMsg("refresh: %s (and %d more)", errs[0].Error(), len(errs)-1)
	}
}
