package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityGuard/internal/allowance"
	"liquidityGuard/internal/api"
	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/claim"
	"liquidityGuard/internal/config"
	"liquidityGuard/internal/portfolio"
	"liquidityGuard/internal/quote"
	"liquidityGuard/internal/refresh"
	"liquidityGuard/internal/session"
	"liquidityGuard/internal/settlement"
	"liquidityGuard/internal/storage"
	"liquidityGuard/internal/storage/postgres"
)

// app holds the collaborators one command run needs. Chain-backed fields
// stay nil until connect is called.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger *zap.Logger
	api    *api.Client

	journal storage.Journal

	reader    *chain.Reader
	decimals  *refresh.DecimalsCache
	refresher *refresh.Refresher
	sess      session.Session

	closers []func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, apperr.Configuration("%v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, apperr.Configuration("log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{
		ctx:     ctx,
		cfg:     cfg,
		logger:  logger,
		api:     api.New(cfg.APIBaseURL, cfg.HTTPTimeout, logger),
		journal: storage.Nop{},
	}
	a.closers = append(a.closers, stop, func() { _ = logger.Sync() })

	logger.Debug("config loaded",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("rpc", cfg.RPCURL),
		zap.String("api", cfg.APIBaseURL),
		zap.String("private_key", redactKey(cfg.PrivateKey)),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Strings("addresses", cfg.Configured()),
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openJournal wires the JSONL journal and, when a DSN is configured, the
// Postgres journal behind it.
func (a *app) openJournal() error {
	var journals storage.Multi
	if a.cfg.JournalPath != "" {
		journals = append(journals, storage.NewJsonlJournal(a.cfg.JournalPath))
	}
	if a.cfg.PGDSN != "" {
		store, err := postgres.NewStore(a.ctx, a.cfg.PGDSN)
		if err != nil {
			return apperr.Configuration("connect journal db: %v", err)
		}
		if err := store.EnsureSchema(a.ctx); err != nil {
			_ = store.Close()
			return apperr.Configuration("journal schema: %v", err)
		}
		journals = append(journals, store)
	}
	switch len(journals) {
	case 0:
		a.journal = storage.Nop{}
	case 1:
		a.journal = journals[0]
	default:
		a.journal = journals
	}
	j := a.journal
	a.closers = append(a.closers, func() { _ = j.Close() })
	return nil
}

// connect opens the journal, dials the RPC endpoint and builds the
// session. The session's chain id is the one the endpoint reports, so a
// mismatched endpoint fails the network gate.
func (a *app) connect() error {
	if err := a.openJournal(); err != nil {
		return err
	}
	if a.cfg.RPCURL == "" {
		return apperr.MissingConfig("rpc")
	}
	client, err := chain.NewClient(a.ctx, a.cfg.RPCURL)
	if err != nil {
		return apperr.Network("connect rpc", err)
	}
	a.closers = append(a.closers, client.Close)

	id, err := client.ChainID(a.ctx)
	if err != nil {
		return apperr.Network("read chain id", err)
	}
	connected := id.Uint64()

	a.reader = chain.NewReader(client)
	a.decimals = refresh.NewDecimalsCache(a.reader)
	a.refresher = refresh.NewRefresher(a.cfg, a.reader, a.decimals, refresh.Options{Logger: a.logger})
	a.closers = append(a.closers, a.refresher.Close)

	if a.cfg.PrivateKey != "" {
		wallet, err := chain.NewKeyedWallet(client, a.cfg.PrivateKey, connected)
		if err != nil {
			return err
		}
		a.sess = session.New(connected, wallet)
	} else {
		addr, err := a.walletFlag()
		if err != nil {
			return err
		}
		a.sess = session.ReadOnly(connected, addr)
	}

	a.logger.Info("connected",
		zap.String("rpc", a.cfg.RPCURL),
		zap.Uint64("chain_id", connected),
		zap.String("wallet", a.sess.Wallet.Hex()),
		zap.Bool("signer", a.sess.Transactor != nil),
	)
	return nil
}

func (a *app) walletFlag() (common.Address, error) {
	raw := a.cfg.Wallet
	if raw == "" {
		return common.Address{}, nil
	}
	addr, err := chain.ParseAddress(raw)
	if err != nil {
		return common.Address{}, apperr.Validation("%v", err)
	}
	return addr, nil
}

// walletAddress resolves the acting wallet without dialing the chain.
func (a *app) walletAddress() (common.Address, error) {
	if a.cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(a.cfg.PrivateKey, "0x"))
		if err != nil {
			return common.Address{}, apperr.Configuration("invalid private key")
		}
		return crypto.PubkeyToAddress(key.PublicKey), nil
	}
	addr, err := a.walletFlag()
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, apperr.Validation("wallet not connected: set --wallet or --private-key")
	}
	return addr, nil
}

func (a *app) allowances() *allowance.Manager {
	return allowance.NewManager(a.reader, a.journal, a.cfg.ChainID, a.logger)
}

func (a *app) executor() *settlement.Executor {
	return settlement.NewExecutor(a.cfg, a.api, a.allowances(), a.decimals, settlement.Options{
		Refresher: a.refresher,
		Journal:   a.journal,
		Logger:    a.logger,
	})
}

func (a *app) requester() *quote.Requester {
	return quote.NewRequester(a.api, a.cfg.ChainID, a.logger)
}

func (a *app) coordinator() *claim.Coordinator {
	return claim.NewCoordinator(a.api, a.executor(), a.cfg.ChainID, claim.Options{
		Logger:       a.logger,
		PollAttempts: a.cfg.ClaimPollAttempts,
		PollInterval: a.cfg.ClaimPollInterval,
	})
}

func (a *app) portfolio() *portfolio.Loader {
	loader := portfolio.NewLoader(a.cfg, a.reader, portfolio.Options{Logger: a.logger})
	a.closers = append(a.closers, loader.Close)
	return loader
}

// run builds an app for cmd and hands it to fn.
func run(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
