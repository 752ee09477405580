package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/config"
)

func main() {
	config.LoadEnv(".")

	root := &cobra.Command{
		Use:           "liqguard",
		Short:         "Parametric LP insurance client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.Uint64("chain-id", 0, "target chain id")
	flags.String("rpc", "", "EVM RPC URL")
	flags.String("api-base-url", config.DefaultAPIBaseURL, "backend API base URL")
	flags.String("private-key", "", "hex private key of the acting wallet")
	flags.String("wallet", "", "wallet address for read-only commands")
	flags.String(config.KeyReservePool, "", "reserve pool address")
	flags.String(config.KeyDistributor, "", "policy distributor address")
	flags.String(config.KeyPayoutModule, "", "payout module address")
	flags.String(config.KeyPolicyNFT, "", "policy NFT address")
	flags.String(config.KeyUSDC, "", "payment token address")
	flags.String(config.KeyLGUSD, "", "reserve share token address")
	flags.String(config.KeyCurveLP, "", "Curve LP token address")
	flags.String(config.KeyAaveCollateral, "", "Aave collateral token address")
	flags.String(config.KeyAaveLendingPool, "", "Aave lending pool address")
	flags.Uint64("aave-chain-id", 0, "Aave chain id, defaults to chain-id")
	flags.Bool("allow-float-premium", false, "derive the premium from premiumUSD when the atomic premium is missing")
	flags.Duration("http-timeout", 15*time.Second, "backend request timeout")
	flags.String("journal", "./data/journal.jsonl", "transaction journal JSONL path, empty disables")
	flags.String("pg-dsn", "", "Postgres DSN for the transaction journal")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPoolsCmd(),
		newReserveCmd(),
		newQuoteCmd(),
		newBuyCmd(),
		newDepositCmd(),
		newPoliciesCmd(),
		newPortfolioCmd(),
		newClaimCmd(),
		newClaimsCmd(),
		newClaimQueueCmd(),
		newBalancesCmd(),
		newJournalCmd(),
	)

	if err := root.Execute(); err != nil {
		printPresentation(os.Stderr, apperr.Present(err, ""))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

func redactKey(key string) string {
	if key == "" {
		return key
	}
	return "set"
}
