package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"liquidityGuard/internal/apperr"
)

const DefaultAPIBaseURL = "https://api.liq-guard.io"

// Address keys. Each names both the flag and, upper-cased with a LIQGUARD_
// prefix, the environment variable.
const (
	KeyReservePool     = "reserve-pool"
	KeyDistributor     = "distributor"
	KeyPayoutModule    = "payout-module"
	KeyPolicyNFT       = "policy-nft"
	KeyUSDC            = "usdc"
	KeyLGUSD           = "lgusd"
	KeyCurveLP         = "curve-lp"
	KeyAaveCollateral  = "aave-collateral"
	KeyAaveLendingPool = "aave-lending-pool"
)

var addressKeys = []string{
	KeyReservePool,
	KeyDistributor,
	KeyPayoutModule,
	KeyPolicyNFT,
	KeyUSDC,
	KeyLGUSD,
	KeyCurveLP,
	KeyAaveCollateral,
	KeyAaveLendingPool,
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ChainID           uint64
	RPCURL            string
	APIBaseURL        string
	PrivateKey        string
	Wallet            string
	AaveChainID       uint64
	PaymentDecimals   uint8
	AllowFloatPremium bool
	HTTPTimeout       time.Duration
	RefreshInterval   time.Duration
	ClaimPollAttempts int
	ClaimPollInterval time.Duration
	JournalPath       string
	PGDSN             string
	LogLevel          string

	// addresses holds every valid configured address; invalid or blank
	// values are absent.
	addresses map[string]common.Address
}

// LoadEnv loads .env then .env.local from dir; later files win. Missing
// files are ignored.
func LoadEnv(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(dir, name))
	}
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIQGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api-base-url", DefaultAPIBaseURL)
	v.SetDefault("payment-decimals", 6)
	v.SetDefault("allow-float-premium", false)
	v.SetDefault("http-timeout", 15*time.Second)
	v.SetDefault("refresh-interval", 30*time.Second)
	v.SetDefault("claim-poll-attempts", 5)
	v.SetDefault("claim-poll-interval", 3*time.Second)
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	decimals := v.GetInt("payment-decimals")
	if decimals < 0 || decimals > 36 {
		return Config{}, fmt.Errorf("payment-decimals out of range: %d", decimals)
	}

	cfg := Config{
		ChainID:           v.GetUint64("chain-id"),
		RPCURL:            strings.TrimSpace(v.GetString("rpc")),
		APIBaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("api-base-url")), "/"),
		PrivateKey:        strings.TrimSpace(v.GetString("private-key")),
		Wallet:            strings.TrimSpace(v.GetString("wallet")),
		AaveChainID:       v.GetUint64("aave-chain-id"),
		PaymentDecimals:   uint8(decimals),
		AllowFloatPremium: v.GetBool("allow-float-premium"),
		HTTPTimeout:       v.GetDuration("http-timeout"),
		RefreshInterval:   v.GetDuration("refresh-interval"),
		ClaimPollAttempts: v.GetInt("claim-poll-attempts"),
		ClaimPollInterval: v.GetDuration("claim-poll-interval"),
		JournalPath:       strings.TrimSpace(v.GetString("journal")),
		PGDSN:             strings.TrimSpace(v.GetString("pg-dsn")),
		LogLevel:          v.GetString("log-level"),
		addresses:         make(map[string]common.Address),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.AaveChainID == 0 {
		cfg.AaveChainID = cfg.ChainID
	}
	for _, key := range addressKeys {
		if addr, ok := normalizeAddress(v.GetString(key)); ok {
			cfg.addresses[key] = addr
		}
	}

	return cfg, nil
}

// Address returns the configured address for key, or the zero address.
func (c Config) Address(key string) common.Address {
	return c.addresses[key]
}

// Has reports whether key holds a valid address.
func (c Config) Has(key string) bool {
	_, ok := c.addresses[key]
	return ok
}

// WithAddress returns a copy of c with key set; invalid values unset it.
func (c Config) WithAddress(key, value string) Config {
	out := make(map[string]common.Address, len(c.addresses)+1)
	for k, v := range c.addresses {
		out[k] = v
	}
	if addr, ok := normalizeAddress(value); ok {
		out[key] = addr
	} else {
		delete(out, key)
	}
	c.addresses = out
	return c
}

// Require fails with a configuration error naming every unset key.
func (c Config) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if !c.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return apperr.MissingConfig(missing...)
}

// Configured lists the set address keys, sorted.
func (c Config) Configured() []string {
	keys := make([]string, 0, len(c.addresses))
	for k := range c.addresses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeAddress(input string) (common.Address, bool) {
	input = strings.TrimSpace(input)
	if input == "" || !common.IsHexAddress(input) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(input)
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}
