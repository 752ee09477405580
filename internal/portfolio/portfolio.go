// Package portfolio reads the policies a wallet holds directly from the
// policy NFT contract.
package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/clock"
	"liquidityGuard/internal/config"
	"liquidityGuard/internal/session"
)

// Reader is the policy NFT surface.
type Reader interface {
	PoliciesByUser(ctx context.Context, nft, user common.Address) ([]*big.Int, error)
	PolicyData(ctx context.Context, nft common.Address, policyID *big.Int) (chain.PolicyData, error)
	DLPPolicyData(ctx context.Context, nft common.Address, policyID *big.Int) (chain.DLPPolicyData, error)
}

const (
	policyTypeCurveLP = 0
	policyTypeAaveDLP = 1

	maxParallelReads = 8
)

// Policy is one on-chain policy. DLP is nil for non-DLP policies and when
// its read failed.
type Policy struct {
	ID   *big.Int
	Data chain.PolicyData
	DLP  *chain.DLPPolicyData
}

// TypeLabel names the coverage kind.
func (p Policy) TypeLabel() string {
	switch p.Data.PolicyType {
	case policyTypeCurveLP:
		return "Curve LP Coverage"
	case policyTypeAaveDLP:
		return "Aave DLP Coverage"
	default:
		return "Unknown coverage"
	}
}

// Timing is the time-derived display status of a policy.
type Timing struct {
	Status string
	Label  string
	Detail string
}

// StatusAt derives the policy status at now.
func (p Policy) StatusAt(now time.Time) Timing {
	ts := now.Unix()
	active := int64(p.Data.ActiveAt)
	end := int64(p.Data.EndAt)

	if ts < active {
		return Timing{Status: "Pending activation", Label: "Activates in", Detail: Countdown(active - ts)}
	}
	if ts < end {
		return Timing{Status: "Active", Label: "Time remaining", Detail: Countdown(end - ts)}
	}
	return Timing{Status: "Expired", Label: "Expired on", Detail: FormatTime(p.Data.EndAt)}
}

// Countdown renders seconds with at most three non-zero units among d, h, m, s.
func Countdown(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	units := []struct {
		label string
		size  int64
	}{
		{"d", 86_400},
		{"h", 3_600},
		{"m", 60},
		{"s", 1},
	}
	var parts []string
	remaining := seconds
	for _, u := range units {
		if count := remaining / u.size; count > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", count, u.label))
			remaining -= count * u.size
		}
		if len(parts) >= 3 {
			break
		}
	}
	return strings.Join(parts, " ")
}

// FormatTime renders a unix timestamp, or "-" for zero.
func FormatTime(ts uint64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// Loader fetches a wallet's on-chain policies.
type Loader struct {
	cfg    config.Config
	reader Reader
	pool   pond.Pool
	clock  clock.Clock
	logger *zap.Logger
}

// Options carries the loader's optional collaborators.
type Options struct {
	Clock  clock.Clock
	Logger *zap.Logger
}

func NewLoader(cfg config.Config, reader Reader, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		cfg:    cfg,
		reader: reader,
		pool:   pond.NewPool(maxParallelReads),
		clock:  clock.OrReal(opts.Clock),
		logger: logger,
	}
}

// Close stops the worker pool.
func (l *Loader) Close() {
	l.pool.StopAndWait()
}

// Now is the loader's clock reading, used for status derivation.
func (l *Loader) Now() time.Time {
	return l.clock.Now()
}

// Load lists the session wallet's policies ordered by id. A failed
// policyData read fails the load; a failed dlpPolicyData read only drops
// the DLP details.
func (l *Loader) Load(ctx context.Context, sess session.Session) ([]Policy, error) {
	if err := sess.CheckNetwork(l.cfg.ChainID); err != nil {
		return nil, err
	}
	if err := l.cfg.Require(config.KeyPolicyNFT); err != nil {
		return nil, err
	}
	nft := l.cfg.Address(config.KeyPolicyNFT)

	ids, err := l.reader.PoliciesByUser(ctx, nft, sess.Wallet)
	if err != nil {
		return nil, apperr.Chain("read policies", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	policies := make([]Policy, len(ids))
	group := l.pool.NewGroup()
	for i, id := range ids {
		i, id := i, id
		group.SubmitErr(func() error {
			data, err := l.reader.PolicyData(ctx, nft, id)
			if err != nil {
				cancel()
				return fmt.Errorf("policy %s: %w", id, err)
			}
			p := Policy{ID: id, Data: data}
			if data.PolicyType == policyTypeAaveDLP {
				dlp, err := l.reader.DLPPolicyData(ctx, nft, id)
				if err != nil {
					l.logger.Warn("dlp policy data read failed", zap.String("policy_id", id.String()), zap.Error(err))
				} else {
					p.DLP = &dlp
				}
			}
			policies[i] = p
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, apperr.Chain("read policy data", err)
	}

	sort.Slice(policies, func(a, b int) bool {
		return policies[a].ID.Cmp(policies[b].ID) < 0
	})
	l.logger.Debug("policies loaded", zap.String("wallet", sess.Wallet.Hex()), zap.Int("count", len(policies)))
	return policies, nil
}
