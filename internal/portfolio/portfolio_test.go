package portfolio

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/chain/chaintest"
	"liquidityGuard/internal/clock"
	"liquidityGuard/internal/config"
	"liquidityGuard/internal/session"
)

const testChainID = 8453

func TestCountdown(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{-5, "0s"},
		{59, "59s"},
		{3_600, "1h"},
		{90_061, "1d 1h 1m"},
		{86_400 + 5, "1d 5s"},
		{2*86_400 + 3*3_600 + 4*60 + 5, "2d 3h 4m"},
	}
	for _, tc := range cases {
		if got := Countdown(tc.seconds); got != tc.want {
			t.Fatalf("Countdown(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestStatusAt(t *testing.T) {
	p := Policy{Data: chain.PolicyData{StartAt: 100, ActiveAt: 1_000, EndAt: 5_000}}

	pending := p.StatusAt(time.Unix(400, 0))
	assert.Equal(t, "Pending activation", pending.Status)
	assert.Equal(t, "10m", pending.Detail)

	active := p.StatusAt(time.Unix(1_000, 0))
	assert.Equal(t, "Active", active.Status)
	assert.Equal(t, "1h 6m 40s", active.Detail)

	expired := p.StatusAt(time.Unix(5_000, 0))
	assert.Equal(t, "Expired", expired.Status)
	assert.Equal(t, "1970-01-01T01:23:20Z", expired.Detail)

	assert.Equal(t, "-", FormatTime(0))
}

type failingDLP struct {
	*chain.Reader
}

func (failingDLP) DLPPolicyData(context.Context, common.Address, *big.Int) (chain.DLPPolicyData, error) {
	return chain.DLPPolicyData{}, errors.New("execution reverted")
}

func setup(t *testing.T) (*chaintest.Chain, config.Config, session.Session, common.Address) {
	t.Helper()
	fake := chaintest.NewChain()
	nft := chaintest.Addr("nft")
	user := chaintest.Addr("user")
	cfg := config.Config{ChainID: testChainID}.WithAddress(config.KeyPolicyNFT, nft.Hex())
	return fake, cfg, session.ReadOnly(testChainID, user), nft
}

func TestLoadReadsDLPDetails(t *testing.T) {
	fake, cfg, sess, nft := setup(t)
	fake.Return(nft, "getPoliciesByUser", []*big.Int{big.NewInt(2), big.NewInt(1)})
	fake.Return(nft, "policyData", chain.PolicyData{
		PolicyType:    1,
		InsuredAmount: big.NewInt(10),
		CoverageCap:   big.NewInt(9),
		ActiveAt:      10,
		EndAt:         20,
	})
	fake.Return(nft, "dlpPolicyData", chain.DLPPolicyData{ChainID: 8453, CoverageRatioBps: 8000, MaxPayoutBps: 5000})

	loader := NewLoader(cfg, chain.NewReader(fake), Options{})
	defer loader.Close()

	policies, err := loader.Load(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, int64(1), policies[0].ID.Int64())
	assert.Equal(t, "Aave DLP Coverage", policies[0].TypeLabel())
	require.NotNil(t, policies[1].DLP)
	assert.Equal(t, uint16(8000), policies[1].DLP.CoverageRatioBps)
	assert.Len(t, fake.Calls("dlpPolicyData"), 2)
}

func TestLoadToleratesDLPFailure(t *testing.T) {
	fake, cfg, sess, nft := setup(t)
	fake.Return(nft, "getPoliciesByUser", []*big.Int{big.NewInt(1)})
	fake.Return(nft, "policyData", chain.PolicyData{PolicyType: 1, InsuredAmount: big.NewInt(1), CoverageCap: big.NewInt(1)})

	loader := NewLoader(cfg, failingDLP{chain.NewReader(fake)}, Options{})
	defer loader.Close()

	policies, err := loader.Load(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Nil(t, policies[0].DLP)
}

func TestLoadSkipsDLPForCurvePolicies(t *testing.T) {
	fake, cfg, sess, nft := setup(t)
	fake.Return(nft, "getPoliciesByUser", []*big.Int{big.NewInt(1)})
	fake.Return(nft, "policyData", chain.PolicyData{PolicyType: 0, InsuredAmount: big.NewInt(1), CoverageCap: big.NewInt(1)})

	loader := NewLoader(cfg, chain.NewReader(fake), Options{})
	defer loader.Close()

	policies, err := loader.Load(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "Curve LP Coverage", policies[0].TypeLabel())
	assert.Empty(t, fake.Calls("dlpPolicyData"))
}

func TestLoadFailsOnPolicyDataError(t *testing.T) {
	fake, cfg, sess, nft := setup(t)
	fake.Return(nft, "getPoliciesByUser", []*big.Int{big.NewInt(1)})
	fake.Fail(nft, "policyData", errors.New("execution reverted: unknown policy"))

	loader := NewLoader(cfg, chain.NewReader(fake), Options{})
	defer loader.Close()

	_, err := loader.Load(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindChain))
}

func TestLoadRequiresPolicyNFT(t *testing.T) {
	fake, _, sess, _ := setup(t)
	loader := NewLoader(config.Config{ChainID: testChainID}, chain.NewReader(fake), Options{})
	defer loader.Close()

	_, err := loader.Load(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, "policy-nft not configured", err.Error())
	assert.Empty(t, fake.Calls(""))
}

func TestLoadEmpty(t *testing.T) {
	fake, cfg, sess, nft := setup(t)
	fake.Return(nft, "getPoliciesByUser", []*big.Int{})

	loader := NewLoader(cfg, chain.NewReader(fake), Options{})
	defer loader.Close()

	policies, err := loader.Load(context.Background(), sess)
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestLoaderUsesInjectedClock(t *testing.T) {
	fake, cfg, _, _ := setup(t)
	at := time.Unix(1_000, 0)
	loader := NewLoader(cfg, chain.NewReader(fake), Options{Clock: clock.Fixed{At: at}})
	defer loader.Close()

	assert.Equal(t, at, loader.Now())
	p := Policy{Data: chain.PolicyData{ActiveAt: 500, EndAt: 2_000}}
	assert.Equal(t, "Active", p.StatusAt(loader.Now()).Status)
}
