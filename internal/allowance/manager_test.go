package allowance

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/chain/chaintest"
)

type fixture struct {
	fake    *chaintest.Chain
	token   *chaintest.Token
	wallet  *chaintest.Wallet
	spender common.Address
	mgr     *Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fake := chaintest.NewChain()
	token := chaintest.NewToken(fake, chaintest.Addr("usdc"), 6)
	wallet := chaintest.NewWallet(chaintest.Addr("owner"))
	wallet.OnSend = func(s chaintest.Sent) { token.Apply(wallet.Address, s) }
	return fixture{
		fake:    fake,
		token:   token,
		wallet:  wallet,
		spender: chaintest.Addr("distributor"),
		mgr:     NewManager(chain.NewReader(fake), nil, 8453, nil),
	}
}

func TestEnsureApprovesExactShortfall(t *testing.T) {
	f := newFixture(t)

	hash, err := f.mgr.Ensure(context.Background(), f.wallet, f.spender, f.token.Address, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	sent := f.wallet.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, f.token.Address, sent[0].To)
	assert.Equal(t, f.spender, sent[0].Args[0].(common.Address))
	assert.Equal(t, int64(1_000_000), sent[0].Args[1].(*big.Int).Int64())
	assert.Equal(t, int64(1_000_000), f.token.Allowance(f.wallet.Address, f.spender).Int64())
}

func TestEnsureSkipsWhenSufficient(t *testing.T) {
	for _, current := range []int64{1_000_000, 5_000_000} {
		f := newFixture(t)
		f.token.SetAllowance(f.wallet.Address, f.spender, big.NewInt(current))

		hash, err := f.mgr.Ensure(context.Background(), f.wallet, f.spender, f.token.Address, big.NewInt(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, common.Hash{}, hash)
		assert.Empty(t, f.wallet.Sent(), "allowance %d", current)
	}
}

func TestEnsureSerializesSamePair(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.mgr.Ensure(context.Background(), f.wallet, f.spender, f.token.Address, big.NewInt(700))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"approve"}, f.wallet.Methods())
}

func TestEnsureRevertedApproval(t *testing.T) {
	f := newFixture(t)
	f.wallet.Revert("approve")

	_, err := f.mgr.Ensure(context.Background(), f.wallet, f.spender, f.token.Address, big.NewInt(1))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindChain))
}

func TestEnsureRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Ensure(context.Background(), f.wallet, f.spender, f.token.Address, big.NewInt(0))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, f.fake.Calls("allowance"))
}
