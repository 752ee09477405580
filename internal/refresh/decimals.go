package refresh

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DecimalsFetcher reads ERC20 decimals from chain.
type DecimalsFetcher interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// DecimalsCache caches token decimals by address for the process lifetime.
// Failed reads are not cached.
type DecimalsCache struct {
	fetcher DecimalsFetcher

	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewDecimalsCache(fetcher DecimalsFetcher) *DecimalsCache {
	return &DecimalsCache{fetcher: fetcher, data: make(map[common.Address]uint8)}
}

func (c *DecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *DecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}

// Decimals returns cached decimals or reads them through the fetcher.
func (c *DecimalsCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if decimals, ok := c.Get(token); ok {
		return decimals, nil
	}
	decimals, err := c.fetcher.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}
	c.Set(token, decimals)
	return decimals, nil
}
