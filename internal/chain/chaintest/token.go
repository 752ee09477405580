package chaintest

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a stateful ERC20 fake served through a Chain.
type Token struct {
	Address common.Address

	mu         sync.Mutex
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
}

// NewToken registers decimals, balanceOf and allowance handlers on c.
func NewToken(c *Chain, addr common.Address, decimals uint8) *Token {
	t := &Token{
		Address:    addr,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
	}
	c.Handle(addr, "decimals", func([]interface{}) ([]interface{}, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return []interface{}{t.decimals}, nil
	})
	c.Handle(addr, "balanceOf", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{t.Balance(args[0].(common.Address))}, nil
	})
	c.Handle(addr, "allowance", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{t.Allowance(args[0].(common.Address), args[1].(common.Address))}, nil
	})
	return t
}

func (t *Token) SetBalance(owner common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = new(big.Int).Set(v)
}

func (t *Token) Balance(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v := t.balances[owner]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *Token) SetAllowance(owner, spender common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(v)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v := t.allowances[[2]common.Address{owner, spender}]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Apply records an approve sent by from to this token. Other transactions
// are ignored.
func (t *Token) Apply(from common.Address, s Sent) {
	if s.To != t.Address || s.Method != "approve" {
		return
	}
	t.SetAllowance(from, s.Args[0].(common.Address), s.Args[1].(*big.Int))
}
