// Package chaintest provides in-memory contract and wallet fakes that speak
// the real ABIs, so flows can be exercised without a node.
package chaintest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityGuard/internal/chain"
)

// Handler answers one contract method; it returns the method outputs in order.
type Handler func(args []interface{}) ([]interface{}, error)

// Call is a decoded contract read or write.
type Call struct {
	To     common.Address
	Method string
	Args   []interface{}
}

type handlerKey struct {
	to     common.Address
	method string
}

// Chain is a fake read backend. Unhandled calls fail.
type Chain struct {
	mu       sync.Mutex
	handlers map[handlerKey]Handler
	calls    []Call
}

func NewChain() *Chain {
	return &Chain{handlers: make(map[handlerKey]Handler)}
}

// Handle installs h for method on contract to.
func (c *Chain) Handle(to common.Address, method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[handlerKey{to: to, method: method}] = h
}

// Return makes method on to always answer outputs.
func (c *Chain) Return(to common.Address, method string, outputs ...interface{}) {
	c.Handle(to, method, func([]interface{}) ([]interface{}, error) {
		return outputs, nil
	})
}

// Fail makes method on to always fail with err.
func (c *Chain) Fail(to common.Address, method string, err error) {
	c.Handle(to, method, func([]interface{}) ([]interface{}, error) {
		return nil, err
	})
}

// CallContract decodes msg with the known ABIs and dispatches to a handler.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, errors.New("call without target")
	}
	method, args, err := Decode(msg.Data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{To: *msg.To, Method: method.Name, Args: args})
	h := c.handlers[handlerKey{to: *msg.To, method: method.Name}]
	c.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("no handler for %s on %s", method.Name, msg.To.Hex())
	}
	out, err := h(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

// Calls returns the recorded reads of method, or all reads when method is empty.
func (c *Chain) Calls(method string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.calls {
		if method == "" || call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Decode resolves the method and arguments of calldata.
func Decode(data []byte) (*abi.Method, []interface{}, error) {
	method, err := chain.MethodByCalldata(data)
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return method, args, nil
}

// Sent is a transaction accepted by a Wallet.
type Sent struct {
	To     common.Address
	Method string
	Args   []interface{}
	Hash   common.Hash
}

// Wallet is a fake Transactor. Transactions succeed unless their method is
// marked with Revert or Reject.
type Wallet struct {
	Address common.Address

	// OnSend runs after a transaction is accepted and before its receipt
	// is visible; tests use it to apply state changes.
	OnSend func(Sent)

	mu       sync.Mutex
	nonce    uint64
	sent     []Sent
	receipts map[common.Hash]*types.Receipt
	revert   map[string]bool
	reject   map[string]error
}

func NewWallet(addr common.Address) *Wallet {
	return &Wallet{
		Address:  addr,
		receipts: make(map[common.Hash]*types.Receipt),
		revert:   make(map[string]bool),
		reject:   make(map[string]error),
	}
}

// Revert makes transactions calling method mine with a failed status.
func (w *Wallet) Revert(method string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.revert[method] = true
}

// Reject makes Send fail for method, as a wallet rejection would.
func (w *Wallet) Reject(method string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reject[method] = err
}

func (w *Wallet) From() common.Address {
	return w.Address
}

func (w *Wallet) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	method, args, err := Decode(data)
	if err != nil {
		return common.Hash{}, err
	}

	w.mu.Lock()
	if rejectErr := w.reject[method.Name]; rejectErr != nil {
		w.mu.Unlock()
		return common.Hash{}, rejectErr
	}
	w.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], w.nonce)
	hash := crypto.Keccak256Hash(w.Address.Bytes(), buf[:])
	sent := Sent{To: to, Method: method.Name, Args: args, Hash: hash}
	w.sent = append(w.sent, sent)
	status := types.ReceiptStatusSuccessful
	if w.revert[method.Name] {
		status = types.ReceiptStatusFailed
	}
	onSend := w.OnSend
	w.mu.Unlock()

	if onSend != nil && status == types.ReceiptStatusSuccessful {
		onSend(sent)
	}

	w.mu.Lock()
	w.receipts[hash] = &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(int64(w.nonce))}
	w.mu.Unlock()
	return hash, nil
}

// TransactionReceipt returns ethereum.NotFound until the transaction is known.
func (w *Wallet) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	receipt, ok := w.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (w *Wallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return chain.WaitMined(ctx, w, hash, time.Millisecond)
}

// Sent returns the accepted transactions in order.
func (w *Wallet) Sent() []Sent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Sent, len(w.sent))
	copy(out, w.sent)
	return out
}

// Methods returns the method names of accepted transactions in order.
func (w *Wallet) Methods() []string {
	sent := w.Sent()
	out := make([]string, 0, len(sent))
	for _, s := range sent {
		out = append(out, s.Method)
	}
	return out
}

// Addr derives a deterministic test address from a label.
func Addr(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}
