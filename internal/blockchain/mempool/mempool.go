// Package mempool is the pending pool: a deduplicated set of
// not-yet-mined transactions keyed by canonical hash, admitted under an
// all-funds-reserved check against current state.
//
// Grounded on the teacher's foundation/blockchain/mempool package: a
// map[string]BlockTx guarded by sync.RWMutex, with a pluggable selection
// strategy delegated to a selector.Func, same split this package keeps as
// mempool/selector.
package mempool

import (
	"errors"
	"sync"

	"github.com/ledgerforge/corechain/internal/blockchain/mempool/selector"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// ErrBadSign is returned when a transaction's signature does not verify
// or does not match its claimed From address.
var ErrBadSign = errors.New("mempool: bad signature")

// ErrInsufficientFunds is returned when admitting tx would make the
// sender's reserved total exceed their current balance.
var ErrInsufficientFunds = errors.New("mempool: insufficient funds")

// VerifyFunc checks a transaction's signature, matching
// executor.CheckSignature's shape without creating an import cycle
// between mempool and executor.
type VerifyFunc func(tx types.Tx) error

// BalanceFunc returns addr's current balance, matching
// state.Manager.GetAccount(addr).Balance without depending on the state
// package directly.
type BalanceFunc func(addr types.Address) types.Balance

// Pool is the pending transaction set.
type Pool struct {
	mu       sync.RWMutex
	byHash   map[types.Hash]types.BlockTx
	verify   VerifyFunc
	balance  BalanceFunc
	selectFn selector.Func

	evHandler func(v string, args ...any)
}

// New constructs a Pool using the default descending-fee selection
// strategy.
func New(verify VerifyFunc, balance BalanceFunc, evHandler func(v string, args ...any)) (*Pool, error) {
	return NewWithStrategy(verify, balance, selector.StrategyTip, evHandler)
}

// NewWithStrategy constructs a Pool using a named selection strategy.
func NewWithStrategy(verify VerifyFunc, balance BalanceFunc, strategy string, evHandler func(v string, args ...any)) (*Pool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Pool{
		byHash:    make(map[types.Hash]types.BlockTx),
		verify:    verify,
		balance:   balance,
		selectFn:  selectFn,
		evHandler: evHandler,
	}, nil
}

// Count returns the number of pending transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Add runs the spec §4.I admission policy for tx and, if accepted,
// inserts it into the pool. It returns types.StatusPending and a nil error
// both for a newly accepted transaction and for a duplicate of one already
// pending, or an error describing the rejection reason.
func (p *Pool) Add(tx types.Tx) (types.StatusCode, error) {
	if err := p.verify(tx); err != nil {
		return types.StatusBadSign, ErrBadSign
	}

	hash := tx.Hash()

	p.mu.RLock()
	if _, ok := p.byHash[hash]; ok {
		p.mu.RUnlock()
		return types.StatusPending, nil
	}
	reserved := p.reservedLocked(tx.From)
	p.mu.RUnlock()

	need, err := reserved.Add(tx.Amount)
	if err == nil {
		need, err = need.Add(tx.Fee)
	}
	if err != nil {
		return types.StatusNotEnoughBalance, ErrInsufficientFunds
	}

	current := p.balance(tx.From)

	// spec §4.I: reserved(from) + amount + fee must be <= current_balance.
	// The source condition used "<", which would reject a transaction that
	// spends the balance down to exactly zero; this implementation uses "<=".
	if !current.GreaterOrEqual(need) {
		return types.StatusNotEnoughBalance, ErrInsufficientFunds
	}

	p.mu.Lock()
	p.byHash[hash] = types.BlockTx{Tx: tx}
	p.mu.Unlock()

	p.evHandler("mempool: accepted tx %s", hash)

	return types.StatusPending, nil
}

// Has reports whether a transaction with the given hash is pending.
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns the pending transaction with the given hash, if any.
func (p *Pool) Get(hash types.Hash) (types.BlockTx, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.byHash[hash]
	return tx, ok
}

// Delete removes a transaction from the pool, used once it has been
// mined into a block.
func (p *Pool) Delete(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byHash, hash)
}

// DeleteAll removes every transaction in txs, used after a block is
// accepted to drop everything it mined out of the pool.
func (p *Pool) DeleteAll(txs []types.BlockTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range txs {
		delete(p.byHash, tx.Hash())
	}
}

// Copy returns every pending transaction, in no particular order.
func (p *Pool) Copy() []types.BlockTx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.BlockTx, 0, len(p.byHash))
	for _, tx := range p.byHash {
		out = append(out, tx)
	}
	return out
}

// SelectBestByFee returns up to howMany pending transactions using the
// pool's configured selection strategy, grouped by sender and respecting
// per-sender ordering the way selector.Func implementations require. Pass
// -1 for every pending transaction.
func (p *Pool) SelectBestByFee(howMany int) []types.BlockTx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if howMany == -1 {
		howMany = len(p.byHash)
	}
	if howMany > len(p.byHash) {
		howMany = len(p.byHash)
	}

	grouped := make(map[types.Address][]types.BlockTx)
	for _, tx := range p.byHash {
		grouped[tx.From] = append(grouped[tx.From], tx)
	}

	return p.selectFn(grouped, howMany)
}

// reservedLocked sums amount+fee across every pending transaction from
// addr. Callers must hold at least a read lock.
func (p *Pool) reservedLocked(addr types.Address) types.Balance {
	total := types.ZeroBalance
	for _, tx := range p.byHash {
		if tx.From != addr {
			continue
		}
		sum, err := tx.Amount.Add(tx.Fee)
		if err != nil {
			continue
		}
		total, err = total.Add(sum)
		if err != nil {
			return total
		}
	}
	return total
}
