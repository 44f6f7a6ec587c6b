// Package state manages the live account map: balances, nonce-style
// transaction-hash bookkeeping, and per-contract storage. It is the one
// place in the system that owns mutable account data; every other
// package reads or writes accounts through it.
//
// The shape (mu sync.RWMutex guarding a map[Address]Account, genesis
// credited on construction, Copy/Apply around mutation) follows the
// teacher's foundation/blockchain/database/database.go Database type.
// The copy-on-write sandbox the executor needs (createCopy/applyChanges
// in spec §4.F) is new: the teacher commits directly under db.mu, but an
// EVM call needs to buffer writes and discard them on revert, so this
// package adds a Snapshot type that records reads and buffers writes
// until Apply.
package state

import (
	"sync"

	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// Manager owns the live set of accounts.
type Manager struct {
	mu       sync.RWMutex
	accounts map[types.Address]types.Account

	evHandler func(v string, args ...any)
}

// New constructs a Manager and credits the genesis recipient.
func New(evHandler func(v string, args ...any)) *Manager {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	m := &Manager{
		accounts:  make(map[types.Address]types.Account),
		evHandler: evHandler,
	}

	m.updateFromGenesisLocked(genesis.Block())

	return m
}

// UpdateFromGenesis credits the genesis recipient with the genesis amount.
// Exposed so callers rebuilding state from a loaded chain can re-derive it
// from an arbitrary genesis block rather than only the compiled-in default.
func (m *Manager) UpdateFromGenesis(block types.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateFromGenesisLocked(block)
}

func (m *Manager) updateFromGenesisLocked(block types.Block) {
	for _, btx := range block.Transactions {
		acc := m.accounts[btx.To]
		if acc.Storage == nil {
			acc = types.NewClientAccount()
		}

		newBal, err := acc.Balance.Add(btx.Amount)
		if err != nil {
			m.evHandler("state: genesis credit overflow for %s: %s", btx.To, err)
			continue
		}
		acc.Balance = newBal
		m.accounts[btx.To] = acc
	}
}

// HasAccount reports whether addr has an entry in the live map. It does
// not create one.
func (m *Manager) HasAccount(addr types.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[addr]
	return ok
}

// GetAccount returns addr's account, auto-creating a zero-balance CLIENT
// account on first access. Per spec §4.F this auto-create behavior is for
// write paths; read-only callers that want "not found" semantics should
// check HasAccount first.
func (m *Manager) GetAccount(addr types.Address) types.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(addr)
}

func (m *Manager) getAccountLocked(addr types.Address) types.Account {
	acc, ok := m.accounts[addr]
	if !ok {
		acc = types.NewClientAccount()
		m.accounts[addr] = acc
	}
	return acc
}

// CheckTransaction reports whether from's balance covers amount+fee.
func (m *Manager) CheckTransaction(from types.Address, amount, fee types.Balance) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[from]
	if !ok {
		return false
	}

	need, err := amount.Add(fee)
	if err != nil {
		return false
	}
	return acc.Balance.GreaterOrEqual(need)
}

// TryTransferMoney atomically debits from and credits to. It returns false
// without mutating anything if from's balance is insufficient.
func (m *Manager) TryTransferMoney(from, to types.Address, amount types.Balance) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromAcc := m.getAccountLocked(from)
	if fromAcc.Balance.Less(amount) {
		return false
	}

	newFromBal, err := fromAcc.Balance.Sub(amount)
	if err != nil {
		return false
	}

	toAcc := m.getAccountLocked(to)
	newToBal, err := toAcc.Balance.Add(amount)
	if err != nil {
		return false
	}

	fromAcc.Balance = newFromBal
	toAcc.Balance = newToBal
	m.accounts[from] = fromAcc
	m.accounts[to] = toAcc
	return true
}

// CreateContractAccount derives the contract address from creator,
// dataHash and the creator's current transaction count (used as the
// creation nonce), and installs a zero-balance CONTRACT account there.
func (m *Manager) CreateContractAccount(creator types.Address, dataHash [32]byte) types.Address {
	m.mu.Lock()
	defer m.mu.Unlock()

	creatorAcc := m.getAccountLocked(creator)
	nonce := uint64(len(creatorAcc.TransactionHashes))

	addr := types.ContractAddress(creator, dataHash, nonce)
	if _, ok := m.accounts[addr]; !ok {
		m.accounts[addr] = types.NewContractAccount()
	}
	return addr
}

// DeleteAccount removes addr entirely, used by selfdestruct.
func (m *Manager) DeleteAccount(addr types.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, addr)
}

// Credit adds amount to addr's balance without debiting anywhere. Used
// directly against live state on the executor's revert/failure paths,
// where the fee being paid out was already debited from the sender
// within a sandbox that is not being committed.
func (m *Manager) Credit(addr types.Address, amount types.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getAccountLocked(addr)
	newBal, err := acc.Balance.Add(amount)
	if err != nil {
		return
	}
	acc.Balance = newBal
	m.accounts[addr] = acc
}

// RecordTransactionHash appends txHash to addr's transaction history,
// the pre-charge bookkeeping step spec §4.G performs before opening a
// sandbox for a transaction.
func (m *Manager) RecordTransactionHash(addr types.Address, txHash types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getAccountLocked(addr)
	acc.TransactionHashes = append(acc.TransactionHashes, txHash)
	m.accounts[addr] = acc
}

// CopyAccounts returns a snapshot copy of every account, used by
// diagnostics and RPC account listings.
func (m *Manager) CopyAccounts() map[types.Address]types.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[types.Address]types.Account, len(m.accounts))
	for addr, acc := range m.accounts {
		out[addr] = acc.Clone()
	}
	return out
}

// CreateCopy opens a copy-on-write sandbox over the live account map. The
// sandbox reads through to the live map on first access to any given
// address and buffers every write locally; nothing is visible to other
// readers until ApplyChanges commits it.
func (m *Manager) CreateCopy() *Snapshot {
	return &Snapshot{
		mgr:   m,
		dirty: make(map[types.Address]dirtyAccount),
	}
}

// ApplyChanges merges a snapshot's buffered writes into the live account
// map under the manager's write lock. Reads in-flight against other
// snapshots are unaffected because they operate against their own dirty
// map plus whatever they already read from the live map.
func (m *Manager) ApplyChanges(s *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for addr, acc := range s.dirty {
		if acc.deleted {
			delete(m.accounts, addr)
			continue
		}
		m.accounts[addr] = acc.Account
	}
}

// Snapshot is a logical, copy-on-write view over a Manager's live
// accounts, used by the executor to stage a transaction's effects so they
// can be discarded on revert.
type Snapshot struct {
	mgr   *Manager
	mu    sync.Mutex
	dirty map[types.Address]dirtyAccount
}

type dirtyAccount struct {
	types.Account
	deleted bool
}

// GetAccount returns addr's account as seen by this snapshot: the buffered
// version if one exists, otherwise a copy read through to the live map
// (auto-creating there, matching Manager.GetAccount).
func (s *Snapshot) GetAccount(addr types.Address) types.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.dirty[addr]; ok {
		if d.deleted {
			return types.NewClientAccount()
		}
		return d.Account
	}

	acc := s.mgr.GetAccount(addr)
	s.dirty[addr] = dirtyAccount{Account: acc.Clone()}
	return acc
}

// Has reports whether addr has an account entry visible to this
// snapshot — either buffered locally or already present in the live
// map — without the auto-create side effect GetAccount has on a miss.
func (s *Snapshot) Has(addr types.Address) bool {
	s.mu.Lock()
	if d, ok := s.dirty[addr]; ok {
		s.mu.Unlock()
		return !d.deleted
	}
	s.mu.Unlock()

	return s.mgr.HasAccount(addr)
}

// SetAccount buffers an updated account under addr.
func (s *Snapshot) SetAccount(addr types.Address, acc types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[addr] = dirtyAccount{Account: acc}
}

// DeleteAccount buffers a deletion of addr, used by selfdestruct within a
// sandboxed execution.
func (s *Snapshot) DeleteAccount(addr types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[addr] = dirtyAccount{deleted: true}
}

// Credit adds amount to addr's balance without debiting anywhere, used by
// the executor for fee and EMISSION_VALUE payouts, where the source
// amount was already removed from the payer by a separate debit.
func (s *Snapshot) Credit(addr types.Address, amount types.Balance) {
	acc := s.GetAccount(addr)
	newBal, err := acc.Balance.Add(amount)
	if err != nil {
		return
	}
	acc.Balance = newBal
	s.SetAccount(addr, acc)
}

// TryTransferMoney performs a debit/credit entirely within the sandbox,
// without touching the live map. It returns false, leaving the sandbox
// unmodified, if from's balance is insufficient.
func (s *Snapshot) TryTransferMoney(from, to types.Address, amount types.Balance) bool {
	fromAcc := s.GetAccount(from)
	if fromAcc.Balance.Less(amount) {
		return false
	}

	newFromBal, err := fromAcc.Balance.Sub(amount)
	if err != nil {
		return false
	}

	toAcc := s.GetAccount(to)
	newToBal, err := toAcc.Balance.Add(amount)
	if err != nil {
		return false
	}

	fromAcc.Balance = newFromBal
	s.SetAccount(from, fromAcc)

	toAcc.Balance = newToBal
	s.SetAccount(to, toAcc)

	return true
}

// CreateContractAccount derives and installs a contract account within
// the sandbox, same derivation rule as Manager.CreateContractAccount but
// reading the creator's nonce through the sandbox.
func (s *Snapshot) CreateContractAccount(creator types.Address, dataHash [32]byte) types.Address {
	creatorAcc := s.GetAccount(creator)
	nonce := uint64(len(creatorAcc.TransactionHashes))

	addr := types.ContractAddress(creator, dataHash, nonce)
	if _, ok := s.dirty[addr]; !ok {
		if !s.mgr.HasAccount(addr) {
			s.SetAccount(addr, types.NewContractAccount())
		}
	}
	return addr
}
