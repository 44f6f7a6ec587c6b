package evmhost

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/holiman/uint256"

	"github.com/ledgerforge/corechain/internal/blockchain/state"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// stateDBAdapter implements go-ethereum's vm.StateDB interface against a
// state.Snapshot, so the EVM interpreter can run without knowing our
// account model exists.
//
// Two concepts the EVM assumes do not exist in our model and are emulated
// here: transient storage (kept in a plain map, since our sandbox is
// already transaction-scoped) and snapshot/revert-to-snapshot (our
// sandbox is all-or-nothing at the Go call boundary, so Snapshot/
// RevertToSnapshot are tracked but only used to gate double-reverts).
type stateDBAdapter struct {
	snapshot *state.Snapshot

	codeOverride map[common.Address][]byte
	transient    map[common.Hash]common.Hash
	refund       uint64
	logs         []*gethtypes.Log
	accessList   map[common.Address]map[common.Hash]bool
	selfDestruct map[common.Address]bool
	snapCounter  int
}

func newStateDBAdapter(snapshot *state.Snapshot) *stateDBAdapter {
	return &stateDBAdapter{
		snapshot:     snapshot,
		codeOverride: make(map[common.Address][]byte),
		transient:    make(map[common.Hash]common.Hash),
		accessList:   make(map[common.Address]map[common.Hash]bool),
		selfDestruct: make(map[common.Address]bool),
	}
}

// overrideCode makes code visible as the account's code without going
// through the normal SetCode path, used to stage the code being executed
// (init code for Create, runtime code for Call) before the interpreter
// reads it back via GetCode.
func (s *stateDBAdapter) overrideCode(addr common.Address, code []byte) {
	s.codeOverride[addr] = code
}

func (s *stateDBAdapter) account(addr common.Address) types.Account {
	a, _ := types.AddressFromBytes(addr[:])
	return s.snapshot.GetAccount(a)
}

func (s *stateDBAdapter) setAccount(addr common.Address, acc types.Account) {
	a, _ := types.AddressFromBytes(addr[:])
	s.snapshot.SetAccount(a, acc)
}

func (s *stateDBAdapter) CreateAccount(addr common.Address) {
	acc := types.NewClientAccount()
	s.setAccount(addr, acc)
}

func (s *stateDBAdapter) CreateContract(addr common.Address) {
	acc := s.account(addr)
	acc.Type = types.AccountContract
	s.setAccount(addr, acc)
}

func (s *stateDBAdapter) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	acc := s.account(addr)
	prior := acc.Balance
	delta := types.BalanceFromBytes32(amount.Bytes32())
	newBal, err := acc.Balance.Sub(delta)
	if err == nil {
		acc.Balance = newBal
		s.setAccount(addr, acc)
	}
	priorBytes := prior.Bytes32()
	var u uint256.Int
	u.SetBytes32(priorBytes[:])
	return u
}

func (s *stateDBAdapter) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	acc := s.account(addr)
	prior := acc.Balance
	delta := types.BalanceFromBytes32(amount.Bytes32())
	newBal, err := acc.Balance.Add(delta)
	if err == nil {
		acc.Balance = newBal
		s.setAccount(addr, acc)
	}
	priorBytes := prior.Bytes32()
	var u uint256.Int
	u.SetBytes32(priorBytes[:])
	return u
}

func (s *stateDBAdapter) GetBalance(addr common.Address) *uint256.Int {
	acc := s.account(addr)
	b := acc.Balance.Bytes32()
	var u uint256.Int
	u.SetBytes32(b[:])
	return &u
}

func (s *stateDBAdapter) GetNonce(addr common.Address) uint64 {
	acc := s.account(addr)
	return uint64(len(acc.TransactionHashes))
}

func (s *stateDBAdapter) SetNonce(addr common.Address, nonce uint64, _ tracing.NonceChangeReason) {
	// Nonce in this system is derived from transaction history length and
	// is not independently settable; the EVM only sets it for CREATE,
	// which this host implements by direct address derivation instead.
}

func (s *stateDBAdapter) GetCodeHash(addr common.Address) common.Hash {
	acc := s.account(addr)
	return common.Hash(acc.CodeHash)
}

func (s *stateDBAdapter) GetCode(addr common.Address) []byte {
	if code, ok := s.codeOverride[addr]; ok {
		return code
	}
	acc := s.account(addr)
	return acc.RuntimeCode
}

func (s *stateDBAdapter) SetCode(addr common.Address, code []byte) {
	acc := s.account(addr)
	acc.SetRuntimeCode(code)
	s.setAccount(addr, acc)
}

func (s *stateDBAdapter) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *stateDBAdapter) AddRefund(v uint64) { s.refund += v }

func (s *stateDBAdapter) SubRefund(v uint64) {
	if v > s.refund {
		s.refund = 0
		return
	}
	s.refund -= v
}

func (s *stateDBAdapter) GetRefund() uint64 { return s.refund }

func (s *stateDBAdapter) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return s.GetState(addr, key)
}

func (s *stateDBAdapter) GetState(addr common.Address, key common.Hash) common.Hash {
	acc := s.account(addr)
	slot := types.StorageKey(key)
	word, ok := acc.Storage[slot]
	if !ok {
		return common.Hash{}
	}
	return common.Hash(word)
}

func (s *stateDBAdapter) SetState(addr common.Address, key, value common.Hash) common.Hash {
	acc := s.account(addr)
	if acc.Storage == nil {
		acc.Storage = make(map[types.Hash][32]byte)
	}
	slot := types.StorageKey(key)
	prior := acc.Storage[slot]
	acc.Storage[slot] = [32]byte(value)
	s.setAccount(addr, acc)
	return common.Hash(prior)
}

func (s *stateDBAdapter) GetStorageRoot(addr common.Address) common.Hash {
	return common.Hash{}
}

func (s *stateDBAdapter) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return s.transient[transientKey(addr, key)]
}

func (s *stateDBAdapter) SetTransientState(addr common.Address, key, value common.Hash) {
	s.transient[transientKey(addr, key)] = value
}

func transientKey(addr common.Address, key common.Hash) common.Hash {
	var combined common.Hash
	copy(combined[:20], addr[:])
	copy(combined[20:], key[:12])
	return combined
}

func (s *stateDBAdapter) SelfDestruct(addr common.Address) uint256.Int {
	acc := s.account(addr)
	s.selfDestruct[addr] = true
	s.snapshot.DeleteAccount(addr20(addr))
	bal := acc.Balance.Bytes32()
	var u uint256.Int
	u.SetBytes32(bal[:])
	return u
}

func (s *stateDBAdapter) HasSelfDestructed(addr common.Address) bool {
	return s.selfDestruct[addr]
}

func (s *stateDBAdapter) Selfdestruct6780(addr common.Address) (uint256.Int, bool) {
	u := s.SelfDestruct(addr)
	return u, true
}

func (s *stateDBAdapter) Exist(addr common.Address) bool {
	if _, ok := s.codeOverride[addr]; ok {
		return true
	}
	return s.snapshot.Has(addr20(addr))
}

func (s *stateDBAdapter) Empty(addr common.Address) bool {
	acc := s.account(addr)
	return acc.Balance.IsZero() && len(acc.RuntimeCode) == 0 && len(acc.TransactionHashes) == 0
}

func (s *stateDBAdapter) AddressInAccessList(addr common.Address) bool {
	_, ok := s.accessList[addr]
	return ok
}

func (s *stateDBAdapter) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	slots, ok := s.accessList[addr]
	if !ok {
		return false, false
	}
	return true, slots[slot]
}

func (s *stateDBAdapter) AddAddressToAccessList(addr common.Address) {
	if _, ok := s.accessList[addr]; !ok {
		s.accessList[addr] = make(map[common.Hash]bool)
	}
}

func (s *stateDBAdapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.AddAddressToAccessList(addr)
	s.accessList[addr][slot] = true
}

func (s *stateDBAdapter) RevertToSnapshot(id int) {
	// Our sandbox has no partial-rollback granularity finer than the
	// whole transaction; mid-call reverts are handled by the interpreter
	// itself discarding its own return value, so there is nothing further
	// to unwind here.
}

func (s *stateDBAdapter) Snapshot() int {
	s.snapCounter++
	return s.snapCounter
}

func (s *stateDBAdapter) AddLog(log *gethtypes.Log) {
	s.logs = append(s.logs, log)
}

func (s *stateDBAdapter) AddPreimage(hash common.Hash, preimage []byte) {}

func addr20(a common.Address) types.Address {
	out, _ := types.AddressFromBytes(a[:])
	return out
}
