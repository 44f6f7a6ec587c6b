// Package evmhost bridges the state manager to go-ethereum's core/vm
// interpreter, acting as the EVMC-style host spec §4.G asks for: "invoke
// the EVM with a message and code, observe SUCCESS/REVERT/other-failure."
//
// The teacher never touches the EVM — it only moves whole-unit balances
// between accounts. khanghh-bsc-monitor is the pack's heaviest user of
// core/vm and core/state (cmd/gethext/service/monitor), and its pattern of
// wrapping a custom backing store behind go-ethereum's StateDB interface
// is what this package follows, except the backing store here is our own
// state.Snapshot rather than go-ethereum's trie-backed state.StateDB.
//
// Contract addresses in this system are derived the way state.Manager
// does it (RIPEMD160(SHA256(creator||dataHash||nonce))), not go-ethereum's
// CREATE/CREATE2 rules, so contract creation runs init code as a CALL
// against the already-derived address and persists its return value as
// runtime code, rather than using vm.EVM's own Create/Create2 entry
// points.
package evmhost

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/ledgerforge/corechain/internal/blockchain/state"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// Outcome classifies how an EVM invocation finished, matching the three
// branches spec §4.G distinguishes for every contract creation/call.
type Outcome int

const (
	// OutcomeSuccess means the call returned normally.
	OutcomeSuccess Outcome = iota
	// OutcomeRevert means the call executed a REVERT opcode.
	OutcomeRevert
	// OutcomeFailure covers every other error the interpreter returns
	// (out of gas, invalid opcode, stack underflow).
	OutcomeFailure
)

// Result is what Host.Call / Host.Create return.
type Result struct {
	Outcome Outcome
	Output  []byte
	GasLeft uint64
}

// Host runs EVM messages against a state.Snapshot sandbox.
type Host struct {
	snapshot *state.Snapshot
	block    types.Block
}

// New constructs a Host bound to a sandbox and the block being executed
// (used to populate COINBASE/TIMESTAMP/NUMBER context).
func New(snapshot *state.Snapshot, block types.Block) *Host {
	return &Host{snapshot: snapshot, block: block}
}

// Create runs code as contract-creation init code against contractAddr,
// with sender as the caller. value has already been transferred to
// contractAddr by the caller before this is invoked. On success the
// returned output is the runtime code to install at contractAddr; the
// caller is responsible for calling snapshot.SetAccount with it.
func (h *Host) Create(sender, contractAddr types.Address, code []byte, gas uint64) Result {
	adapter := newStateDBAdapter(h.snapshot)
	adapter.overrideCode(toCommonAddress(contractAddr), code)

	evm := h.newEVM(adapter)

	ret, gasLeft, err := evm.Call(
		vm.AccountRef(toCommonAddress(sender)),
		toCommonAddress(contractAddr),
		nil,
		gas,
		new(uint256.Int),
	)

	return classify(ret, gasLeft, err)
}

// Call runs runtimeCode at contractAddr as a CALL message from sender,
// with input as calldata. value has already been transferred by the
// caller before this is invoked.
func (h *Host) Call(sender, contractAddr types.Address, runtimeCode, input []byte, gas uint64) Result {
	adapter := newStateDBAdapter(h.snapshot)
	adapter.overrideCode(toCommonAddress(contractAddr), runtimeCode)

	evm := h.newEVM(adapter)

	ret, gasLeft, err := evm.Call(
		vm.AccountRef(toCommonAddress(sender)),
		toCommonAddress(contractAddr),
		input,
		gas,
		new(uint256.Int),
	)

	return classify(ret, gasLeft, err)
}

func classify(ret []byte, gasLeft uint64, err error) Result {
	switch {
	case err == nil:
		return Result{Outcome: OutcomeSuccess, Output: ret, GasLeft: gasLeft}
	case err == vm.ErrExecutionReverted:
		return Result{Outcome: OutcomeRevert, Output: ret, GasLeft: gasLeft}
	default:
		return Result{Outcome: OutcomeFailure, GasLeft: gasLeft}
	}
}

func (h *Host) newEVM(adapter vm.StateDB) *vm.EVM {
	blockCtx := vm.BlockContext{
		CanTransfer: func(vm.StateDB, common.Address, *uint256.Int) bool { return true },
		Transfer:    func(vm.StateDB, common.Address, common.Address, *uint256.Int, bool) {},
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		Coinbase:    toCommonAddress(h.block.Coinbase),
		BlockNumber: new(big.Int).SetUint64(h.block.Depth),
		Time:        uint64(h.block.Timestamp),
		Difficulty:  big.NewInt(1),
		GasLimit:    params.GenesisGasLimit,
	}

	txCtx := vm.TxContext{}
	cfg := vm.Config{}

	return vm.NewEVM(blockCtx, txCtx, adapter, params.AllDevChainProtocolChanges, cfg)
}

func toCommonAddress(a types.Address) common.Address {
	var out common.Address
	copy(out[:], a[:])
	return out
}

func fromCommonAddress(a common.Address) types.Address {
	out, _ := types.AddressFromBytes(a[:])
	return out
}
