// Package executor implements the state-transition algorithm: replaying a
// block's transactions against the state manager, one at a time, each
// inside its own copy-on-write sandbox so a reverted transaction leaves no
// trace.
//
// This is new code — the teacher's worker package only ever moves whole
// Balance values between accounts (foundation/blockchain/database), it
// never runs anything EVM-shaped — but it follows the teacher's error
// handling idiom (sentinel errors wrapped with fmt.Errorf("%w: ...")) and
// its evHandler logging convention throughout.
package executor

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ledgerforge/corechain/internal/blockchain/evmhost"
	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/signature"
	"github.com/ledgerforge/corechain/internal/blockchain/state"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// Executor replays blocks against a state manager.
type Executor struct {
	state     *state.Manager
	evHandler func(v string, args ...any)
}

// New constructs an Executor bound to a state manager.
func New(s *state.Manager, evHandler func(v string, args ...any)) *Executor {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	return &Executor{state: s, evHandler: evHandler}
}

// ExecuteBlock replays every transaction in block against the executor's
// state manager in order, crediting the coinbase with EMISSION_VALUE once
// before replaying any transaction. It returns the per-transaction
// statuses in the same order as block.Transactions.
func (e *Executor) ExecuteBlock(block types.Block) ([]types.TransactionStatus, error) {
	if !block.IsGenesis() {
		e.state.Credit(block.Coinbase, genesis.EmissionValue)
	}

	statuses := make([]types.TransactionStatus, 0, len(block.Transactions))
	for _, btx := range block.Transactions {
		status, err := e.executeOne(block, btx)
		if err != nil {
			return statuses, fmt.Errorf("executor: tx %s: %w", btx.Hash(), err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// executeOne runs the five-branch algorithm from spec §4.G for a single
// transaction.
func (e *Executor) executeOne(block types.Block, btx types.BlockTx) (types.TransactionStatus, error) {
	tx := btx.Tx
	txHash := btx.Hash()

	// Step 1: pre-charge bookkeeping.
	e.state.RecordTransactionHash(tx.From, txHash)

	// Step 2: open the sandbox.
	sandbox := e.state.CreateCopy()

	switch {
	case tx.To.IsNull():
		return e.executeContractCreation(block, sandbox, tx)

	default:
		toAcc := sandbox.GetAccount(tx.To)
		if toAcc.Type == types.AccountContract {
			return e.executeContractCall(block, sandbox, tx)
		}
		return e.executeTransfer(sandbox, block.Coinbase, tx)
	}
}

func (e *Executor) executeContractCreation(block types.Block, sandbox *state.Snapshot, tx types.Tx) (types.TransactionStatus, error) {
	fromAcc := sandbox.GetAccount(tx.From)
	newFromBal, err := fromAcc.Balance.Sub(tx.Fee)
	if err != nil {
		return types.TransactionStatus{
			Code:   types.StatusNotEnoughBalance,
			Action: types.ActionContractCreation,
		}, nil
	}
	fromAcc.Balance = newFromBal
	sandbox.SetAccount(tx.From, fromAcc)

	dataHash := sha256.Sum256(tx.Data)
	contractAddr := sandbox.CreateContractAccount(tx.From, dataHash)

	if !sandbox.TryTransferMoney(tx.From, contractAddr, tx.Amount) {
		return types.TransactionStatus{
			Code:   types.StatusNotEnoughBalance,
			Action: types.ActionContractCreation,
		}, nil
	}

	host := evmhost.New(sandbox, block)
	result := host.Create(tx.From, contractAddr, tx.Data, tx.Fee.Uint64())

	switch result.Outcome {
	case evmhost.OutcomeSuccess:
		acc := sandbox.GetAccount(contractAddr)
		acc.SetRuntimeCode(result.Output)
		sandbox.SetAccount(contractAddr, acc)

		e.creditFeeSplit(sandbox, tx.From, block.Coinbase, tx.Fee, result.GasLeft)
		e.state.ApplyChanges(sandbox)

		return types.TransactionStatus{
			Code:    types.StatusSuccess,
			Action:  types.ActionContractCreation,
			GasLeft: result.GasLeft,
			Message: contractAddr.String(),
		}, nil

	case evmhost.OutcomeRevert:
		e.creditFeeSplitDirect(tx.From, block.Coinbase, tx.Fee, result.GasLeft)
		return types.TransactionStatus{
			Code:    types.StatusRevert,
			Action:  types.ActionContractCreation,
			GasLeft: result.GasLeft,
		}, nil

	default:
		e.creditFeeSplitDirect(tx.From, block.Coinbase, tx.Fee, result.GasLeft)
		return types.TransactionStatus{
			Code:   types.StatusBadQueryForm,
			Action: types.ActionContractCreation,
		}, nil
	}
}

func (e *Executor) executeContractCall(block types.Block, sandbox *state.Snapshot, tx types.Tx) (types.TransactionStatus, error) {
	fromAcc := sandbox.GetAccount(tx.From)
	newFromBal, err := fromAcc.Balance.Sub(tx.Fee)
	if err != nil {
		return types.TransactionStatus{
			Code:   types.StatusNotEnoughBalance,
			Action: types.ActionContractCall,
		}, nil
	}

	if len(tx.Data) == 0 {
		return types.TransactionStatus{
			Code:   types.StatusBadQueryForm,
			Action: types.ActionContractCall,
		}, nil
	}

	fromAcc.Balance = newFromBal
	sandbox.SetAccount(tx.From, fromAcc)

	if !tx.Amount.IsZero() {
		if !sandbox.TryTransferMoney(tx.From, tx.To, tx.Amount) {
			return types.TransactionStatus{
				Code:   types.StatusNotEnoughBalance,
				Action: types.ActionContractCall,
			}, nil
		}
	}

	toAcc := sandbox.GetAccount(tx.To)

	host := evmhost.New(sandbox, block)
	result := host.Call(tx.From, tx.To, toAcc.RuntimeCode, tx.Data, tx.Fee.Uint64())

	switch result.Outcome {
	case evmhost.OutcomeSuccess:
		e.creditFeeSplit(sandbox, tx.From, block.Coinbase, tx.Fee, result.GasLeft)
		e.state.ApplyChanges(sandbox)

		return types.TransactionStatus{
			Code:    types.StatusSuccess,
			Action:  types.ActionContractCall,
			GasLeft: result.GasLeft,
			Message: base64Encode(result.Output),
		}, nil

	case evmhost.OutcomeRevert:
		e.creditFeeSplitDirect(tx.From, block.Coinbase, tx.Fee, result.GasLeft)
		return types.TransactionStatus{
			Code:    types.StatusRevert,
			Action:  types.ActionContractCall,
			GasLeft: result.GasLeft,
		}, nil

	default:
		e.creditFeeSplitDirect(tx.From, block.Coinbase, tx.Fee, result.GasLeft)
		return types.TransactionStatus{
			Code:   types.StatusFailed,
			Action: types.ActionContractCall,
		}, nil
	}
}

func (e *Executor) executeTransfer(sandbox *state.Snapshot, coinbase types.Address, tx types.Tx) (types.TransactionStatus, error) {
	fromAcc := sandbox.GetAccount(tx.From)
	newFromBal, err := fromAcc.Balance.Sub(tx.Fee)
	if err != nil {
		return types.TransactionStatus{
			Code:   types.StatusNotEnoughBalance,
			Action: types.ActionTransfer,
		}, nil
	}
	fromAcc.Balance = newFromBal
	sandbox.SetAccount(tx.From, fromAcc)

	if !sandbox.TryTransferMoney(tx.From, tx.To, tx.Amount) {
		return types.TransactionStatus{
			Code:   types.StatusNotEnoughBalance,
			Action: types.ActionTransfer,
		}, nil
	}

	sandbox.Credit(coinbase, tx.Fee)
	e.state.ApplyChanges(sandbox)

	return types.TransactionStatus{
		Code:   types.StatusSuccess,
		Action: types.ActionTransfer,
	}, nil
}

// creditFeeSplit credits tx.fee - gas_left to coinbase and refunds
// gas_left to from, both within the sandbox, ahead of commit.
func (e *Executor) creditFeeSplit(sandbox *state.Snapshot, from, coinbase types.Address, fee types.Balance, gasLeft uint64) {
	spent := feeSpent(fee, gasLeft)
	sandbox.Credit(coinbase, spent)
	if gasLeft > 0 {
		sandbox.Credit(from, types.NewBalanceFromUint64(gasLeft))
	}
}

// creditFeeSplitDirect performs the same fee accounting as creditFeeSplit
// but directly against live state, used on the REVERT/failure paths where
// spec §4.G requires the sandbox not be committed.
func (e *Executor) creditFeeSplitDirect(from, coinbase types.Address, fee types.Balance, gasLeft uint64) {
	spent := feeSpent(fee, gasLeft)
	e.state.Credit(coinbase, spent)
	if gasLeft > 0 {
		e.state.Credit(from, types.NewBalanceFromUint64(gasLeft))
	}
}

func feeSpent(fee types.Balance, gasLeft uint64) types.Balance {
	spent, err := fee.Sub(types.NewBalanceFromUint64(gasLeft))
	if err != nil {
		return fee
	}
	return spent
}

// CheckSignature verifies a transaction's signature and derives-matches
// its From address, the precondition the pending pool and block
// validation both require before admitting a transaction.
func CheckSignature(tx types.Tx) error {
	if err := signature.Verify(tx); err != nil {
		return err
	}
	addr, err := signature.DeriveAddress(tx)
	if err != nil {
		return err
	}
	if addr != tx.From {
		return errors.New("executor: signature address mismatch")
	}
	return nil
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
