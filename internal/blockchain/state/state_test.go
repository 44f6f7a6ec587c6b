package state

import (
	"testing"

	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

func noopEvHandler(string, ...any) {}

func TestNewCreditsGenesisRecipient(t *testing.T) {
	m := New(noopEvHandler)

	recipient, err := types.AddressFromString(genesis.RecipientAddress)
	if err != nil {
		t.Fatalf("parse recipient address: %v", err)
	}

	got := m.GetAccount(recipient).Balance
	if got.String() != types.MaxBalance().String() {
		t.Fatalf("got balance %s, want %s", got, types.MaxBalance())
	}
}

func TestTryTransferMoneyInsufficientFunds(t *testing.T) {
	m := New(noopEvHandler)
	var from, to types.Address
	from[0] = 1
	to[0] = 2

	if m.TryTransferMoney(from, to, types.NewBalanceFromUint64(1)) {
		t.Fatal("expected transfer from zero-balance account to fail")
	}
}

func TestTryTransferMoneyMovesBalance(t *testing.T) {
	m := New(noopEvHandler)
	var from, to types.Address
	from[0] = 1
	to[0] = 2

	m.Credit(from, types.NewBalanceFromUint64(100))

	if !m.TryTransferMoney(from, to, types.NewBalanceFromUint64(40)) {
		t.Fatal("expected transfer to succeed")
	}

	if got := m.GetAccount(from).Balance.Uint64(); got != 60 {
		t.Fatalf("from balance = %d, want 60", got)
	}
	if got := m.GetAccount(to).Balance.Uint64(); got != 40 {
		t.Fatalf("to balance = %d, want 40", got)
	}
}

func TestSnapshotIsolationUntilApply(t *testing.T) {
	m := New(noopEvHandler)
	var addr types.Address
	addr[0] = 7
	m.Credit(addr, types.NewBalanceFromUint64(10))

	snap := m.CreateCopy()
	snap.Credit(addr, types.NewBalanceFromUint64(90))

	if got := m.GetAccount(addr).Balance.Uint64(); got != 10 {
		t.Fatalf("live balance changed before ApplyChanges: got %d", got)
	}
	if got := snap.GetAccount(addr).Balance.Uint64(); got != 100 {
		t.Fatalf("snapshot balance = %d, want 100", got)
	}

	m.ApplyChanges(snap)

	if got := m.GetAccount(addr).Balance.Uint64(); got != 100 {
		t.Fatalf("live balance after ApplyChanges = %d, want 100", got)
	}
}

func TestSnapshotDiscardedOnNoApply(t *testing.T) {
	m := New(noopEvHandler)
	var addr types.Address
	addr[0] = 9

	snap := m.CreateCopy()
	snap.Credit(addr, types.NewBalanceFromUint64(500))
	_ = snap // never applied

	if got := m.GetAccount(addr).Balance.Uint64(); got != 0 {
		t.Fatalf("live balance should be untouched, got %d", got)
	}
}

func TestCreateContractAccountDerivesDistinctAddresses(t *testing.T) {
	m := New(noopEvHandler)
	var creator types.Address
	creator[0] = 3

	hash1 := [32]byte{1}
	hash2 := [32]byte{2}

	addr1 := m.CreateContractAccount(creator, hash1)
	m.RecordTransactionHash(creator, types.Hash{1})
	addr2 := m.CreateContractAccount(creator, hash2)

	if addr1 == addr2 {
		t.Fatal("expected distinct contract addresses for distinct nonce/dataHash")
	}
	if m.GetAccount(addr1).Type != types.AccountContract {
		t.Fatal("expected contract account type at derived address")
	}
}
