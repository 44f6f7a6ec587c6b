package codec

import (
	"testing"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

func TestBlockMarshalRoundTrip(t *testing.T) {
	block := types.Block{
		Depth:     3,
		PrevHash:  types.Hash{1, 2, 3},
		Timestamp: 100,
		Coinbase:  types.Address{9},
		Transactions: []types.BlockTx{
			{Tx: types.Tx{From: types.Address{1}, To: types.Address{2}, Amount: types.NewBalanceFromUint64(10), Fee: types.NewBalanceFromUint64(1)}},
		},
	}

	data, err := MarshalBlock(block)
	if err != nil {
		t.Fatalf("MarshalBlock: %v", err)
	}

	got, err := UnmarshalBlock(data)
	if err != nil {
		t.Fatalf("UnmarshalBlock: %v", err)
	}

	if got.Hash() != block.Hash() {
		t.Fatalf("hash mismatch after round trip")
	}
	if got.Depth != block.Depth || got.Coinbase != block.Coinbase {
		t.Fatalf("header fields mismatch: got %+v", got)
	}
}

func TestAccountMarshalRoundTrip(t *testing.T) {
	addr := types.Address{5}
	acc := types.NewClientAccount()
	acc.Balance = types.NewBalanceFromUint64(777)
	acc.TransactionHashes = []types.Hash{{1}, {2}}
	acc.Storage[types.Hash{3}] = [32]byte{4, 5, 6}

	data, err := MarshalAccount(addr, acc)
	if err != nil {
		t.Fatalf("MarshalAccount: %v", err)
	}

	got, err := UnmarshalAccount(data)
	if err != nil {
		t.Fatalf("UnmarshalAccount: %v", err)
	}

	if got.Balance.String() != acc.Balance.String() {
		t.Fatalf("balance mismatch: got %s, want %s", got.Balance, acc.Balance)
	}
	if len(got.TransactionHashes) != 2 {
		t.Fatalf("tx hashes mismatch: got %d, want 2", len(got.TransactionHashes))
	}
	if got.Storage[types.Hash{3}] != [32]byte{4, 5, 6} {
		t.Fatalf("storage mismatch: got %x", got.Storage[types.Hash{3}])
	}
}

func TestMerkleRootHexDeterministic(t *testing.T) {
	txs := []types.BlockTx{
		{Tx: types.Tx{From: types.Address{1}, To: types.Address{2}, Amount: types.NewBalanceFromUint64(1)}},
		{Tx: types.Tx{From: types.Address{3}, To: types.Address{4}, Amount: types.NewBalanceFromUint64(2)}},
	}

	r1, err := MerkleRootHex(txs)
	if err != nil {
		t.Fatalf("MerkleRootHex: %v", err)
	}
	r2, err := MerkleRootHex(txs)
	if err != nil {
		t.Fatalf("MerkleRootHex: %v", err)
	}
	if r1 != r2 {
		t.Fatalf("expected deterministic root, got %s and %s", r1, r2)
	}
	if r1 == "" {
		t.Fatal("expected non-empty merkle root")
	}
}
