package chainstore

import (
	"path/filepath"
	"testing"

	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "chain")
	s, err := Open(dir, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func childBlock(parent types.Block, coinbase types.Address) types.Block {
	return types.Block{
		Depth:     parent.Depth + 1,
		PrevHash:  parent.Hash(),
		Timestamp: parent.Timestamp + 1,
		Coinbase:  coinbase,
	}
}

func TestTryAddBlockGenesisThenChild(t *testing.T) {
	s := openTestStore(t)
	gen := genesis.Block()

	if err := s.TryAddBlock(gen); err != nil {
		t.Fatalf("add genesis: %v", err)
	}

	child := childBlock(gen, types.Address{1})
	if err := s.TryAddBlock(child); err != nil {
		t.Fatalf("add child: %v", err)
	}

	if got := s.Top().Hash(); got != child.Hash() {
		t.Fatalf("top hash = %s, want %s", got, child.Hash())
	}
	if s.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", s.Depth())
	}
}

func TestTryAddBlockRejectsParentMismatch(t *testing.T) {
	s := openTestStore(t)
	gen := genesis.Block()
	if err := s.TryAddBlock(gen); err != nil {
		t.Fatalf("add genesis: %v", err)
	}

	bad := types.Block{Depth: 1, PrevHash: types.Hash{0xFF}, Coinbase: types.Address{1}}
	if err := s.TryAddBlock(bad); err != ErrParentMismatch {
		t.Fatalf("got %v, want ErrParentMismatch", err)
	}
}

func TestTryAddBlockRejectsDuplicateDepth(t *testing.T) {
	s := openTestStore(t)
	gen := genesis.Block()
	if err := s.TryAddBlock(gen); err != nil {
		t.Fatalf("add genesis: %v", err)
	}

	bad := types.Block{Depth: 5, PrevHash: gen.Hash(), Coinbase: types.Address{1}}
	if err := s.TryAddBlock(bad); err != ErrDuplicateDepth {
		t.Fatalf("got %v, want ErrDuplicateDepth", err)
	}
}

func TestFindBlockAndTransaction(t *testing.T) {
	s := openTestStore(t)
	gen := genesis.Block()
	if err := s.TryAddBlock(gen); err != nil {
		t.Fatalf("add genesis: %v", err)
	}

	got, err := s.FindBlock(gen.Hash())
	if err != nil {
		t.Fatalf("FindBlock: %v", err)
	}
	if got.Hash() != gen.Hash() {
		t.Fatalf("round-tripped block hash mismatch")
	}

	txHash := gen.Transactions[0].Hash()
	block, err := s.FindTransaction(txHash)
	if err != nil {
		t.Fatalf("FindTransaction: %v", err)
	}
	if block.Hash() != gen.Hash() {
		t.Fatalf("FindTransaction returned wrong block")
	}
}

func TestFindBlockNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindBlock(types.Hash{1}); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestOpenRebuildsTopFromDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chain")

	s, err := Open(dir, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	gen := genesis.Block()
	if err := s.TryAddBlock(gen); err != nil {
		t.Fatalf("add genesis: %v", err)
	}
	child := childBlock(gen, types.Address{2})
	if err := s.TryAddBlock(child); err != nil {
		t.Fatalf("add child: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dir, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Top().Hash(); got != child.Hash() {
		t.Fatalf("reopened top hash = %s, want %s", got, child.Hash())
	}
	if reopened.Depth() != 1 {
		t.Fatalf("reopened depth = %d, want 1", reopened.Depth())
	}
}
