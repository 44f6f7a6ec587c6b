package core

import (
	"crypto/ecdsa"
	"errors"
	"path/filepath"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ledgerforge/corechain/internal/blockchain/chainstore"
	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/signature"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "chain")
	c, err := New(Config{DataPath: dir, Clean: true, NodeAddr: types.Address{1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.TryAddBlock(genesis.Block()); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}
	return c
}

// fundedSigner mines a block crediting a freshly generated key's derived
// address with the emission reward, so tests have a signer with a real
// spendable balance (the genesis recipient constant has no known key).
func fundedSigner(t *testing.T, c *Core) (*ecdsa.PrivateKey, types.Address) {
	t.Helper()
	key, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := types.AddressFromPublicKey(gethcrypto.FromECDSAPub(&key.PublicKey))

	top := c.TopBlock()
	reward := types.Block{
		Depth:     top.Depth + 1,
		PrevHash:  top.Hash(),
		Timestamp: top.Timestamp + 1,
		Coinbase:  addr,
	}
	if err := c.TryAddBlock(reward); err != nil {
		t.Fatalf("fund signer: %v", err)
	}
	return key, addr
}

func signedTxFrom(t *testing.T, key *ecdsa.PrivateKey, from, to types.Address, amount, fee uint64, ts uint32) types.Tx {
	t.Helper()
	tx := types.Tx{
		From:      from,
		To:        to,
		Amount:    types.NewBalanceFromUint64(amount),
		Fee:       types.NewBalanceFromUint64(fee),
		Timestamp: ts,
		Type:      types.TxTransfer,
	}
	sign, err := signature.Sign(tx, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tx.Sign = sign
	return tx
}

func TestNewSeedsGenesisBalance(t *testing.T) {
	c := newTestCore(t)

	recipient, err := types.AddressFromString(genesis.RecipientAddress)
	if err != nil {
		t.Fatalf("recipient address: %v", err)
	}
	bal := c.GetBalance(recipient)
	if bal.String() != types.MaxBalance().String() {
		t.Fatalf("genesis balance = %s, want max", bal)
	}
}

func TestAddTransactionRejectsMalformedShape(t *testing.T) {
	c := newTestCore(t)

	tx := types.Tx{To: types.NullAddress, Amount: types.ZeroBalance, Type: types.TxTransfer}
	code, err := c.AddTransaction(tx)
	if err == nil {
		t.Fatal("expected malformed tx to be rejected")
	}
	if code != types.StatusBadQueryForm {
		t.Fatalf("got code %v, want StatusBadQueryForm", code)
	}
}

func TestAddTransactionRejectsBadSignature(t *testing.T) {
	c := newTestCore(t)

	tx := types.Tx{
		From:      types.Address{7},
		To:        types.Address{8},
		Amount:    types.NewBalanceFromUint64(1),
		Timestamp: 1,
		Type:      types.TxTransfer,
	}
	if _, err := c.AddTransaction(tx); err == nil {
		t.Fatal("expected unsigned tx to be rejected")
	}
}

func TestAddTransactionNotifiesSubscribers(t *testing.T) {
	c := newTestCore(t)

	var notified types.Tx
	calls := 0
	c.SubscribeTransactions(func(tx types.Tx) {
		calls++
		notified = tx
	})

	key, from := fundedSigner(t, c)
	tx := signedTxFrom(t, key, from, types.Address{2}, 100, 1, 1)
	if _, err := c.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if calls != 1 {
		t.Fatalf("got %d subscriber calls, want 1", calls)
	}
	if notified.Hash() != tx.Hash() {
		t.Fatal("subscriber received the wrong transaction")
	}
}

func TestTryAddBlockRejectsLinkageMismatch(t *testing.T) {
	c := newTestCore(t)

	bad := types.Block{Depth: 1, PrevHash: types.Hash{0xFF}, Coinbase: types.Address{9}}
	err := c.TryAddBlock(bad)
	if !errors.Is(err, chainstore.ErrParentMismatch) {
		t.Fatalf("got %v, want ErrParentMismatch", err)
	}
}

func TestTryAddBlockAppliesAndNotifiesSubscribers(t *testing.T) {
	c := newTestCore(t)

	top := c.TopBlock()
	var notifiedDepth uint64
	c.SubscribeBlocks(func(b types.Block) { notifiedDepth = b.Depth })

	child := types.Block{
		Depth:     top.Depth + 1,
		PrevHash:  top.Hash(),
		Timestamp: top.Timestamp + 1,
		Coinbase:  types.Address{5},
	}
	if err := c.TryAddBlock(child); err != nil {
		t.Fatalf("TryAddBlock: %v", err)
	}
	if notifiedDepth != child.Depth {
		t.Fatalf("block subscriber depth = %d, want %d", notifiedDepth, child.Depth)
	}
	if c.TopBlock().Hash() != child.Hash() {
		t.Fatal("chain top did not advance")
	}

	wantMiner := genesis.EmissionValue
	if got := c.GetBalance(types.Address{5}); got.String() != wantMiner.String() {
		t.Fatalf("miner balance = %s, want emission value %s", got, wantMiner)
	}
}

func TestTryAddBlockMinedTransactionsLeaveMempool(t *testing.T) {
	c := newTestCore(t)

	key, from := fundedSigner(t, c)
	tx := signedTxFrom(t, key, from, types.Address{2}, 100, 1, 1)
	if _, err := c.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	top := c.TopBlock()
	block := c.AssembleBlock(types.Address{6}, top.Timestamp+1, -1)
	if len(block.Transactions) != 1 {
		t.Fatalf("got %d txs in assembled block, want 1", len(block.Transactions))
	}

	if err := c.TryAddBlock(block); err != nil {
		t.Fatalf("TryAddBlock: %v", err)
	}

	if _, ok := c.GetTransactionStatus(tx.Hash()); !ok {
		t.Fatal("expected a recorded transaction status after mining")
	}
}

func TestNewReplaysPersistedBlocksOnRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chain")

	c1, err := New(Config{DataPath: dir, Clean: true, NodeAddr: types.Address{1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c1.TryAddBlock(genesis.Block()); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	key, from := fundedSigner(t, c1)
	tx := signedTxFrom(t, key, from, types.Address{2}, 500, 1, 1)
	if _, err := c1.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	top := c1.TopBlock()
	block := c1.AssembleBlock(types.Address{3}, top.Timestamp+1, -1)
	if err := c1.TryAddBlock(block); err != nil {
		t.Fatalf("TryAddBlock: %v", err)
	}

	wantBalance := c1.GetBalance(types.Address{2})
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := New(Config{DataPath: dir, Clean: false, NodeAddr: types.Address{1}})
	if err != nil {
		t.Fatalf("reopen New: %v", err)
	}
	t.Cleanup(func() { c2.Close() })

	if got := c2.GetBalance(types.Address{2}); got.String() != wantBalance.String() {
		t.Fatalf("balance after restart = %s, want %s", got, wantBalance)
	}
	if _, ok := c2.GetTransactionStatus(tx.Hash()); !ok {
		t.Fatal("expected replayed transaction status to be recorded after restart")
	}
}

func TestAddTransactionRejectsAlreadyMinedTransaction(t *testing.T) {
	c := newTestCore(t)

	key, from := fundedSigner(t, c)
	tx := signedTxFrom(t, key, from, types.Address{2}, 100, 1, 1)
	if _, err := c.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	top := c.TopBlock()
	block := c.AssembleBlock(types.Address{6}, top.Timestamp+1, -1)
	if err := c.TryAddBlock(block); err != nil {
		t.Fatalf("TryAddBlock: %v", err)
	}

	balBefore := c.GetBalance(types.Address{2})

	code, err := c.AddTransaction(tx)
	if err != nil {
		t.Fatalf("resubmitting a mined transaction returned an error: %v", err)
	}
	if code != types.StatusSuccess {
		t.Fatalf("resubmit status = %v, want the prior recorded StatusSuccess", code)
	}

	if pending := c.PendingTransactions(); len(pending) != 0 {
		t.Fatalf("resubmitted transaction re-entered the mempool: %d pending", len(pending))
	}
	if got := c.GetBalance(types.Address{2}); got.String() != balBefore.String() {
		t.Fatalf("balance changed after resubmitting an already-mined transaction: %s -> %s", balBefore, got)
	}
}

func TestKnownPeersDefaultsToEmptyUntilWired(t *testing.T) {
	c := newTestCore(t)
	if got := c.KnownPeers(); got != nil {
		t.Fatalf("got %v, want nil before SetPeersFn", got)
	}
}
