package mempool

import (
	"errors"
	"testing"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

func noopEvHandler(string, ...any) {}

func acceptAll(types.Tx) error { return nil }

func balanceOf(bal types.Balance) BalanceFunc {
	return func(types.Address) types.Balance { return bal }
}

func TestAddRejectsBadSignature(t *testing.T) {
	p, err := New(func(types.Tx) error { return errors.New("boom") }, balanceOf(types.ZeroBalance), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx := types.Tx{From: types.Address{1}, To: types.Address{2}, Amount: types.NewBalanceFromUint64(1)}
	code, err := p.Add(tx)
	if !errors.Is(err, ErrBadSign) {
		t.Fatalf("got err %v, want ErrBadSign", err)
	}
	if code != types.StatusBadSign {
		t.Fatalf("got code %v, want StatusBadSign", code)
	}
	if p.Count() != 0 {
		t.Fatalf("pool should not have admitted the transaction")
	}
}

func TestAddRejectsInsufficientFunds(t *testing.T) {
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(5)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx := types.Tx{
		From:   types.Address{1},
		To:     types.Address{2},
		Amount: types.NewBalanceFromUint64(10),
		Fee:    types.NewBalanceFromUint64(1),
	}
	code, err := p.Add(tx)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got err %v, want ErrInsufficientFunds", err)
	}
	if code != types.StatusNotEnoughBalance {
		t.Fatalf("got code %v, want StatusNotEnoughBalance", code)
	}
}

func TestAddAcceptsExactBalanceBoundary(t *testing.T) {
	// spec §4.I fix: reserved+amount+fee == current_balance must still be
	// admitted ("<=" not "<").
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(11)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx := types.Tx{
		From:   types.Address{1},
		To:     types.Address{2},
		Amount: types.NewBalanceFromUint64(10),
		Fee:    types.NewBalanceFromUint64(1),
	}
	if _, err := p.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if p.Count() != 1 {
		t.Fatalf("got %d pending, want 1", p.Count())
	}
}

func TestAddDuplicateIsPendingNotError(t *testing.T) {
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(1000)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx := types.Tx{From: types.Address{1}, To: types.Address{2}, Amount: types.NewBalanceFromUint64(1), Timestamp: 1}
	if _, err := p.Add(tx); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	code, err := p.Add(tx)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if code != types.StatusPending {
		t.Fatalf("got code %v, want StatusPending", code)
	}
	if p.Count() != 1 {
		t.Fatalf("duplicate must not double-count: got %d", p.Count())
	}
}

func TestAddReservesAcrossMultipleTransactionsFromSameSender(t *testing.T) {
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(15)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	from := types.Address{1}
	first := types.Tx{From: from, To: types.Address{2}, Amount: types.NewBalanceFromUint64(10), Timestamp: 1}
	if _, err := p.Add(first); err != nil {
		t.Fatalf("first Add: %v", err)
	}

	second := types.Tx{From: from, To: types.Address{3}, Amount: types.NewBalanceFromUint64(10), Timestamp: 2}
	if _, err := p.Add(second); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got err %v, want ErrInsufficientFunds (reserved funds from first tx)", err)
	}
}

func TestDeleteAllRemovesMinedTransactions(t *testing.T) {
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(1000)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx := types.Tx{From: types.Address{1}, To: types.Address{2}, Amount: types.NewBalanceFromUint64(1)}
	if _, err := p.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}

	p.DeleteAll([]types.BlockTx{{Tx: tx}})
	if p.Count() != 0 {
		t.Fatalf("expected pool empty after DeleteAll, got %d", p.Count())
	}
}

func TestSelectBestByFeeRespectsSubmitOrderPerSender(t *testing.T) {
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(1000)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	from := types.Address{1}
	first := types.Tx{From: from, To: types.Address{2}, Amount: types.NewBalanceFromUint64(1), Fee: types.NewBalanceFromUint64(5), Timestamp: 1}
	second := types.Tx{From: from, To: types.Address{3}, Amount: types.NewBalanceFromUint64(1), Fee: types.NewBalanceFromUint64(9), Timestamp: 2}
	if _, err := p.Add(first); err != nil {
		t.Fatalf("Add first: %v", err)
	}
	if _, err := p.Add(second); err != nil {
		t.Fatalf("Add second: %v", err)
	}

	got := p.SelectBestByFee(-1)
	if len(got) != 2 {
		t.Fatalf("got %d txs, want 2", len(got))
	}
	if got[0].Hash() != first.Hash() {
		t.Fatalf("expected earlier-submitted tx first regardless of fee")
	}
}

func TestSelectBestByFeeLimitsCount(t *testing.T) {
	p, err := New(acceptAll, balanceOf(types.NewBalanceFromUint64(1000)), noopEvHandler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := uint32(0); i < 3; i++ {
		tx := types.Tx{From: types.Address{byte(i + 1)}, To: types.Address{9}, Amount: types.NewBalanceFromUint64(1), Timestamp: i}
		if _, err := p.Add(tx); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got := p.SelectBestByFee(2)
	if len(got) != 2 {
		t.Fatalf("got %d txs, want 2", len(got))
	}
}
