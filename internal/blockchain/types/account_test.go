package types

import "testing"

func TestAccountCloneIsDeep(t *testing.T) {
	acc := NewClientAccount()
	acc.TransactionHashes = append(acc.TransactionHashes, HashBytes([]byte("tx1")))
	acc.Storage = map[Hash][32]byte{HashBytes([]byte("slot")): {1, 2, 3}}

	clone := acc.Clone()
	clone.TransactionHashes[0] = HashBytes([]byte("tx2"))
	clone.Storage[HashBytes([]byte("slot"))] = [32]byte{9, 9, 9}

	if acc.TransactionHashes[0] == clone.TransactionHashes[0] {
		t.Fatal("expected clone to own its transaction hash slice")
	}
	if acc.Storage[HashBytes([]byte("slot"))] == clone.Storage[HashBytes([]byte("slot"))] {
		t.Fatal("expected clone to own its storage map")
	}
}

func TestSetRuntimeCodeDerivesCodeHash(t *testing.T) {
	acc := NewContractAccount()
	code := []byte{0x60, 0x00, 0x60, 0x00}
	acc.SetRuntimeCode(code)

	if acc.CodeHash != HashBytes(code) {
		t.Fatal("expected code hash to be derived from runtime code")
	}
}

func TestAddressFromStringRoundTrip(t *testing.T) {
	var raw [AddressSize]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := Address(raw)

	got, err := AddressFromString(addr.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != addr {
		t.Fatalf("round trip mismatch: got %x want %x", got, addr)
	}
}

func TestNullAddressIsNull(t *testing.T) {
	if !NullAddress.IsNull() {
		t.Fatal("expected NullAddress.IsNull() to be true")
	}
	addr, _ := AddressFromString("49cfqVfB1gTGw5XZSu6nZDrntLr1")
	if addr.IsNull() {
		t.Fatal("expected a real address to not be null")
	}
}
