package types

// AccountType distinguishes plain client accounts from contract accounts.
type AccountType uint8

const (
	// AccountClient is an externally-owned account.
	AccountClient AccountType = iota
	// AccountContract is an account that carries runtime code.
	AccountContract
)

// Account is the per-address state tracked by the state manager: balance,
// nonce bookkeeping via the list of transaction hashes charged against it,
// contract code and its hash, and per-account storage.
type Account struct {
	Type              AccountType
	Balance           Balance
	TransactionHashes []Hash
	Storage           map[Hash][32]byte
	RuntimeCode       []byte
	CodeHash          Hash
}

// NewClientAccount constructs a zero-balance client account.
func NewClientAccount() Account {
	return Account{
		Type:    AccountClient,
		Storage: make(map[Hash][32]byte),
	}
}

// NewContractAccount constructs a zero-balance contract account with no
// code yet installed (code is set once the constructor succeeds).
func NewContractAccount() Account {
	return Account{
		Type:    AccountContract,
		Storage: make(map[Hash][32]byte),
	}
}

// Clone returns a deep copy of the account, used by the state manager's
// copy-on-write sandbox so writes to the copy never alias the original.
func (a Account) Clone() Account {
	out := a
	if a.Storage != nil {
		out.Storage = make(map[Hash][32]byte, len(a.Storage))
		for k, v := range a.Storage {
			out.Storage[k] = v
		}
	}
	if a.TransactionHashes != nil {
		out.TransactionHashes = append([]Hash(nil), a.TransactionHashes...)
	}
	if a.RuntimeCode != nil {
		out.RuntimeCode = append([]byte(nil), a.RuntimeCode...)
	}
	return out
}

// SetRuntimeCode installs contract code and derives CodeHash = SHA256(code).
func (a *Account) SetRuntimeCode(code []byte) {
	a.RuntimeCode = code
	a.CodeHash = HashBytes(code)
}

// StorageKey hashes a raw 32-byte storage word to the SHA256 key the
// account's storage map is indexed by, per spec §3.
func StorageKey(word [32]byte) Hash {
	return HashBytes(word[:])
}
