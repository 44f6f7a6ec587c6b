package types

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrBalanceOverflow is returned by checked arithmetic when a 256-bit
// balance would wrap around.
var ErrBalanceOverflow = errors.New("types: balance arithmetic overflow")

// ErrBalanceUnderflow is returned by checked arithmetic when a debit would
// take a balance below zero.
var ErrBalanceUnderflow = errors.New("types: balance arithmetic underflow")

// Balance is a 256-bit unsigned integer used for every monetary amount and
// fee in the system. All arithmetic is checked; there is no wraparound.
type Balance struct {
	v uint256.Int
}

// ZeroBalance is the additive identity.
var ZeroBalance = Balance{}

// NewBalanceFromUint64 constructs a Balance from a uint64.
func NewBalanceFromUint64(v uint64) Balance {
	var b Balance
	b.v.SetUint64(v)
	return b
}

// NewBalanceFromString parses a base-10 balance, as produced by String. An
// empty string is treated as zero, since that is how an absent fee/balance
// field round-trips through JSON records.
func NewBalanceFromString(s string) (Balance, error) {
	if s == "" {
		return ZeroBalance, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Balance{}, err
	}
	return Balance{v: *v}, nil
}

// MaxBalance returns 2^256-1, the value the genesis recipient is credited
// with.
func MaxBalance() Balance {
	var b Balance
	b.v = *uint256.NewInt(0)
	b.v.Not(&b.v)
	return b
}

// Add returns a+b, erroring on overflow.
func (a Balance) Add(b Balance) (Balance, error) {
	var out Balance
	_, overflow := out.v.AddOverflow(&a.v, &b.v)
	if overflow {
		return Balance{}, ErrBalanceOverflow
	}
	return out, nil
}

// Sub returns a-b, erroring if b > a.
func (a Balance) Sub(b Balance) (Balance, error) {
	if a.Less(b) {
		return Balance{}, ErrBalanceUnderflow
	}
	var out Balance
	out.v.SubOverflow(&a.v, &b.v)
	return out, nil
}

// Less reports whether a < b.
func (a Balance) Less(b Balance) bool {
	return a.v.Lt(&b.v)
}

// GreaterOrEqual reports whether a >= b.
func (a Balance) GreaterOrEqual(b Balance) bool {
	return !a.Less(b)
}

// IsZero reports whether the balance is zero.
func (a Balance) IsZero() bool {
	return a.v.IsZero()
}

// String renders the balance in base 10.
func (a Balance) String() string {
	return a.v.Dec()
}

// Big returns the balance as a *big.Int, for interop with go-ethereum's
// vm/state packages which speak big.Int and uint256.Int but not this type.
func (a Balance) Big() *big.Int {
	return a.v.ToBig()
}

// Uint64 returns the balance truncated to 64 bits; used only for gas-style
// quantities (fee, gas_left) that are guaranteed by callers to fit.
func (a Balance) Uint64() uint64 {
	return a.v.Uint64()
}

// Bytes32 returns the big-endian 32-byte representation, used by the
// canonical codec.
func (a Balance) Bytes32() [32]byte {
	return a.v.Bytes32()
}

// BalanceFromBytes32 reconstructs a Balance from its canonical
// representation.
func BalanceFromBytes32(b [32]byte) Balance {
	var out Balance
	out.v.SetBytes32(b[:])
	return out
}

// MarshalJSON renders the balance as a decimal string so it survives
// round-trips through the RPC/wallet JSON boundary without precision loss.
func (a Balance) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

// UnmarshalJSON parses a decimal string balance.
func (a *Balance) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return err
	}
	a.v = *v
	return nil
}
