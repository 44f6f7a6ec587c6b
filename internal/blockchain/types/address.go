// Package types defines the canonical block/transaction/account data model
// shared by every other blockchain package.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/ledgerforge/corechain/internal/bytesx"
	"golang.org/x/crypto/ripemd160"
)

// AddressSize is the number of bytes in an Address.
const AddressSize = 20

// Address is a 20-byte account identifier, derived as
// RIPEMD160(SHA256(public_key_bytes)) and shown to users base58-encoded.
type Address [AddressSize]byte

// NullAddress is the all-zero sentinel used for contract-creation
// destinations and as the genesis sender.
var NullAddress Address

// IsNull reports whether a is the null address.
func (a Address) IsNull() bool {
	return a == NullAddress
}

// String renders the address base58-encoded, matching the wire/display
// format used throughout the wallet CLI and RPC surface.
func (a Address) String() string {
	return bytesx.Base58Encode(a[:])
}

// Bytes returns the raw 20 bytes backing the address.
func (a Address) Bytes() []byte {
	return a[:]
}

// AddressFromString decodes a base58-encoded address.
func AddressFromString(s string) (Address, error) {
	var a Address
	decoded := bytesx.Base58Decode(s)
	if len(decoded) != AddressSize {
		return a, errors.New("types: invalid address length")
	}
	copy(a[:], decoded)
	return a, nil
}

// AddressFromBytes wraps a raw 20-byte slice as an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, errors.New("types: invalid address length")
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromPublicKey derives the account address for a public key using
// RIPEMD160(SHA256(pubkey_bytes)), per the data model in spec §3.
func AddressFromPublicKey(pubKeyBytes []byte) Address {
	sum := sha256.Sum256(pubKeyBytes)

	h := ripemd160.New()
	h.Write(sum[:])

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// ContractAddress derives a contract's address the way
// state.CreateContractAccount does: RIPEMD160(SHA256(creator || dataHash ||
// nonce)).
func ContractAddress(creator Address, dataHash [32]byte, nonce uint64) Address {
	buf := make([]byte, 0, AddressSize+32+8)
	buf = append(buf, creator[:]...)
	buf = append(buf, dataHash[:]...)
	buf = appendUint64BE(buf, nonce)

	sum := sha256.Sum256(buf)
	h := ripemd160.New()
	h.Write(sum[:])

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

func appendUint64BE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// HexString is a convenience used by log lines and debugging tools; it is
// never used on the wire.
func (a Address) HexString() string {
	return "0x" + hex.EncodeToString(a[:])
}
