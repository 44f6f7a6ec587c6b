// Package signature provides the secp256k1-ECDSA signing and verification
// helpers used to produce and check transaction signatures.
//
// spec §3 notes that the original system's "signing" was an unusual
// RSA-encrypt-the-hash-with-the-private-key construction, and explicitly
// asks implementers to standardize on secp256k1-ECDSA over
// SHA256(canonical_tx_header) instead, deriving the address as
// RIPEMD160(SHA256(pubkey_bytes)). That is what this package does.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// GenerateKey creates a new secp256k1 keypair.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Sign signs the canonical header hash of tx with privateKey and returns the
// populated types.Sign value (uncompressed public key + R/S).
func Sign(tx types.Tx, privateKey *ecdsa.PrivateKey) (types.Sign, error) {
	h := tx.Hash()

	sig, err := crypto.Sign(h[:], privateKey)
	if err != nil {
		return types.Sign{}, err
	}

	return types.Sign{
		PublicKey: crypto.FromECDSAPub(&privateKey.PublicKey),
		R:         sig[0:32],
		S:         sig[32:64],
	}, nil
}

// Verify checks that sign is a valid secp256k1-ECDSA signature over tx's
// canonical header hash and that it was produced by the public key embedded
// in sign. It does not check that the recovered address matches tx.From;
// callers that need that must compare separately via DeriveAddress.
func Verify(tx types.Tx) error {
	if !tx.Sign.Present() {
		return errors.New("signature: missing signature")
	}
	if len(tx.Sign.R) != 32 || len(tx.Sign.S) != 32 {
		return errors.New("signature: malformed signature components")
	}

	pubKey, err := crypto.UnmarshalPubkey(tx.Sign.PublicKey)
	if err != nil {
		return errors.New("signature: malformed public key")
	}

	h := tx.Hash()

	r := new(big.Int).SetBytes(tx.Sign.R)
	s := new(big.Int).SetBytes(tx.Sign.S)

	if !ecdsa.Verify(pubKey, h[:], r, s) {
		return errors.New("signature: invalid signature")
	}

	return nil
}

// DeriveAddress returns the address that signed tx, derived from the
// signature's embedded public key.
func DeriveAddress(tx types.Tx) (types.Address, error) {
	if !tx.Sign.Present() {
		return types.Address{}, errors.New("signature: missing signature")
	}
	return types.AddressFromPublicKey(tx.Sign.PublicKey), nil
}
