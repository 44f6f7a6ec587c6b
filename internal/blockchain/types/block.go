package types

// BlockTx is a transaction as it is recorded inside a block: the signed
// header plus nothing else. Blocks carry BlockTx, not a separately signed
// wrapper, because once a transaction is in a block its signature has
// already been checked by the mempool or by block validation on arrival.
type BlockTx struct {
	Tx
}

// Hash returns the canonical hash of the underlying transaction.
func (btx BlockTx) Hash() Hash {
	return btx.Tx.Hash()
}

// MerkleHash implements merkle.Hashable's MerkleHash() ([]byte, error) shape.
func (btx BlockTx) MerkleHash() ([]byte, error) {
	h := btx.Hash()
	return h[:], nil
}

// Equals implements merkle.Hashable's equality check: two block
// transactions are the same if their canonical hash matches.
func (btx BlockTx) Equals(other BlockTx) bool {
	return btx.Hash() == other.Hash()
}

// Block represents a group of transactions batched together and hash-linked
// to its parent.
type Block struct {
	Depth        uint64
	PrevHash     Hash
	Timestamp    uint32
	Coinbase     Address
	Transactions []BlockTx
}

// IsGenesis reports whether b is the genesis block.
func (b Block) IsGenesis() bool {
	return b.Depth == 0
}

// Hash returns SHA256(canonical_bytes(b)), the value child blocks reference
// as PrevHash.
func (b Block) Hash() Hash {
	return hashCanonical(b.canonicalBytes())
}

// canonicalBytes concatenates every field in struct-declaration order,
// matching spec §6's definition of canonical block bytes.
func (b Block) canonicalBytes() []byte {
	var buf []byte
	buf = appendUint64BE(buf, b.Depth)
	buf = append(buf, b.PrevHash[:]...)
	buf = appendUint32BE(buf, b.Timestamp)
	buf = append(buf, b.Coinbase[:]...)
	for _, tx := range b.Transactions {
		h := tx.Hash()
		buf = append(buf, h[:]...)
	}
	return buf
}
