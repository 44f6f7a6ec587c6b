// Package codec converts between in-memory blockchain values and the
// serialized records written to the chain store, mirroring the
// BlockFS/ToBlock split the teacher uses for its on-disk JSON records
// (foundation/blockchain/database/block.go), adapted to wrap our own
// Block/Tx types and to carry the Merkle root alongside the block hash.
package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ledgerforge/corechain/internal/blockchain/merkle"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// BlockRecord is the on-disk representation of a block: its canonical hash
// and Merkle root precomputed, plus the header fields and transactions.
type BlockRecord struct {
	Hash       string          `json:"hash"`
	MerkleRoot string          `json:"merkle_root"`
	Depth      uint64          `json:"depth"`
	PrevHash   string          `json:"prev_hash"`
	Timestamp  uint32          `json:"timestamp"`
	Coinbase   string          `json:"coinbase"`
	Trans      []types.BlockTx `json:"trans"`
}

// NewBlockRecord builds the serializable record for block, computing its
// canonical hash and Merkle root.
func NewBlockRecord(block types.Block) (BlockRecord, error) {
	root, err := MerkleRootHex(block.Transactions)
	if err != nil {
		return BlockRecord{}, fmt.Errorf("codec: merkle root: %w", err)
	}

	hash := block.Hash()

	return BlockRecord{
		Hash:       hash.String(),
		MerkleRoot: root,
		Depth:      block.Depth,
		PrevHash:   block.PrevHash.String(),
		Timestamp:  block.Timestamp,
		Coinbase:   block.Coinbase.String(),
		Trans:      block.Transactions,
	}, nil
}

// ToBlock reconstructs a types.Block from its serialized record. The
// precomputed Hash/MerkleRoot fields are not trusted; callers should
// recompute and compare if they need tamper detection.
func ToBlock(rec BlockRecord) (types.Block, error) {
	prevHash, err := types.HashFromString(rec.PrevHash)
	if err != nil {
		return types.Block{}, fmt.Errorf("codec: prev hash: %w", err)
	}

	coinbase, err := types.AddressFromString(rec.Coinbase)
	if err != nil {
		return types.Block{}, fmt.Errorf("codec: coinbase: %w", err)
	}

	return types.Block{
		Depth:        rec.Depth,
		PrevHash:     prevHash,
		Timestamp:    rec.Timestamp,
		Coinbase:     coinbase,
		Transactions: rec.Trans,
	}, nil
}

// MerkleRootHex builds a merkle.Tree over txs and returns its root as hex.
// A single-transaction block still builds a tree so block validation always
// has a Merkle proof path available.
func MerkleRootHex(txs []types.BlockTx) (string, error) {
	tree, err := merkle.NewTree(txs)
	if err != nil {
		return "", err
	}
	return tree.RootHex(), nil
}

// MarshalBlock serializes block to the bytes stored under its hash key.
func MarshalBlock(block types.Block) ([]byte, error) {
	rec, err := NewBlockRecord(block)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// UnmarshalBlock is the inverse of MarshalBlock.
func UnmarshalBlock(data []byte) (types.Block, error) {
	var rec BlockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.Block{}, fmt.Errorf("codec: unmarshal block: %w", err)
	}
	return ToBlock(rec)
}

// AccountRecord is the on-disk representation of an account, used by the
// state manager's snapshot persistence.
type AccountRecord struct {
	Address      string            `json:"address"`
	Type         types.AccountType `json:"type"`
	Balance      string            `json:"balance"`
	TxHashes     []string          `json:"tx_hashes"`
	Storage      map[string]string `json:"storage,omitempty"`
	RuntimeCode  []byte            `json:"runtime_code,omitempty"`
	CodeHash     string            `json:"code_hash"`
}

// NewAccountRecord builds the serializable record for an account.
func NewAccountRecord(addr types.Address, acc types.Account) AccountRecord {
	rec := AccountRecord{
		Address:  addr.String(),
		Type:     acc.Type,
		Balance:  acc.Balance.String(),
		CodeHash: acc.CodeHash.String(),
	}

	for _, h := range acc.TransactionHashes {
		rec.TxHashes = append(rec.TxHashes, h.String())
	}

	if len(acc.Storage) > 0 {
		rec.Storage = make(map[string]string, len(acc.Storage))
		for k, v := range acc.Storage {
			rec.Storage[k.String()] = fmt.Sprintf("%x", v)
		}
	}

	if len(acc.RuntimeCode) > 0 {
		rec.RuntimeCode = acc.RuntimeCode
	}

	return rec
}

// ToAccount reconstructs a types.Account from its serialized record.
func ToAccount(rec AccountRecord) (types.Account, error) {
	balance, err := types.NewBalanceFromString(rec.Balance)
	if err != nil {
		return types.Account{}, fmt.Errorf("codec: balance: %w", err)
	}

	codeHash, err := types.HashFromString(rec.CodeHash)
	if err != nil {
		return types.Account{}, fmt.Errorf("codec: code hash: %w", err)
	}

	acc := types.Account{
		Type:        rec.Type,
		Balance:     balance,
		RuntimeCode: rec.RuntimeCode,
		CodeHash:    codeHash,
	}

	for _, hs := range rec.TxHashes {
		h, err := types.HashFromString(hs)
		if err != nil {
			return types.Account{}, fmt.Errorf("codec: tx hash: %w", err)
		}
		acc.TransactionHashes = append(acc.TransactionHashes, h)
	}

	if len(rec.Storage) > 0 {
		acc.Storage = make(map[types.Hash][32]byte, len(rec.Storage))
		for ks, vs := range rec.Storage {
			k, err := types.HashFromString(ks)
			if err != nil {
				return types.Account{}, fmt.Errorf("codec: storage key: %w", err)
			}
			raw, err := hex.DecodeString(vs)
			if err != nil {
				return types.Account{}, fmt.Errorf("codec: storage value: %w", err)
			}
			if len(raw) != 32 {
				return types.Account{}, fmt.Errorf("codec: storage value: invalid length %d", len(raw))
			}
			var v [32]byte
			copy(v[:], raw)
			acc.Storage[k] = v
		}
	}

	return acc, nil
}

// MarshalAccount serializes acc for addr to the bytes stored under its key.
func MarshalAccount(addr types.Address, acc types.Account) ([]byte, error) {
	return json.Marshal(NewAccountRecord(addr, acc))
}

// UnmarshalAccount is the inverse of MarshalAccount.
func UnmarshalAccount(data []byte) (types.Account, error) {
	var rec AccountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.Account{}, fmt.Errorf("codec: unmarshal account: %w", err)
	}
	return ToAccount(rec)
}
