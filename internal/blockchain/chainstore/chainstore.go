// Package chainstore persists the accepted chain of blocks and answers the
// lookups the core façade and peer sync protocol need: find a block by
// hash, find the block at a given depth, find which block contains a given
// transaction, and report the current tip.
//
// The teacher keeps this responsibility inside its database package
// (foundation/blockchain/database/database.go), backed by an append-only
// JSON file with no random access. This package follows the same
// lifecycle shape (Open/Close, with the tip restored from disk on open) but
// is backed by internal/kvstore so block, depth and transaction lookups
// are real point reads instead of linear scans.
package chainstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerforge/corechain/internal/blockchain/codec"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/kvstore"
)

var (
	// ErrNotFound is returned by the find* lookups when nothing matches.
	ErrNotFound = errors.New("chainstore: not found")

	// ErrParentMismatch is returned by TryAddBlock when the candidate
	// block's PrevHash does not equal the current tip's hash.
	ErrParentMismatch = errors.New("chainstore: parent hash mismatch")

	// ErrDuplicateDepth is returned by TryAddBlock when the candidate's
	// depth is not exactly one more than the current tip's depth.
	ErrDuplicateDepth = errors.New("chainstore: depth already occupied")
)

const (
	prefixBlockByHash   = "b:" // b:<hash>      -> block record
	prefixHashByDepth   = "d:" // d:<depth be64> -> hash
	prefixBlockByTxHash = "t:" // t:<tx hash>    -> block hash
	keyTopDepth         = "top"
)

// Store is the durable, point-indexed record of every accepted block.
type Store struct {
	mu  sync.RWMutex
	kv  *kvstore.Store
	top types.Block
}

// Open opens or creates the chain store at path. If clean is true any
// existing data is wiped and the store starts empty (the caller is
// expected to add the genesis block immediately after). Otherwise the
// store's top block is loaded from what is already on disk.
func Open(path string, clean bool) (*Store, error) {
	kv, err := kvstore.Open(path, clean)
	if err != nil {
		return nil, fmt.Errorf("chainstore: open: %w", err)
	}

	s := &Store{kv: kv}

	if !clean {
		if err := s.load(); err != nil {
			kv.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.kv.Close()
}

// load reconstructs s.top from whatever is already on disk, by reading the
// recorded top depth and following it to the corresponding block.
func (s *Store) load() error {
	raw, err := s.kv.Get([]byte(keyTopDepth))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		return err
	}

	depth := binary.BigEndian.Uint64(raw)

	hash, err := s.findBlockHashByDepthLocked(depth)
	if err != nil {
		return err
	}

	block, err := s.findBlockLocked(hash)
	if err != nil {
		return err
	}

	s.top = block
	return nil
}

// TryAddBlock validates block's parent linkage against the current tip and,
// if valid, durably records it and indexes its transactions. It returns
// ErrParentMismatch if block does not extend the current tip.
func (s *Store) TryAddBlock(block types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !block.IsGenesis() {
		if block.PrevHash != s.top.Hash() {
			return ErrParentMismatch
		}
		if block.Depth != s.top.Depth+1 {
			return ErrDuplicateDepth
		}
	}

	data, err := codec.MarshalBlock(block)
	if err != nil {
		return fmt.Errorf("chainstore: marshal block: %w", err)
	}

	hash := block.Hash()
	depthKey := depthKey(block.Depth)

	batch := s.kv.NewBatch()
	batch.Put(append([]byte(prefixBlockByHash), hash[:]...), data)
	batch.Put(depthKey, hash[:])

	var topDepth [8]byte
	binary.BigEndian.PutUint64(topDepth[:], block.Depth)
	batch.Put([]byte(keyTopDepth), topDepth[:])

	for _, tx := range block.Transactions {
		txHash := tx.Hash()
		batch.Put(append([]byte(prefixBlockByTxHash), txHash[:]...), hash[:])
	}

	if err := s.kv.Write(batch); err != nil {
		return fmt.Errorf("chainstore: write batch: %w", err)
	}

	s.top = block
	return nil
}

// FindBlock returns the block with the given hash.
func (s *Store) FindBlock(hash types.Hash) (types.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findBlockLocked(hash)
}

func (s *Store) findBlockLocked(hash types.Hash) (types.Block, error) {
	data, err := s.kv.Get(append([]byte(prefixBlockByHash), hash[:]...))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return types.Block{}, ErrNotFound
		}
		return types.Block{}, err
	}
	return codec.UnmarshalBlock(data)
}

// FindBlockHashByDepth returns the hash of the block at the given depth.
func (s *Store) FindBlockHashByDepth(depth uint64) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findBlockHashByDepthLocked(depth)
}

func (s *Store) findBlockHashByDepthLocked(depth uint64) (types.Hash, error) {
	raw, err := s.kv.Get(depthKey(depth))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return types.Hash{}, ErrNotFound
		}
		return types.Hash{}, err
	}
	var out types.Hash
	copy(out[:], raw)
	return out, nil
}

// FindTransaction returns the block that contains the transaction with the
// given hash.
func (s *Store) FindTransaction(txHash types.Hash) (types.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.kv.Get(append([]byte(prefixBlockByTxHash), txHash[:]...))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return types.Block{}, ErrNotFound
		}
		return types.Block{}, err
	}

	var blockHash types.Hash
	copy(blockHash[:], raw)
	return s.findBlockLocked(blockHash)
}

// Top returns the current tip of the chain.
func (s *Store) Top() types.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top
}

// Depth returns the current tip's depth.
func (s *Store) Depth() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top.Depth
}

// Complexity is the chain's difficulty descriptor. The source system's
// complexity field is a static stub; until real proof-of-work is plugged
// in, every chain reports the same constant value here.
const Complexity uint64 = 1

// TopWithComplexity returns the current tip alongside the chain's
// complexity descriptor, matching getTopBlockAndComplexity.
func (s *Store) TopWithComplexity() (types.Block, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top, Complexity
}

func depthKey(depth uint64) []byte {
	key := make([]byte, len(prefixHashByDepth)+8)
	copy(key, prefixHashByDepth)
	binary.BigEndian.PutUint64(key[len(prefixHashByDepth):], depth)
	return key
}
