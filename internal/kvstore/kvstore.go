// Package kvstore wraps an embedded goleveldb database as the key-value
// substrate the chain store is built on.
//
// The teacher persists its chain as an append-only JSON file
// (foundation/blockchain/database/storage.go) with no random access and no
// way to answer "does this key exist" without a full scan. go-ethereum
// solves the same problem with exactly this library (its default
// ethdb/leveldb backend), and khanghh-bsc-monitor's extdb package shows the
// idiom for building a small domain-specific store on top of a raw KV
// engine. This package follows that shape: a thin Store wrapping
// *leveldb.DB, with typed helpers left to the packages that use it.
package kvstore

import (
	"errors"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: not found")

// Store is a thin wrapper over an embedded LevelDB instance.
type Store struct {
	db *leveldb.DB
}

// Open opens the database at path. When clean is true, any existing
// database at path is wiped first, giving callers the "clean start" mode
// spec §6 asks for alongside the normal "open existing" mode.
func Open(path string, clean bool) (*Store, error) {
	if clean {
		if err := os.RemoveAll(path); err != nil {
			return nil, err
		}
	}

	db, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Store exposes the underlying *leveldb.DB for callers that need a
// capability this wrapper does not expose, such as go-ethereum's ethdb
// adapters.
func (s *Store) Store() *leveldb.DB {
	return s.db
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Has reports whether key exists in the store.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

// Put writes value under key.
func (s *Store) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

// Delete removes key from the store. Deleting an absent key is not an
// error.
func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// Batch groups a set of writes so they are applied atomically.
type Batch struct {
	b *leveldb.Batch
}

// NewBatch starts a new write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: new(leveldb.Batch)}
}

// Put stages a write in the batch.
func (b *Batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

// Delete stages a deletion in the batch.
func (b *Batch) Delete(key []byte) {
	b.b.Delete(key)
}

// Write commits the batch atomically.
func (s *Store) Write(b *Batch) error {
	return s.db.Write(b.b, nil)
}

// Iterator walks every key with the given prefix, in key order.
func (s *Store) Iterator(prefix []byte) *Iterator {
	return &Iterator{it: s.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

// Iterator wraps goleveldb's iterator with a Key/Value/Next/Release
// surface.
type Iterator struct {
	it iterator
}

type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Next advances the iterator, returning false when exhausted.
func (i *Iterator) Next() bool {
	return i.it.Next()
}

// Key returns the current key. Valid only between a true Next() and the
// next call to Next() or Release().
func (i *Iterator) Key() []byte {
	return i.it.Key()
}

// Value returns the current value, under the same validity rule as Key.
func (i *Iterator) Value() []byte {
	return i.it.Value()
}

// Release frees the iterator's resources. Safe to call more than once.
func (i *Iterator) Release() {
	i.it.Release()
}

// Error returns any error encountered during iteration.
func (i *Iterator) Error() error {
	return i.it.Error()
}
