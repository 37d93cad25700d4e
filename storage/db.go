package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
)

// ErrNotFound is returned by Get when the key is absent. All backends report
// missing keys with this sentinel so callers can match it with errors.Is.
var ErrNotFound = leveldb.ErrNotFound

// Database is a generic interface for a key-value store.
// This allows the node to use any database backend (in-memory or persistent).
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	// Write applies every operation recorded in the batch atomically.
	Write(batch *leveldb.Batch) error
	Close() // A way to gracefully shut down the database connection.
}

// IsNotFound reports whether err signals a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// --- In-Memory DB (for testing) ---

// MemDB keeps the data in a goleveldb skiplist. The write lock around Write
// makes batches observable all-or-nothing to concurrent readers.
type MemDB struct {
	mu sync.RWMutex
	db *memdb.DB
}

func NewMemDB() *MemDB {
	return &MemDB{
		db: memdb.New(comparer.DefaultComparer, 0),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.db.Put(key, value)
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, err := db.db.Get(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db.Contains(key), nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	err := db.db.Delete(key)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (db *MemDB) Write(batch *leveldb.Batch) error {
	if batch == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	replay := &memReplay{db: db.db}
	if err := batch.Replay(replay); err != nil {
		return err
	}
	return replay.err
}

// Len returns the number of stored entries.
func (db *MemDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db.Len()
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

type memReplay struct {
	db  *memdb.DB
	err error
}

func (r *memReplay) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = r.db.Put(key, value)
}

func (r *memReplay) Delete(key []byte) {
	if r.err != nil {
		return
	}
	if err := r.db.Delete(key); err != nil && !IsNotFound(err) {
		r.err = err
	}
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key, nil)
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Delete removes the key. Deleting a missing key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Write applies the batch atomically.
func (ldb *LevelDB) Write(batch *leveldb.Batch) error {
	if batch == nil {
		return nil
	}
	return ldb.db.Write(batch, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
